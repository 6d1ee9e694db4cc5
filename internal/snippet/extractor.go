// Package snippet picks the sentences of a document that mention the user's input.
package snippet

import (
	"regexp"
	"strings"
)

const (
	maxSentences  = 2
	fallbackRunes = 200
	ellipsis      = "..."
)

var terminators = regexp.MustCompile(`[.!?]+`)

// Extract returns up to two sentences containing either the whole input or its first
// space-separated token, joined with ". " and closed with a period. When nothing
// matches it falls back to the first 200 runes of content. The result is non-empty
// whenever content is.
func Extract(input, content string) string {
	in := strings.ToLower(input)
	first := in
	if i := strings.IndexByte(in, ' '); i >= 0 {
		first = in[:i]
	}

	var picked []string
	for _, sentence := range terminators.Split(content, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lower := strings.ToLower(sentence)
		if strings.Contains(lower, in) || strings.Contains(lower, first) {
			picked = append(picked, sentence)
			if len(picked) == maxSentences {
				break
			}
		}
	}

	if len(picked) == 0 {
		return truncate(content, fallbackRunes) + ellipsis
	}
	return strings.Join(picked, ". ") + "."
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
