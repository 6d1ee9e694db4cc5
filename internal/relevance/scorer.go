// Package relevance scores documents against free-text input with three additive
// lexical signals and ranks them above a fixed floor.
package relevance

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vilaw/backend/internal/storage/models"
)

const (
	TitleWeight   = 0.8
	KeywordWeight = 0.6
	OverlapWeight = 0.4

	// Floor is exclusive: a document scoring exactly Floor is dropped.
	Floor = 0.3

	DefaultLimit = 5

	minTokenRunes = 3
)

// Score never returns a negative value. Keyword hits accumulate without a cap, so a
// short document carrying many matching keywords can outrank an exact title match.
func Score(input string, doc models.Document) float64 {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return 0
	}

	var score float64

	if strings.Contains(strings.ToLower(doc.Title), in) {
		score += TitleWeight
	}

	for _, kw := range doc.Keywords {
		kw = strings.ToLower(kw)
		if kw != "" && strings.Contains(in, kw) {
			score += KeywordWeight
		}
	}

	score += OverlapWeight * overlap(in, doc.Content)

	return score
}

// overlap is the fraction of input tokens longer than two runes that appear verbatim
// among the content's whitespace-separated tokens.
func overlap(lowerInput, content string) float64 {
	var tokens []string
	for _, tok := range strings.Fields(lowerInput) {
		if utf8.RuneCountInString(tok) >= minTokenRunes {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return 0
	}

	words := strings.Fields(strings.ToLower(content))
	vocab := make(map[string]struct{}, len(words))
	for _, w := range words {
		vocab[w] = struct{}{}
	}

	matches := 0
	for _, tok := range tokens {
		if _, ok := vocab[tok]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}

// Rank returns at most limit documents scoring above Floor, best first. Equal scores
// keep corpus order. A non-positive limit means DefaultLimit.
func Rank(input string, corpus []models.Document, limit int) []models.ScoredDocument {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]models.ScoredDocument, 0, len(corpus))
	for _, doc := range corpus {
		s := Score(input, doc)
		if s > Floor {
			ranked = append(ranked, models.ScoredDocument{Document: doc, RelevanceScore: s})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
