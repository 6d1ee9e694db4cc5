package learning

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"

	"github.com/vilaw/backend/internal/lexicon"
)

const (
	maxKeywords     = 10
	minKeywordRunes = 3

	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"

	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	CategoryGeneral = "general"
)

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

type Features struct {
	Keywords   []string `json:"keywords"`
	Category   string   `json:"category"`
	Sentiment  string   `json:"sentiment"`
	Complexity string   `json:"complexity"`
	Relevance  float64  `json:"relevance"`
}

// Analyzer derives features from free text using the lexicon's category table,
// sentiment words and legal relevance terms.
type Analyzer struct {
	lex       *lexicon.Lexicon
	stopWords map[string]struct{}
}

func NewAnalyzer(lex *lexicon.Lexicon) *Analyzer {
	if lex == nil {
		lex = lexicon.Default()
	}
	stop := make(map[string]struct{}, len(lex.StopWords))
	for _, w := range lex.StopWords {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Analyzer{lex: lex, stopWords: stop}
}

func (a *Analyzer) Extract(text string) Features {
	return Features{
		Keywords:   a.Keywords(text),
		Category:   a.Categorize(text),
		Sentiment:  a.Sentiment(text),
		Complexity: a.Complexity(text),
		Relevance:  a.Relevance(text),
	}
}

// Keywords returns up to ten of the most frequent words longer than two runes,
// excluding stop words. Equal counts keep first-occurrence order.
func (a *Analyzer) Keywords(text string) []string {
	var order []string
	counts := make(map[string]int)

	for _, tok := range tokenize(strings.ToLower(text)) {
		if utf8.RuneCountInString(tok) < minKeywordRunes || !hasLetterOrDigit(tok) {
			continue
		}
		if _, stop := a.stopWords[tok]; stop {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// Categorize picks the category whose terms occur most often in text. The first
// category reaching the best score wins; no hits at all yield "general".
func (a *Analyzer) Categorize(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := CategoryGeneral, 0

	for _, entry := range a.lex.Categories {
		score := countHits(lower, entry.Terms)
		if score > bestScore {
			best, bestScore = entry.Category, score
		}
	}
	return best
}

func (a *Analyzer) Sentiment(text string) string {
	lower := strings.ToLower(text)
	pos := countHits(lower, a.lex.PositiveWords)
	neg := countHits(lower, a.lex.NegativeWords)

	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Complexity buckets the mean number of words per sentence: above 20 is high, above
// 10 medium.
func (a *Analyzer) Complexity(text string) string {
	words := len(strings.Fields(text))
	if words == 0 {
		return ComplexityLow
	}

	sentences := 0
	for _, s := range sentenceBreak.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}

	avg := float64(words) / float64(sentences)
	switch {
	case avg > 20:
		return ComplexityHigh
	case avg > 10:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// Relevance is the fraction of legal relevance terms present in text.
func (a *Analyzer) Relevance(text string) float64 {
	if len(a.lex.RelevanceTerms) == 0 {
		return 0
	}
	hits := countHits(strings.ToLower(text), a.lex.RelevanceTerms)
	return math.Min(float64(hits)/float64(len(a.lex.RelevanceTerms)), 1)
}

func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(text)
	}

	toks := doc.Tokens()
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Text)
	}
	return out
}

func countHits(lower string, terms []string) int {
	n := 0
	for _, term := range terms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			n++
		}
	}
	return n
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
