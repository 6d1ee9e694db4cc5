// Package intent maps raw user input onto the fixed intent taxonomy.
//
// Keyword sets are probed in a fixed priority order (legal, contract, advice,
// greeting, help) and the first set with a substring hit wins, so a legal-document
// query outranks generic advice or help phrasing that also matches.
package intent

import (
	"strings"

	"github.com/vilaw/backend/internal/lexicon"
	"github.com/vilaw/backend/internal/storage/models"
)

const (
	confidenceLegal    = 0.9
	confidenceContract = 0.8
	confidenceAdvice   = 0.7
	confidenceGreeting = 0.9
	confidenceHelp     = 0.8
	confidenceGeneral  = 0.5
)

type rule struct {
	intent      models.IntentType
	confidence  float64
	terms       []string
	subcategory func(input string) string
}

type Classifier struct {
	rules []rule
}

func NewClassifier(lex *lexicon.Lexicon) *Classifier {
	if lex == nil {
		lex = lexicon.Default()
	}

	legalSubs := lex.LegalSubcategories
	contractSubs := lex.ContractSubcategories

	return &Classifier{
		rules: []rule{
			{
				intent:     models.IntentLegalQuery,
				confidence: confidenceLegal,
				terms:      lex.Legal,
				subcategory: func(input string) string {
					return probe(input, legalSubs, "general")
				},
			},
			{
				intent:     models.IntentContractQuery,
				confidence: confidenceContract,
				terms:      lex.Contract,
				subcategory: func(input string) string {
					return probe(input, contractSubs, "general_contract")
				},
			},
			{intent: models.IntentLegalAdvice, confidence: confidenceAdvice, terms: lex.Advice, subcategory: constant("general")},
			{intent: models.IntentGreeting, confidence: confidenceGreeting, terms: lex.Greeting, subcategory: constant("hello")},
			{intent: models.IntentHelp, confidence: confidenceHelp, terms: lex.Help, subcategory: constant("assistance")},
		},
	}
}

// Classify is total: every string, including the empty one, yields a result.
func (c *Classifier) Classify(input string) models.IntentResult {
	lower := strings.ToLower(input)

	for _, r := range c.rules {
		if containsAny(lower, r.terms) {
			return models.IntentResult{
				Type:        r.intent,
				Subcategory: r.subcategory(lower),
				Confidence:  r.confidence,
			}
		}
	}

	return models.IntentResult{
		Type:        models.IntentGeneral,
		Subcategory: "unknown",
		Confidence:  confidenceGeneral,
	}
}

var defaultClassifier = NewClassifier(nil)

// Classify uses the default lexicon.
func Classify(input string) models.IntentResult {
	return defaultClassifier.Classify(input)
}

func probe(input string, entries []lexicon.Entry, fallback string) string {
	for _, e := range entries {
		if containsAny(input, e.Terms) {
			return e.Category
		}
	}
	return fallback
}

func containsAny(input string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(input, term) {
			return true
		}
	}
	return false
}

func constant(label string) func(string) string {
	return func(string) string { return label }
}
