package models

import "time"

type IntentType string

const (
	IntentLegalQuery    IntentType = "legal_query"
	IntentContractQuery IntentType = "contract_query"
	IntentLegalAdvice   IntentType = "legal_advice"
	IntentGreeting      IntentType = "greeting"
	IntentHelp          IntentType = "help"
	IntentGeneral       IntentType = "general"
)

func (t IntentType) Valid() bool {
	switch t {
	case IntentLegalQuery, IntentContractQuery, IntentLegalAdvice, IntentGreeting, IntentHelp, IntentGeneral:
		return true
	}
	return false
}

type IntentResult struct {
	Type        IntentType `json:"type"`
	Subcategory string     `json:"subcategory"`
	Confidence  float64    `json:"confidence"`
}

// Document is a corpus entry owned by the document store. The engine only reads it,
// except Importance, which mirrors a knowledge entry with the same id.
type Document struct {
	ID         string    `json:"id" yaml:"id"`
	Title      string    `json:"title" yaml:"title"`
	Content    string    `json:"content" yaml:"content"`
	Summary    string    `json:"summary,omitempty" yaml:"summary"`
	Category   string    `json:"category" yaml:"category"`
	Type       string    `json:"type,omitempty" yaml:"type"`
	Keywords   []string  `json:"keywords" yaml:"keywords"`
	Date       time.Time `json:"date" yaml:"date"`
	Source     string    `json:"source" yaml:"source"`
	Importance float64   `json:"importance" yaml:"importance"`
}

type ScoredDocument struct {
	Document
	RelevanceScore float64 `json:"relevance_score"`
}

type KnowledgeEntry struct {
	ID          string    `json:"id" yaml:"id"`
	Category    string    `json:"category" yaml:"category"`
	Title       string    `json:"title" yaml:"title"`
	Content     string    `json:"content" yaml:"content"`
	Keywords    []string  `json:"keywords" yaml:"keywords"`
	Importance  float64   `json:"importance" yaml:"importance"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated"`
	Source      string    `json:"source" yaml:"source"`
	Type        string    `json:"type" yaml:"type"`
}

// AsDocument lets knowledge entries take part in ranking next to corpus documents.
func (k KnowledgeEntry) AsDocument() Document {
	return Document{
		ID:         k.ID,
		Title:      k.Title,
		Content:    k.Content,
		Category:   k.Category,
		Type:       k.Type,
		Keywords:   k.Keywords,
		Date:       k.LastUpdated,
		Source:     k.Source,
		Importance: k.Importance,
	}
}

type Interaction struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Rating         *int      `json:"rating,omitempty"`
	ResponseTimeMs *float64  `json:"response_time_ms,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Category       string    `json:"category"`
	Sentiment      string    `json:"sentiment"`
	RatingAmended  bool      `json:"rating_amended"`
}

type LearningMetrics struct {
	TotalInteractions int       `json:"total_interactions"`
	SuccessfulAnswers int       `json:"successful_answers"`
	Accuracy          float64   `json:"accuracy"`
	KnowledgeLevel    float64   `json:"knowledge_level"`
	LegalCoverage     float64   `json:"legal_coverage"`
	Responsiveness    float64   `json:"responsiveness"`
	UserSatisfaction  float64   `json:"user_satisfaction"`
	KnowledgeBaseSize int       `json:"knowledge_base_size"`
	LastUpdate        time.Time `json:"last_update"`
}
