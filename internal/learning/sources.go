package learning

import (
	"context"
	"math"
	"time"

	"github.com/vilaw/backend/internal/storage/models"
)

const (
	SourceUserFeedback = "user_feedback"
	SourceLegalUpdates = "legal_updates"
	SourceExpert       = "expert_annotations"

	TypeInteraction    = "interaction"
	TypeNewLaw         = "new_law"
	TypeLegalUpdate    = "legal_update"
	TypeExpertFeedback = "expert_feedback"

	DefaultUpdateWeight = 0.8
	DefaultExpertWeight = 0.9
	defaultFoldWeight   = 0.5
)

// Item is one piece of collected learning data tagged with where it came from.
type Item struct {
	Source   string    `json:"source"`
	Type     string    `json:"type"`
	Title    string    `json:"title,omitempty"`
	Content  string    `json:"content,omitempty"`
	Category string    `json:"category,omitempty"`
	Question string    `json:"question,omitempty"`
	Answer   string    `json:"answer,omitempty"`
	Rating   *int      `json:"rating,omitempty"`
	Date     time.Time `json:"date"`
	Weight   float64   `json:"weight"`
}

// Text is what feature extraction runs on.
func (i Item) Text() string {
	if i.Content != "" {
		return i.Content
	}
	return i.Question
}

func (i Item) Foldable() bool {
	return i.Type == TypeNewLaw || i.Type == TypeLegalUpdate
}

type ProcessedItem struct {
	Item
	Features Features `json:"features"`
}

// UpdateSource supplies newly published legal texts. Implementations bound their own
// network timeouts.
type UpdateSource interface {
	FetchUpdates(ctx context.Context) ([]Item, error)
}

// ExpertSource supplies annotated expert answers.
type ExpertSource interface {
	FetchFeedback(ctx context.Context) ([]Item, error)
}

// StaticSource serves a fixed item list as either kind of source.
type StaticSource []Item

func (s StaticSource) FetchUpdates(context.Context) ([]Item, error) {
	return append([]Item(nil), s...), nil
}

func (s StaticSource) FetchFeedback(context.Context) ([]Item, error) {
	return append([]Item(nil), s...), nil
}

// InteractionWeight starts at 0.5, moves 0.1 per rating step away from 3 and adds up
// to 1 for fast answers (linearly down to nothing at ten seconds). The result is
// clamped to [0,1].
func InteractionWeight(in models.Interaction) float64 {
	w := 0.5
	if in.Rating != nil && *in.Rating > 0 {
		w += float64(*in.Rating-3) * 0.1
	}
	if in.ResponseTimeMs != nil && *in.ResponseTimeMs > 0 {
		seconds := *in.ResponseTimeMs / 1000
		w += math.Max(0, 1-seconds/10)
	}
	return math.Max(0, math.Min(1, w))
}

func interactionItem(in models.Interaction) Item {
	return Item{
		Source:   SourceUserFeedback,
		Type:     TypeInteraction,
		Question: in.Question,
		Answer:   in.Answer,
		Rating:   in.Rating,
		Date:     in.Timestamp,
		Weight:   InteractionWeight(in),
	}
}
