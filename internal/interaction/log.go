// Package interaction keeps the bounded, append-only log of question/answer exchanges
// that the feedback loop learns from.
package interaction

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vilaw/backend/internal/storage/models"
)

const DefaultLogSize = 1000

var ErrNotFound = errors.New("interaction not found")

// Annotator labels a question when it is recorded.
type Annotator interface {
	Categorize(text string) string
	Sentiment(text string) string
}

type Log struct {
	mu        sync.RWMutex
	records   []models.Interaction
	max       int
	annotator Annotator
	now       func() time.Time
}

type Option func(*Log)

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func WithAnnotator(a Annotator) Option {
	return func(l *Log) { l.annotator = a }
}

func NewLog(max int, opts ...Option) *Log {
	if max <= 0 {
		max = DefaultLogSize
	}
	l := &Log{max: max, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends a new interaction and returns it. Once the log is full the oldest
// record is dropped.
func (l *Log) Record(question, answer string, rating *int, responseTimeMs *float64) models.Interaction {
	rec := models.Interaction{
		ID:             uuid.New().String(),
		Question:       question,
		Answer:         answer,
		Rating:         copyInt(rating),
		ResponseTimeMs: copyFloat(responseTimeMs),
		Timestamp:      l.now(),
		Category:       "general",
		Sentiment:      "neutral",
	}
	if l.annotator != nil {
		rec.Category = l.annotator.Categorize(question)
		rec.Sentiment = l.annotator.Sentiment(question)
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	if over := len(l.records) - l.max; over > 0 {
		l.records = append([]models.Interaction(nil), l.records[over:]...)
	}
	l.mu.Unlock()

	return rec
}

// Restore loads previously persisted records, keeping the most recent ones.
func (l *Log) Restore(records []models.Interaction) {
	if over := len(records) - l.max; over > 0 {
		records = records[over:]
	}
	l.mu.Lock()
	l.records = append([]models.Interaction(nil), records...)
	l.mu.Unlock()
}

// AmendRating sets the rating of a recorded interaction. A record may be amended once;
// unknown ids, already-amended records and ratings outside 1..5 report false.
func (l *Log) AmendRating(id string, rating int) (models.Interaction, bool) {
	if rating < 1 || rating > 5 {
		return models.Interaction{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].ID != id {
			continue
		}
		if l.records[i].RatingAmended {
			return models.Interaction{}, false
		}
		r := rating
		l.records[i].Rating = &r
		l.records[i].RatingAmended = true
		return l.records[i], true
	}
	return models.Interaction{}, false
}

func (l *Log) Get(id string) (models.Interaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, rec := range l.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return models.Interaction{}, ErrNotFound
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Snapshot returns every record, oldest first.
func (l *Log) Snapshot() []models.Interaction {
	return l.Last(0)
}

// Last returns the n most recent records, oldest first. n <= 0 returns all of them.
func (l *Log) Last(n int) []models.Interaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := 0
	if n > 0 && len(l.records) > n {
		start = len(l.records) - n
	}
	out := make([]models.Interaction, len(l.records)-start)
	copy(out, l.records[start:])
	return out
}

// Since counts records newer than t.
func (l *Log) Since(t time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for _, rec := range l.records {
		if rec.Timestamp.After(t) {
			n++
		}
	}
	return n
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
