package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vilaw/backend/internal/lexicon"
	"github.com/vilaw/backend/internal/storage/models"
)

func rated(r int) models.Interaction {
	return models.Interaction{Rating: &r}
}

func TestAccuracy(t *testing.T) {
	s, total, acc := Accuracy(nil)
	assert.Equal(t, 0, s)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0.0, acc)

	log := []models.Interaction{rated(5), rated(4), rated(3), {}}
	s, total, acc = Accuracy(log)
	assert.Equal(t, 2, s)
	assert.Equal(t, 4, total)
	assert.InDelta(t, 50.0, acc, 1e-9)
}

func TestCoverage(t *testing.T) {
	e := NewEvaluator(lexicon.Default().CoverageTaxonomy)

	assert.Equal(t, 0.0, e.Coverage(nil))
	knowledge := []models.KnowledgeEntry{
		{Category: "tax"}, {Category: "tax"}, {Category: "labor"}, {Category: "covid"},
	}
	assert.InDelta(t, 20.0, e.Coverage(knowledge), 1e-9)

	assert.Equal(t, 0.0, NewEvaluator(nil).Coverage(knowledge))
}

func TestRecency(t *testing.T) {
	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1.0, Recency(at, at))
	assert.InDelta(t, 0.5, Recency(at, at.Add(12*time.Hour)), 1e-9)
	assert.Equal(t, 0.0, Recency(at, at.Add(48*time.Hour)))
	assert.Equal(t, 1.0, Recency(at, at.Add(-time.Hour)))
	assert.Equal(t, 0.0, Recency(time.Time{}, at))
}

func TestKnowledgeLevel(t *testing.T) {
	assert.InDelta(t, 100.0, KnowledgeLevel(100, 100, 5000, 1), 1e-9)
	assert.InDelta(t, 0.0, KnowledgeLevel(0, 0, 0, 0), 1e-9)
	assert.InDelta(t, 40+30*0.5+10+5, KnowledgeLevel(100, 50, 500, 0.5), 1e-9)
}

func TestKnowledgeLevel_Monotonic(t *testing.T) {
	const recency = 0.7
	prev := -1.0
	for step := 0; step <= 20; step++ {
		acc := float64(step) * 5
		cov := float64(step/2) * 10
		total := step * 100
		level := KnowledgeLevel(acc, cov, total, recency)
		assert.GreaterOrEqual(t, level, prev, "step %d", step)
		assert.GreaterOrEqual(t, level, 0.0)
		assert.LessOrEqual(t, level, 100.0)
		prev = level
	}
}

func TestResponsiveness(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	ms := func(v float64) *float64 { return &v }

	assert.Equal(t, 100.0, Responsiveness(nil, now))

	log := []models.Interaction{
		{Timestamp: now.Add(-2 * time.Hour), ResponseTimeMs: ms(60000)},
		{Timestamp: now.Add(-10 * time.Minute), ResponseTimeMs: ms(2000)},
		{Timestamp: now.Add(-5 * time.Minute)},
	}
	assert.InDelta(t, 90.0, Responsiveness(log, now), 1e-9)

	slow := []models.Interaction{{Timestamp: now, ResponseTimeMs: ms(30000)}}
	assert.Equal(t, 0.0, Responsiveness(slow, now))
}

func TestSatisfaction(t *testing.T) {
	assert.Equal(t, 0.0, Satisfaction([]models.Interaction{{}}))
	assert.InDelta(t, 80.0, Satisfaction([]models.Interaction{rated(5), rated(3), {}}), 1e-9)
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEvaluator(lexicon.Default().CoverageTaxonomy)

	log := []models.Interaction{rated(5), rated(1)}
	successful, total, accuracy := Accuracy(log)

	m := e.Evaluate(Input{
		Successful:   successful,
		Total:        total,
		Accuracy:     accuracy,
		Interactions: log,
		Knowledge:    []models.KnowledgeEntry{{Category: "tax"}},
		LastUpdate:   now,
		Now:          now,
	})

	assert.Equal(t, 2, m.TotalInteractions)
	assert.Equal(t, 1, m.SuccessfulAnswers)
	assert.InDelta(t, 50.0, m.Accuracy, 1e-9)
	assert.InDelta(t, 10.0, m.LegalCoverage, 1e-9)
	assert.InDelta(t, 100*(0.4*0.5+0.3*0.1+0.2*0.002+0.1), m.KnowledgeLevel, 1e-9)
	assert.Equal(t, 1, m.KnowledgeBaseSize)
	assert.Equal(t, now, m.LastUpdate)
	assert.Contains(t, GenerateReport(m), "Accuracy: 50.0%")
}
