package evaluation

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

const (
	accuracyWeight     = 0.4
	coverageWeight     = 0.3
	interactionsWeight = 0.2
	recencyWeight      = 0.1

	// interactionSaturation is the interaction count at which the volume factor maxes out.
	interactionSaturation = 1000
	recencyWindow         = 24 * time.Hour
	responsivenessWindow  = time.Hour

	// SuccessRating is the lowest rating that does not count as successful.
	SuccessRating = 3
)

type Evaluator struct {
	taxonomy []string
}

// Input is the snapshot a cycle evaluates together with the accuracy recomputed from
// it. LastUpdate is the commit instant of the cycle producing the metrics; Now is the
// clock reading used for time-based factors.
type Input struct {
	Successful int
	Total      int
	Accuracy   float64

	Interactions []models.Interaction
	Knowledge    []models.KnowledgeEntry
	LastUpdate   time.Time
	Now          time.Time
}

func NewEvaluator(taxonomy []string) *Evaluator {
	return &Evaluator{taxonomy: taxonomy}
}

func (e *Evaluator) Taxonomy() []string {
	return e.taxonomy
}

// Evaluate derives the full metric set from a snapshot.
func (e *Evaluator) Evaluate(in Input) models.LearningMetrics {
	coverage := e.Coverage(in.Knowledge)
	recency := Recency(in.LastUpdate, in.Now)

	m := models.LearningMetrics{
		TotalInteractions: in.Total,
		SuccessfulAnswers: in.Successful,
		Accuracy:          in.Accuracy,
		LegalCoverage:     coverage,
		KnowledgeLevel:    KnowledgeLevel(in.Accuracy, coverage, in.Total, recency),
		Responsiveness:    Responsiveness(in.Interactions, in.Now),
		UserSatisfaction:  Satisfaction(in.Interactions),
		KnowledgeBaseSize: len(in.Knowledge),
		LastUpdate:        in.LastUpdate,
	}

	logger.Debug("Evaluation completed",
		zap.Float64("accuracy", m.Accuracy),
		zap.Float64("coverage", m.LegalCoverage),
		zap.Float64("knowledge_level", m.KnowledgeLevel),
		zap.Int("interactions", m.TotalInteractions),
	)

	return m
}

// Accuracy counts interactions rated above SuccessRating. It is 0 for an empty log.
func Accuracy(interactions []models.Interaction) (successful, total int, accuracy float64) {
	total = len(interactions)
	for _, in := range interactions {
		if in.Rating != nil && *in.Rating > SuccessRating {
			successful++
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	return successful, total, float64(successful) / float64(total) * 100
}

// Coverage is the percentage of taxonomy categories with at least one knowledge entry.
func (e *Evaluator) Coverage(knowledge []models.KnowledgeEntry) float64 {
	if len(e.taxonomy) == 0 {
		return 0
	}

	wanted := make(map[string]bool, len(e.taxonomy))
	for _, c := range e.taxonomy {
		wanted[c] = true
	}
	covered := make(map[string]bool)
	for _, k := range knowledge {
		if wanted[k.Category] {
			covered[k.Category] = true
		}
	}
	return float64(len(covered)) / float64(len(wanted)) * 100
}

// Recency decays linearly from 1 at lastUpdate to 0 a day later.
func Recency(lastUpdate, now time.Time) float64 {
	if lastUpdate.IsZero() {
		return 0
	}
	elapsed := now.Sub(lastUpdate)
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Max(0, 1-elapsed.Hours()/recencyWindow.Hours())
}

// KnowledgeLevel combines accuracy and coverage (both percentages), interaction
// volume and recency (both in [0,1]) into a score clamped to [0,100].
func KnowledgeLevel(accuracy, coverage float64, totalInteractions int, recency float64) float64 {
	volume := math.Min(float64(totalInteractions)/interactionSaturation, 1)

	level := accuracyWeight*accuracy/100 +
		coverageWeight*coverage/100 +
		interactionsWeight*volume +
		recencyWeight*recency

	return clamp(level*100, 0, 100)
}

// Responsiveness scores interactions from the last hour: 100 minus ten points per
// second of mean response time, floored at 0. Missing response times count as 0. With
// no recent interactions the score is 100.
func Responsiveness(interactions []models.Interaction, now time.Time) float64 {
	cutoff := now.Add(-responsivenessWindow)

	var sum float64
	n := 0
	for _, in := range interactions {
		if !in.Timestamp.After(cutoff) {
			continue
		}
		n++
		if in.ResponseTimeMs != nil {
			sum += *in.ResponseTimeMs
		}
	}
	if n == 0 {
		return 100
	}

	meanSeconds := sum / float64(n) / 1000
	return math.Max(0, 100-10*meanSeconds)
}

// Satisfaction is the mean rating of rated interactions as a percentage of 5.
func Satisfaction(interactions []models.Interaction) float64 {
	var sum float64
	n := 0
	for _, in := range interactions {
		if in.Rating != nil {
			sum += float64(*in.Rating)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) / 5 * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func GenerateReport(m models.LearningMetrics) string {
	return fmt.Sprintf(`
Learning Report
===============

Interactions: %d (successful: %d)
Accuracy: %.1f%%
Legal Coverage: %.1f%%
Knowledge Level: %.1f / 100
Responsiveness: %.1f / 100
User Satisfaction: %.1f%%
Knowledge Base Size: %d
Last Update: %s
`,
		m.TotalInteractions, m.SuccessfulAnswers,
		m.Accuracy,
		m.LegalCoverage,
		m.KnowledgeLevel,
		m.Responsiveness,
		m.UserSatisfaction,
		m.KnowledgeBaseSize,
		m.LastUpdate.Format(time.RFC3339),
	)
}
