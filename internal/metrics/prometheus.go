package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vilaw/backend/internal/storage/models"
)

var (
	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vilaw_chat_duration_seconds",
			Help:    "Chat request handling duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"intent"},
	)

	ChatTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vilaw_chat_total",
			Help: "Total number of chat requests handled",
		},
		[]string{"intent", "status"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vilaw_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	RankedResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vilaw_ranked_results_count",
			Help:    "Number of ranked documents per legal query",
			Buckets: []float64{0, 1, 2, 3, 5, 10},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vilaw_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vilaw_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vilaw_documents_ingested_total",
			Help: "Total documents added to the corpus",
		},
	)

	InteractionsRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vilaw_interactions_recorded_total",
			Help: "Total interactions recorded",
		},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vilaw_learning_cycle_duration_seconds",
			Help:    "Learning cycle duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30},
		},
	)

	CycleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vilaw_learning_cycle_total",
			Help: "Total learning cycles by outcome and abort stage",
		},
		[]string{"status", "stage"},
	)

	KnowledgeEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vilaw_knowledge_entries",
			Help: "Entries in the knowledge store",
		},
	)

	LearningScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vilaw_learning_score",
			Help: "Latest learning metrics on a 0-100 scale",
		},
		[]string{"metric"},
	)
)

func Init() {
	prometheus.MustRegister(ChatDuration)
	prometheus.MustRegister(ChatTotal)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(RankedResultsCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(InteractionsRecorded)
	prometheus.MustRegister(CycleDuration)
	prometheus.MustRegister(CycleTotal)
	prometheus.MustRegister(KnowledgeEntries)
	prometheus.MustRegister(LearningScore)
}

// ObserveLearning publishes a committed metric set.
func ObserveLearning(m models.LearningMetrics) {
	KnowledgeEntries.Set(float64(m.KnowledgeBaseSize))
	LearningScore.WithLabelValues("accuracy").Set(m.Accuracy)
	LearningScore.WithLabelValues("knowledge_level").Set(m.KnowledgeLevel)
	LearningScore.WithLabelValues("legal_coverage").Set(m.LegalCoverage)
	LearningScore.WithLabelValues("responsiveness").Set(m.Responsiveness)
	LearningScore.WithLabelValues("user_satisfaction").Set(m.UserSatisfaction)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
