// Package engine is the request-facing facade: it classifies input, ranks the corpus
// together with the knowledge store, renders a templated answer and exposes the
// feedback loop to the host.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/intent"
	"github.com/vilaw/backend/internal/interaction"
	"github.com/vilaw/backend/internal/knowledge"
	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/metrics"
	"github.com/vilaw/backend/internal/relevance"
	"github.com/vilaw/backend/internal/snippet"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

const maxSources = 3

// DocumentStore provides the legal corpus. The engine only reads from it.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
}

// InteractionStore persists recorded interactions beyond the in-memory log.
type InteractionStore interface {
	SaveInteraction(ctx context.Context, in models.Interaction) error
}

// StaticDocuments serves a fixed corpus.
type StaticDocuments []models.Document

func (s StaticDocuments) ListDocuments(context.Context) ([]models.Document, error) {
	return s, nil
}

type Request struct {
	Input  string
	UserID string
}

type Response struct {
	Intent         models.IntentResult     `json:"intent"`
	Content        string                  `json:"content"`
	Confidence     float64                 `json:"confidence"`
	Sources        []models.ScoredDocument `json:"sources"`
	Suggestions    []string                `json:"suggestions"`
	ProcessingTime time.Duration           `json:"processing_time"`
}

type Engine struct {
	classifier   *intent.Classifier
	docs         DocumentStore
	store        *knowledge.Store
	log          *interaction.Log
	pipeline     *learning.Pipeline
	interactions InteractionStore
	rankLimit    int

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Config struct {
	Classifier   *intent.Classifier
	Documents    DocumentStore
	Knowledge    *knowledge.Store
	Log          *interaction.Log
	Pipeline     *learning.Pipeline
	Interactions InteractionStore
	RankLimit    int
	Rand         *rand.Rand
}

func New(cfg Config) *Engine {
	e := &Engine{
		classifier:   cfg.Classifier,
		docs:         cfg.Documents,
		store:        cfg.Knowledge,
		log:          cfg.Log,
		pipeline:     cfg.Pipeline,
		interactions: cfg.Interactions,
		rankLimit:    cfg.RankLimit,
		rng:          cfg.Rand,
	}
	if e.classifier == nil {
		e.classifier = intent.NewClassifier(nil)
	}
	if e.docs == nil {
		e.docs = StaticDocuments(nil)
	}
	if e.store == nil {
		e.store = knowledge.NewStore(knowledge.DefaultCapacity)
	}
	if e.log == nil {
		e.log = interaction.NewLog(interaction.DefaultLogSize)
	}
	if e.pipeline == nil {
		e.pipeline = learning.NewPipeline(e.store, e.log)
	}
	if e.rankLimit <= 0 {
		e.rankLimit = relevance.DefaultLimit
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(1))
	}
	return e
}

// Handle never fails: any error or panic downstream of classification turns into a
// low-confidence apology with the general suggestions.
func (e *Engine) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	result := e.classifier.Classify(req.Input)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while handling request",
				zap.Any("panic", r),
				zap.String("intent", string(result.Type)),
			)
			resp = fallback(result)
			metrics.ChatTotal.WithLabelValues(string(result.Type), "error").Inc()
		}
		resp.ProcessingTime = time.Since(start)
		metrics.ChatDuration.WithLabelValues(string(result.Type)).Observe(resp.ProcessingTime.Seconds())
		metrics.ConfidenceScore.Observe(resp.Confidence)
	}()

	resp, err := e.respond(ctx, req.Input, result)
	if err != nil {
		logger.Error("Failed to handle request",
			zap.String("user_id", req.UserID),
			zap.String("intent", string(result.Type)),
			zap.Error(err),
		)
		metrics.ChatTotal.WithLabelValues(string(result.Type), "error").Inc()
		return fallback(result)
	}

	metrics.ChatTotal.WithLabelValues(string(result.Type), "success").Inc()
	return resp
}

func fallback(result models.IntentResult) Response {
	return Response{
		Intent:      result,
		Content:     apologyText,
		Confidence:  apologyConfidence,
		Sources:     []models.ScoredDocument{},
		Suggestions: clone(generalSuggestions),
	}
}

func (e *Engine) respond(ctx context.Context, input string, result models.IntentResult) (Response, error) {
	resp := Response{
		Intent:     result,
		Confidence: result.Confidence,
		Sources:    []models.ScoredDocument{},
	}

	switch result.Type {
	case models.IntentGreeting:
		resp.Content = e.greeting()
		resp.Suggestions = clone(generalSuggestions)

	case models.IntentLegalQuery:
		ranked, err := e.Rank(ctx, input, e.rankLimit)
		if err != nil {
			return Response{}, err
		}
		metrics.RankedResultsCount.Observe(float64(len(ranked)))
		if len(ranked) == 0 {
			resp.Content = noResultsText(input)
			resp.Suggestions = clone(generalSuggestions)
			break
		}
		resp.Content = legalText(ranked, snippet.Extract(input, ranked[0].Content))
		if len(ranked) > maxSources {
			ranked = ranked[:maxSources]
		}
		resp.Sources = ranked
		resp.Suggestions = suggestionsFor(legalSuggestions, result.Subcategory)

	case models.IntentContractQuery:
		resp.Content = contractText(result.Subcategory)
		resp.Suggestions = suggestionsFor(contractSuggestions, result.Subcategory)

	case models.IntentLegalAdvice:
		resp.Content = adviceText
		resp.Suggestions = clone(adviceSuggestions)

	case models.IntentHelp:
		resp.Content = helpText
		resp.Suggestions = clone(helpSuggestions)

	default:
		resp.Content = generalText(input)
		resp.Suggestions = clone(generalSuggestions)
	}

	return resp, nil
}

func (e *Engine) greeting() string {
	e.rngMu.Lock()
	i := e.rng.Intn(len(greetings))
	e.rngMu.Unlock()
	return greetings[i]
}

// Rank scores the corpus together with the current knowledge entries and returns at
// most limit documents. A non-positive limit means the configured rank limit.
func (e *Engine) Rank(ctx context.Context, input string, limit int) ([]models.ScoredDocument, error) {
	if limit <= 0 {
		limit = e.rankLimit
	}

	docs, err := e.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	entries := e.store.Snapshot()
	candidates := make([]models.Document, 0, len(docs)+len(entries))
	candidates = append(candidates, docs...)
	for _, k := range entries {
		candidates = append(candidates, k.AsDocument())
	}

	return relevance.Rank(input, candidates, limit), nil
}

// RecordInteraction appends to the interaction log. Persistence failures are logged
// and do not lose the in-memory record.
func (e *Engine) RecordInteraction(ctx context.Context, question, answer string, rating *int, responseTimeMs *float64) models.Interaction {
	rec := e.log.Record(question, answer, rating, responseTimeMs)
	metrics.InteractionsRecorded.Inc()

	if e.interactions != nil {
		if err := e.interactions.SaveInteraction(ctx, rec); err != nil {
			logger.Warn("Failed to persist interaction", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	return rec
}

// AmendRating reports false for unknown ids, out-of-range ratings and records that
// were already amended.
func (e *Engine) AmendRating(ctx context.Context, id string, rating int) bool {
	rec, ok := e.log.AmendRating(id, rating)
	if !ok {
		return false
	}
	if e.interactions != nil {
		if err := e.interactions.SaveInteraction(ctx, rec); err != nil {
			logger.Warn("Failed to persist amended rating", zap.String("id", id), zap.Error(err))
		}
	}
	return true
}

func (e *Engine) Interaction(id string) (models.Interaction, error) {
	return e.log.Get(id)
}

// RunFeedbackCycle runs one learning cycle and publishes its metrics. On failure the
// previous metrics stay in effect and are returned with the error.
func (e *Engine) RunFeedbackCycle(ctx context.Context) (models.LearningMetrics, error) {
	start := time.Now()
	m, err := e.pipeline.RunCycle(ctx)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		stage := "unknown"
		var aborted *learning.CycleAbortedError
		if errors.As(err, &aborted) {
			stage = aborted.Stage
		}
		metrics.CycleTotal.WithLabelValues("aborted", stage).Inc()
		return m, err
	}

	metrics.CycleTotal.WithLabelValues("completed", "").Inc()
	metrics.ObserveLearning(m)
	return m, nil
}

func (e *Engine) Metrics() models.LearningMetrics {
	return e.pipeline.Metrics()
}

func (e *Engine) Deploy() learning.Deployment {
	return e.pipeline.Deploy()
}

func (e *Engine) SearchKnowledge(query string) []models.KnowledgeEntry {
	return e.store.Search(query)
}

func (e *Engine) CategoryCounts() map[string]int {
	return e.store.CategoryCounts()
}

// Stats mirrors the learning metrics with live counters from the log and store.
type Stats struct {
	models.LearningMetrics
	LoggedInteractions int `json:"logged_interactions"`
	RecentInteractions int `json:"recent_interactions"`
	KnowledgeEntries   int `json:"knowledge_entries"`
}

func (e *Engine) Stats(now time.Time) Stats {
	return Stats{
		LearningMetrics:    e.Metrics(),
		LoggedInteractions: e.log.Len(),
		RecentInteractions: e.log.Since(now.Add(-24 * time.Hour)),
		KnowledgeEntries:   e.store.Len(),
	}
}
