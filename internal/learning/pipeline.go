// Package learning runs the feedback cycle that adapts the knowledge store and the
// learning metrics from recorded interactions and external legal data.
//
// A cycle works on snapshots: collect, process, fold, recompute and evaluate never
// touch shared state. Only the final commit persists the result and swaps it in, so
// a failed cycle leaves the previous store and metrics untouched.
package learning

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/evaluation"
	"github.com/vilaw/backend/internal/interaction"
	"github.com/vilaw/backend/internal/knowledge"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
	"github.com/vilaw/backend/pkg/utils"
)

const DefaultWindow = 100

const (
	StageCollect   = "collect"
	StageProcess   = "process"
	StageFold      = "fold"
	StageRecompute = "recompute"
	StageEvaluate  = "evaluate"
	StageCommit    = "commit"
)

// CycleAbortedError reports the stage at which a cycle was abandoned.
type CycleAbortedError struct {
	Stage string
	Err   error
}

func (e *CycleAbortedError) Error() string {
	return fmt.Sprintf("learning cycle aborted at %s: %v", e.Stage, e.Err)
}

func (e *CycleAbortedError) Unwrap() error {
	return e.Err
}

func abort(stage string, err error) error {
	return &CycleAbortedError{Stage: stage, Err: err}
}

// Repository persists the outcome of a cycle. Commit must store both parts or neither.
type Repository interface {
	CommitCycle(ctx context.Context, entries []models.KnowledgeEntry, metrics models.LearningMetrics) error
}

// Deployment is the knowledge and metrics state as of one instant.
type Deployment struct {
	Knowledge []models.KnowledgeEntry
	Metrics   models.LearningMetrics
	At        time.Time
}

type Pipeline struct {
	store     *knowledge.Store
	log       *interaction.Log
	analyzer  *Analyzer
	evaluator *evaluation.Evaluator

	updates UpdateSource
	experts ExpertSource
	repo    Repository

	window int
	now    func() time.Time

	metrics atomic.Pointer[models.LearningMetrics]
	// running serializes cycles; request handling never takes it.
	running sync.Mutex
}

type Option func(*Pipeline)

func WithUpdateSource(src UpdateSource) Option {
	return func(p *Pipeline) { p.updates = src }
}

func WithExpertSource(src ExpertSource) Option {
	return func(p *Pipeline) { p.experts = src }
}

func WithRepository(repo Repository) Option {
	return func(p *Pipeline) { p.repo = repo }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func WithWindow(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.window = n
		}
	}
}

func WithAnalyzer(a *Analyzer) Option {
	return func(p *Pipeline) { p.analyzer = a }
}

func WithEvaluator(e *evaluation.Evaluator) Option {
	return func(p *Pipeline) { p.evaluator = e }
}

func NewPipeline(store *knowledge.Store, log *interaction.Log, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:  store,
		log:    log,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.analyzer == nil {
		p.analyzer = NewAnalyzer(nil)
	}
	if p.evaluator == nil {
		p.evaluator = evaluation.NewEvaluator(p.analyzer.lex.CoverageTaxonomy)
	}
	p.metrics.Store(&models.LearningMetrics{KnowledgeBaseSize: store.Len()})
	return p
}

func (p *Pipeline) Analyzer() *Analyzer {
	return p.analyzer
}

// Metrics returns the metrics of the last committed cycle.
func (p *Pipeline) Metrics() models.LearningMetrics {
	return *p.metrics.Load()
}

// RestoreMetrics installs previously persisted metrics, typically at startup.
func (p *Pipeline) RestoreMetrics(m models.LearningMetrics) {
	p.metrics.Store(&m)
}

func (p *Pipeline) Deploy() Deployment {
	return Deployment{
		Knowledge: p.store.Snapshot(),
		Metrics:   p.Metrics(),
		At:        p.now(),
	}
}

type cycle struct {
	interactions []models.Interaction
	items        []Item
	processed    []ProcessedItem
	knowledge    []models.KnowledgeEntry
	folded       int
	evicted      int
	successful   int
	total        int
	accuracy     float64
	metrics      models.LearningMetrics
	at           time.Time
}

// RunCycle executes one feedback cycle. Cycles never overlap; a second caller waits
// for the running one to finish.
func (p *Pipeline) RunCycle(ctx context.Context) (models.LearningMetrics, error) {
	p.running.Lock()
	defer p.running.Unlock()

	start := time.Now()
	c := &cycle{at: p.now()}

	stages := []struct {
		name string
		run  func(context.Context, *cycle) error
	}{
		{StageCollect, p.collect},
		{StageProcess, p.process},
		{StageFold, p.fold},
		{StageRecompute, p.recompute},
		{StageEvaluate, p.evaluate},
		{StageCommit, p.commit},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			logger.Warn("Learning cycle cancelled", zap.String("stage", stage.name), zap.Error(err))
			return p.Metrics(), abort(stage.name, err)
		}
		if err := stage.run(ctx, c); err != nil {
			logger.Error("Learning cycle aborted",
				zap.String("stage", stage.name),
				zap.Error(err),
			)
			return p.Metrics(), abort(stage.name, err)
		}
	}

	logger.Info("Learning cycle completed",
		zap.Int("collected", len(c.items)),
		zap.Int("folded", c.folded),
		zap.Int("evicted", c.evicted),
		zap.Int("knowledge_size", len(c.knowledge)),
		zap.Float64("accuracy", c.metrics.Accuracy),
		zap.Float64("knowledge_level", c.metrics.KnowledgeLevel),
		zap.Duration("duration", time.Since(start)),
	)

	return c.metrics, nil
}

func (p *Pipeline) collect(ctx context.Context, c *cycle) error {
	c.interactions = p.log.Snapshot()

	recent := c.interactions
	if len(recent) > p.window {
		recent = recent[len(recent)-p.window:]
	}
	for _, in := range recent {
		c.items = append(c.items, interactionItem(in))
	}

	if p.updates != nil {
		updates, err := p.updates.FetchUpdates(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch legal updates: %w", err)
		}
		for _, it := range updates {
			c.items = append(c.items, tag(it, SourceLegalUpdates, TypeNewLaw, DefaultUpdateWeight))
		}
	}

	if p.experts != nil {
		feedback, err := p.experts.FetchFeedback(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch expert feedback: %w", err)
		}
		for _, it := range feedback {
			c.items = append(c.items, tag(it, SourceExpert, TypeExpertFeedback, DefaultExpertWeight))
		}
	}

	logger.Debug("Collected learning data",
		zap.Int("interactions", len(recent)),
		zap.Int("items", len(c.items)),
	)
	return nil
}

func tag(it Item, source, typ string, weight float64) Item {
	if it.Source == "" {
		it.Source = source
	}
	if it.Type == "" {
		it.Type = typ
	}
	if it.Weight == 0 {
		it.Weight = weight
	}
	return it
}

func (p *Pipeline) process(_ context.Context, c *cycle) error {
	c.processed = make([]ProcessedItem, 0, len(c.items))
	for _, it := range c.items {
		c.processed = append(c.processed, ProcessedItem{
			Item:     it,
			Features: p.analyzer.Extract(it.Text()),
		})
	}
	return nil
}

func (p *Pipeline) fold(_ context.Context, c *cycle) error {
	entries := p.store.Snapshot()
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.ID] = i
	}

	for _, it := range c.processed {
		if !it.Foldable() {
			continue
		}
		if it.Weight < 0 || it.Weight > 1 {
			return fmt.Errorf("item %q has weight %v outside [0,1]", it.Title, it.Weight)
		}

		entry := p.knowledgeEntry(it, c.at)
		if i, ok := index[entry.ID]; ok && sameKnowledge(entries[i], entry) {
			continue
		}
		entries = knowledge.Upsert(entries, entry)
		if _, ok := index[entry.ID]; !ok {
			index[entry.ID] = len(entries) - 1
		}
		c.folded++
	}

	c.knowledge = knowledge.Evict(entries, p.store.Capacity())
	c.evicted = len(entries) - len(c.knowledge)
	return nil
}

func (p *Pipeline) knowledgeEntry(it ProcessedItem, at time.Time) models.KnowledgeEntry {
	title := it.Title
	if title == "" {
		title = "Unknown"
	}
	category := it.Category
	if category == "" {
		category = it.Features.Category
	}
	importance := it.Weight
	if importance == 0 {
		importance = defaultFoldWeight
	}

	return models.KnowledgeEntry{
		ID:          utils.StableID("kb", it.Source, title),
		Category:    category,
		Title:       title,
		Content:     it.Content,
		Keywords:    it.Features.Keywords,
		Importance:  importance,
		LastUpdated: at,
		Source:      it.Source,
		Type:        it.Type,
	}
}

// sameKnowledge reports whether re-folding b over a would change nothing but the
// update time.
func sameKnowledge(a, b models.KnowledgeEntry) bool {
	return a.Title == b.Title &&
		a.Content == b.Content &&
		a.Category == b.Category &&
		a.Importance == b.Importance &&
		a.Source == b.Source &&
		a.Type == b.Type
}

func (p *Pipeline) recompute(_ context.Context, c *cycle) error {
	c.successful, c.total, c.accuracy = evaluation.Accuracy(c.interactions)
	return nil
}

func (p *Pipeline) evaluate(_ context.Context, c *cycle) error {
	c.metrics = p.evaluator.Evaluate(evaluation.Input{
		Successful:   c.successful,
		Total:        c.total,
		Accuracy:     c.accuracy,
		Interactions: c.interactions,
		Knowledge:    c.knowledge,
		LastUpdate:   c.at,
		Now:          c.at,
	})
	return nil
}

func (p *Pipeline) commit(ctx context.Context, c *cycle) error {
	if p.repo != nil {
		if err := p.repo.CommitCycle(ctx, c.knowledge, c.metrics); err != nil {
			return fmt.Errorf("failed to persist cycle: %w", err)
		}
	}
	p.store.Replace(c.knowledge)
	m := c.metrics
	p.metrics.Store(&m)
	return nil
}
