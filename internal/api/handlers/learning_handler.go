package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/evaluation"
	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

type LearningHandler struct {
	engine *engine.Engine
	cache  ResponseCache
	now    func() time.Time
}

func NewLearningHandler(eng *engine.Engine, cache ResponseCache) *LearningHandler {
	return &LearningHandler{
		engine: eng,
		cache:  cache,
		now:    time.Now,
	}
}

// RunCycle runs one feedback cycle and drops cached answers once it commits. The
// scheduler in cmd/api calls it as well as the HTTP trigger. Aborts are logged by the
// pipeline with their stage.
func (h *LearningHandler) RunCycle(ctx context.Context) (models.LearningMetrics, error) {
	m, err := h.engine.RunFeedbackCycle(ctx)
	if err != nil {
		return m, err
	}

	if h.cache != nil {
		if err := h.cache.InvalidateResponses(ctx); err != nil {
			logger.Warn("Failed to invalidate response cache", zap.Error(err))
		}
	}

	logger.Info("Learning cycle completed",
		zap.Int("knowledge_entries", m.KnowledgeBaseSize),
		zap.Float64("accuracy", m.Accuracy),
		zap.Float64("knowledge_level", m.KnowledgeLevel),
	)
	return m, nil
}

func (h *LearningHandler) TriggerCycle(c *fiber.Ctx) error {
	m, err := h.RunCycle(c.UserContext())
	if err != nil {
		body := fiber.Map{
			"error":   "Learning cycle aborted",
			"metrics": m,
		}
		var aborted *learning.CycleAbortedError
		if errors.As(err, &aborted) {
			body["stage"] = aborted.Stage
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	return c.JSON(fiber.Map{
		"metrics": m,
		"report":  evaluation.GenerateReport(m),
	})
}

func (h *LearningHandler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(h.engine.Stats(h.now()))
}

func (h *LearningHandler) SearchKnowledge(c *fiber.Ctx) error {
	entries := h.engine.SearchKnowledge(c.Query("q"))
	if entries == nil {
		entries = []models.KnowledgeEntry{}
	}
	return c.JSON(fiber.Map{
		"query":   c.Query("q"),
		"entries": entries,
		"count":   len(entries),
	})
}

func (h *LearningHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": h.engine.CategoryCounts(),
	})
}
