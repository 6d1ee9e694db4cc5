package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

// ResponseCache stores rendered chat responses. The redis client satisfies it; a nil
// cache disables caching.
type ResponseCache interface {
	GetResponse(ctx context.Context, input string, dst interface{}) (bool, error)
	SetResponse(ctx context.Context, input string, response interface{}) error
	InvalidateResponses(ctx context.Context) error
}

type ChatHandler struct {
	engine *engine.Engine
	cache  ResponseCache
}

func NewChatHandler(eng *engine.Engine, cache ResponseCache) *ChatHandler {
	return &ChatHandler{
		engine: eng,
		cache:  cache,
	}
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	InteractionID    string                  `json:"interaction_id"`
	Intent           models.IntentResult     `json:"intent"`
	Content          string                  `json:"content"`
	Confidence       float64                 `json:"confidence"`
	Sources          []models.ScoredDocument `json:"sources"`
	Suggestions      []string                `json:"suggestions"`
	ProcessingTimeMs float64                 `json:"processing_time_ms"`
	Cached           bool                    `json:"cached"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	return c.JSON(h.answer(c.UserContext(), req.Message, req.UserID))
}

// answer serves from the cache when possible and records the exchange as an
// interaction either way.
func (h *ChatHandler) answer(ctx context.Context, message, userID string) chatResponse {
	start := time.Now()

	var resp engine.Response
	cached := false
	if h.cache != nil {
		hit, err := h.cache.GetResponse(ctx, message, &resp)
		if err != nil {
			logger.Warn("Response cache unavailable", zap.Error(err))
		}
		cached = hit
	}

	if !cached {
		resp = h.engine.Handle(ctx, engine.Request{Input: message, UserID: userID})
		if h.cache != nil && resp.Confidence > apologyThreshold {
			if err := h.cache.SetResponse(ctx, message, resp); err != nil {
				logger.Warn("Failed to cache response", zap.Error(err))
			}
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	rec := h.engine.RecordInteraction(ctx, message, resp.Content, nil, &elapsed)

	return chatResponse{
		InteractionID:    rec.ID,
		Intent:           resp.Intent,
		Content:          resp.Content,
		Confidence:       resp.Confidence,
		Sources:          resp.Sources,
		Suggestions:      resp.Suggestions,
		ProcessingTimeMs: elapsed,
		Cached:           cached,
	}
}

// Fallback answers carry confidence 0.1 and must not be cached.
const apologyThreshold = 0.1

type rankRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (h *ChatHandler) HandleRank(c *fiber.Ctx) error {
	var req rankRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Limit must not be negative",
		})
	}

	ranked, err := h.engine.Rank(c.UserContext(), req.Query, req.Limit)
	if err != nil {
		logger.Error("Failed to rank documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rank documents",
		})
	}

	if ranked == nil {
		ranked = []models.ScoredDocument{}
	}

	return c.JSON(fiber.Map{
		"query":   req.Query,
		"results": ranked,
		"count":   len(ranked),
	})
}
