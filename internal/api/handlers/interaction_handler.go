package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/interaction"
	"github.com/vilaw/backend/pkg/logger"
)

type InteractionHandler struct {
	engine *engine.Engine
}

func NewInteractionHandler(eng *engine.Engine) *InteractionHandler {
	return &InteractionHandler{engine: eng}
}

type recordRequest struct {
	Question       string   `json:"question"`
	Answer         string   `json:"answer"`
	Rating         *int     `json:"rating"`
	ResponseTimeMs *float64 `json:"response_time_ms"`
}

func (h *InteractionHandler) Record(c *fiber.Ctx) error {
	var req recordRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Question) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}
	if req.Rating != nil && !validRating(*req.Rating) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rating must be between 1 and 5",
		})
	}
	if req.ResponseTimeMs != nil && *req.ResponseTimeMs < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Response time must not be negative",
		})
	}

	rec := h.engine.RecordInteraction(c.UserContext(), req.Question, req.Answer, req.Rating, req.ResponseTimeMs)
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *InteractionHandler) Get(c *fiber.Ctx) error {
	rec, err := h.engine.Interaction(c.Params("id"))
	if errors.Is(err, interaction.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Interaction not found",
		})
	}
	if err != nil {
		logger.Error("Failed to get interaction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get interaction",
		})
	}
	return c.JSON(rec)
}

// AmendRating allows a single correction per interaction.
func (h *InteractionHandler) AmendRating(c *fiber.Ctx) error {
	var req struct {
		Rating int `json:"rating"`
	}
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if !validRating(req.Rating) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Rating must be between 1 and 5",
		})
	}

	id := c.Params("id")
	if h.engine.AmendRating(c.UserContext(), id, req.Rating) {
		rec, _ := h.engine.Interaction(id)
		return c.JSON(rec)
	}

	if _, err := h.engine.Interaction(id); errors.Is(err, interaction.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Interaction not found",
		})
	}
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"error": "Rating was already amended",
	})
}

func validRating(r int) bool {
	return r >= 1 && r <= 5
}
