package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/ingestion"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	documents engine.DocumentStore
	cache     ResponseCache
}

func NewDocumentHandler(processor *ingestion.Processor, documents engine.DocumentStore, cache ResponseCache) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		documents: documents,
		cache:     cache,
	}
}

func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	var req ingestion.Input
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.HTML == "" && req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "HTML or content is required",
		})
	}

	doc, err := h.processor.Process(c.UserContext(), req)
	if errors.Is(err, ingestion.ErrEmptyContent) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No text could be extracted from the document",
		})
	}
	if err != nil {
		logger.Error("Failed to process document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	// New documents can change the ranking behind any cached answer.
	if h.cache != nil {
		if err := h.cache.InvalidateResponses(c.UserContext()); err != nil {
			logger.Warn("Failed to invalidate response cache", zap.Error(err))
		}
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.documents.ListDocuments(c.UserContext())
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}
	if docs == nil {
		docs = []models.Document{}
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}
