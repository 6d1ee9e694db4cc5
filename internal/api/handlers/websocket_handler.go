package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/pkg/logger"
)

// WebSocketHandler streams chat answers word by word, then sends the sources and
// suggestions in a closing message.
type WebSocketHandler struct {
	chat *ChatHandler
}

func NewWebSocketHandler(chat *ChatHandler) *WebSocketHandler {
	return &WebSocketHandler{
		chat: chat,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

// HandleConnection answers chat messages in order. Each connection gets its own
// context, cancelled as soon as the client goes away so in-flight answers stop.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	ctx, cancel := context.WithCancel(context.Background())
	messages := make(chan wsMessage)
	done := make(chan struct{})
	go h.readMessages(ctx, cancel, c, messages, done)

	defer func() {
		cancel()
		c.Close()
		<-done
		logger.Info("WebSocket connection closed")
	}()

	for msg := range messages {
		if msg.Type != "chat" {
			continue
		}

		if strings.TrimSpace(msg.Content) == "" {
			h.sendError(c, "Message is required")
			continue
		}

		if err := h.streamResponse(ctx, c, msg.Content, msg.UserID); err != nil {
			if ctx.Err() == nil {
				logger.Error("Failed to stream response", zap.Error(err))
			}
			break
		}
	}
}

// readMessages is the connection's only reader. A read error ends the connection
// context and closes messages.
func (h *WebSocketHandler) readMessages(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, messages chan<- wsMessage, done chan<- struct{}) {
	defer close(done)
	defer close(messages)
	defer cancel()

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			return
		}

		select {
		case messages <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebSocketHandler) streamResponse(ctx context.Context, c *websocket.Conn, message, userID string) error {
	if err := h.sendChunk(c, "status", "Đang xử lý câu hỏi..."); err != nil {
		return err
	}

	resp := h.chat.answer(ctx, message, userID)
	if err := ctx.Err(); err != nil {
		return err
	}

	words := splitIntoWords(resp.Content)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return c.WriteJSON(map[string]interface{}{
		"type":               "complete",
		"interaction_id":     resp.InteractionID,
		"intent":             resp.Intent,
		"confidence":         resp.Confidence,
		"sources":            resp.Sources,
		"suggestions":        resp.Suggestions,
		"processing_time_ms": resp.ProcessingTimeMs,
	})
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	if err := c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}); err != nil {
		logger.Warn("Failed to send websocket error", zap.Error(err))
	}
}

// splitIntoWords keeps line breaks as their own tokens so the client can rebuild the
// layout of templated answers.
func splitIntoWords(text string) []string {
	words := []string{}
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch r {
		case ' ':
			flush()
		case '\n':
			flush()
			words = append(words, "\n")
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return words
}
