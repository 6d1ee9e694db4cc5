package handlers

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	wsclient "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/storage/models"
)

func serveWebSocket(t *testing.T, h *WebSocketHandler) string {
	t.Helper()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", h.Upgrade, websocket.New(h.HandleConnection))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

func dial(t *testing.T, url string) *wsclient.Conn {
	t.Helper()
	conn, _, err := wsclient.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestWebSocketChat(t *testing.T) {
	f := newFixture(t)
	url := serveWebSocket(t, NewWebSocketHandler(NewChatHandler(f.engine, nil)))

	conn := dial(t, url)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat", "content": "  "}))

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Message is required", msg["error"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat", "content": "luật lao động", "user_id": "u1"}))

	msg = nil
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg["type"])

	var text strings.Builder
	var complete map[string]interface{}
	for complete == nil {
		msg = nil
		require.NoError(t, conn.ReadJSON(&msg))
		switch msg["type"] {
		case "chunk":
			text.WriteString(msg["content"].(string))
		case "complete":
			complete = msg
		default:
			t.Fatalf("unexpected message %v", msg)
		}
	}

	assert.True(t, strings.HasPrefix(text.String(), "Dựa trên "))
	intent := complete["intent"].(map[string]interface{})
	assert.Equal(t, "legal_query", intent["type"])
	assert.NotEmpty(t, complete["sources"])

	rec, err := f.engine.Interaction(complete["interaction_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "luật lao động", rec.Question)
}

type blockingDocs struct {
	once      sync.Once
	started   chan struct{}
	cancelled chan struct{}
}

func (b *blockingDocs) ListDocuments(ctx context.Context) ([]models.Document, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	close(b.cancelled)
	return nil, ctx.Err()
}

func TestWebSocketDisconnectCancelsAnswer(t *testing.T) {
	docs := &blockingDocs{started: make(chan struct{}), cancelled: make(chan struct{})}
	eng := engine.New(engine.Config{Documents: docs})
	url := serveWebSocket(t, NewWebSocketHandler(NewChatHandler(eng, nil)))

	conn := dial(t, url)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "chat", "content": "luật lao động"}))

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "status", msg["type"])

	select {
	case <-docs.started:
	case <-time.After(5 * time.Second):
		t.Fatal("answer never reached the document store")
	}

	require.NoError(t, conn.Close())

	select {
	case <-docs.cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("answer context was not cancelled after the client left")
	}
}
