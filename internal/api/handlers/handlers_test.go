package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/ingestion"
	"github.com/vilaw/backend/internal/interaction"
	"github.com/vilaw/backend/internal/knowledge"
	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/seed"
	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/internal/storage/sqlite"
	"github.com/vilaw/backend/pkg/logger"
)

type memCache struct {
	mu            sync.Mutex
	entries       map[string][]byte
	invalidations int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (m *memCache) GetResponse(_ context.Context, input string, dst interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.entries[input]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (m *memCache) SetResponse(_ context.Context, input string, response interface{}) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[input] = data
	m.mu.Unlock()
	return nil
}

func (m *memCache) InvalidateResponses(context.Context) error {
	m.mu.Lock()
	m.entries = map[string][]byte{}
	m.invalidations++
	m.mu.Unlock()
	return nil
}

type fixture struct {
	app    *fiber.App
	db     *sqlite.Client
	engine *engine.Engine
	cache  *memCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "vilaw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	docs, err := seed.Documents()
	require.NoError(t, err)
	_, err = db.SeedDocuments(ctx, docs)
	require.NoError(t, err)

	entries, err := seed.Knowledge(time.Now())
	require.NoError(t, err)
	store := knowledge.NewStore(knowledge.DefaultCapacity)
	store.Replace(entries)

	analyzer := learning.NewAnalyzer(nil)
	log := interaction.NewLog(interaction.DefaultLogSize, interaction.WithAnnotator(analyzer))
	pipeline := learning.NewPipeline(store, log, learning.WithAnalyzer(analyzer), learning.WithRepository(db))

	eng := engine.New(engine.Config{
		Documents:    db,
		Knowledge:    store,
		Log:          log,
		Pipeline:     pipeline,
		Interactions: db,
	})

	cache := newMemCache()
	chat := NewChatHandler(eng, cache)
	interactions := NewInteractionHandler(eng)
	learningHandler := NewLearningHandler(eng, cache)
	documents := NewDocumentHandler(ingestion.NewProcessor(db, analyzer), db, cache)

	app := fiber.New()
	api := app.Group("/api/v1")
	api.Post("/chat", chat.HandleChat)
	api.Post("/rank", chat.HandleRank)
	api.Post("/interactions", interactions.Record)
	api.Get("/interactions/:id", interactions.Get)
	api.Put("/interactions/:id/rating", interactions.AmendRating)
	api.Post("/learning/cycle", learningHandler.TriggerCycle)
	api.Get("/learning/metrics", learningHandler.GetMetrics)
	api.Get("/knowledge/search", learningHandler.SearchKnowledge)
	api.Get("/knowledge/categories", learningHandler.GetCategories)
	api.Post("/documents", documents.UploadDocument)
	api.Get("/documents", documents.ListDocuments)

	return &fixture{app: app, db: db, engine: eng, cache: cache}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestChat(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "luật lao động"})
	require.Equal(t, http.StatusOK, status)

	intent := body["intent"].(map[string]interface{})
	assert.Equal(t, "legal_query", intent["type"])
	assert.Equal(t, "labor", intent["subcategory"])
	assert.Equal(t, false, body["cached"])

	sources := body["sources"].([]interface{})
	require.NotEmpty(t, sources)
	assert.Equal(t, "doc_3", sources[0].(map[string]interface{})["id"])

	id := body["interaction_id"].(string)
	rec, err := f.engine.Interaction(id)
	require.NoError(t, err)
	assert.Equal(t, "luật lao động", rec.Question)
	assert.NotNil(t, rec.ResponseTimeMs)

	status, body = f.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "luật lao động"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["cached"])
	assert.NotEqual(t, id, body["interaction_id"])
}

func TestChatRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "   "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/chat", "{not json")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRank(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/rank", map[string]interface{}{"query": "luật lao động", "limit": 1})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["count"])

	status, body = f.do(t, http.MethodPost, "/api/v1/rank", map[string]interface{}{"query": "zzz"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["results"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/rank", map[string]interface{}{"query": "x", "limit": -1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRankHonoursLimitAboveDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, f.db.SaveDocument(ctx, models.Document{
			ID:       fmt.Sprintf("labor_extra_%d", i),
			Title:    fmt.Sprintf("Luật Lao động %d", i),
			Content:  "Quy định về luật lao động.",
			Category: "labor",
		}))
	}

	status, body := f.do(t, http.MethodPost, "/api/v1/rank", map[string]interface{}{"query": "luật lao động", "limit": 8})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(8), body["count"])
	assert.Len(t, body["results"], 8)

	status, body = f.do(t, http.MethodPost, "/api/v1/rank", map[string]interface{}{"query": "luật lao động"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(5), body["count"])
}

func TestInteractions(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{
		"question": "thủ tục khai thuế",
		"answer":   "…",
	})
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)
	assert.Equal(t, "tax", body["category"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{"question": "x", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/interactions", map[string]interface{}{"question": ""})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = f.do(t, http.MethodPut, "/api/v1/interactions/"+id+"/rating", map[string]int{"rating": 4})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(4), body["rating"])
	assert.Equal(t, true, body["rating_amended"])

	status, _ = f.do(t, http.MethodPut, "/api/v1/interactions/"+id+"/rating", map[string]int{"rating": 5})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPut, "/api/v1/interactions/"+id+"/rating", map[string]int{"rating": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPut, "/api/v1/interactions/missing/rating", map[string]int{"rating": 3})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodGet, "/api/v1/interactions/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, id, body["id"])

	status, _ = f.do(t, http.MethodGet, "/api/v1/interactions/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLearningCycle(t *testing.T) {
	f := newFixture(t)

	five := 5
	f.engine.RecordInteraction(context.Background(), "luật lao động", "trả lời", &five, nil)
	_, _ = f.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"message": "xin chào"})

	status, body := f.do(t, http.MethodPost, "/api/v1/learning/cycle", nil)
	require.Equal(t, http.StatusOK, status)
	m := body["metrics"].(map[string]interface{})
	assert.Equal(t, float64(2), m["total_interactions"])
	assert.Equal(t, float64(10), m["knowledge_base_size"])
	assert.Contains(t, body["report"], "Accuracy")
	assert.Equal(t, 1, f.cache.invalidations)
	assert.Empty(t, f.cache.entries)

	status, body = f.do(t, http.MethodGet, "/api/v1/learning/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["logged_interactions"])
	assert.Equal(t, float64(10), body["knowledge_entries"])
}

func TestAbortedCycleLogsOnce(t *testing.T) {
	f := newFixture(t)

	core, logs := observer.New(zapcore.InfoLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	require.NoError(t, f.db.Close())

	status, body := f.do(t, http.MethodPost, "/api/v1/learning/cycle", nil)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "commit", body["stage"])
	assert.Zero(t, f.cache.invalidations)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "Learning cycle aborted", errs[0].Message)
	assert.Equal(t, "commit", errs[0].ContextMap()["stage"])
}

func TestKnowledgeRoutes(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodGet, "/api/v1/knowledge/search?q=thu%E1%BA%BF", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Greater(t, body["count"], float64(0))

	status, body = f.do(t, http.MethodGet, "/api/v1/knowledge/search?q=zzzz", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{}, body["entries"])

	status, body = f.do(t, http.MethodGet, "/api/v1/knowledge/categories", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["categories"], 10)
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)

	status, body := f.do(t, http.MethodPost, "/api/v1/documents", map[string]string{
		"html":   "<html><head><title>Nghị định về hàng hải</title></head><body><p>Quy định về tàu biển và cảng biển.</p></body></html>",
		"source": "Chính phủ",
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Nghị định về hàng hải", body["title"])
	assert.Equal(t, 1, f.cache.invalidations)

	status, body = f.do(t, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(11), body["count"])

	status, body = f.do(t, http.MethodPost, "/api/v1/rank", map[string]string{"query": "nghị định về hàng hải"})
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.Equal(t, "Nghị định về hàng hải", results[0].(map[string]interface{})["title"])

	status, _ = f.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"source": "x"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"html": "<html><body></body></html>"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSplitIntoWords(t *testing.T) {
	assert.Equal(t, []string{"Dựa", "trên", "\n", "\n", "văn", "bản"}, splitIntoWords("Dựa trên\n\nvăn  bản"))
	assert.Empty(t, splitIntoWords(""))
}
