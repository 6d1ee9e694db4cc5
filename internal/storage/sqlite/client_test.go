package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vilaw/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(filepath.Join(t.TempDir(), "vilaw.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.InitSchema())
	return c
}

func TestDocuments(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	issued := time.Date(2020, 6, 17, 0, 0, 0, 0, time.UTC)
	doc := models.Document{
		ID:       "doc_1",
		Title:    "Luật Doanh nghiệp 2020",
		Content:  "Luật này quy định về việc thành lập doanh nghiệp.",
		Category: "business",
		Type:     "law",
		Keywords: []string{"doanh nghiệp", "thành lập"},
		Date:     issued,
		Source:   "Quốc hội",
	}
	require.NoError(t, c.SaveDocument(ctx, doc))
	require.NoError(t, c.SaveDocument(ctx, models.Document{ID: "doc_2", Title: "Không ngày", Content: "x"}))

	got, err := c.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, doc.Title, got.Title)
	assert.Equal(t, doc.Keywords, got.Keywords)
	assert.True(t, issued.Equal(got.Date))

	_, err = c.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	doc.Title = "Luật Doanh nghiệp 2020 (sửa đổi)"
	require.NoError(t, c.SaveDocument(ctx, doc))

	docs, err := c.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc_1", docs[0].ID)
	assert.Equal(t, doc.Title, docs[0].Title)
	assert.True(t, docs[1].Date.IsZero())
	assert.Empty(t, docs[1].Keywords)
}

func TestSeedDocumentsOnlyWhenEmpty(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	seed := []models.Document{{ID: "a", Title: "A", Content: "a"}, {ID: "b", Title: "B", Content: "b"}}

	n, err := c.SeedDocuments(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = c.SeedDocuments(ctx, []models.Document{{ID: "c", Title: "C", Content: "c"}})
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := c.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestInteractions(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	elapsed := 1200.0
	for i, q := range []string{"q1", "q2", "q3"} {
		in := models.Interaction{
			ID:        q,
			Question:  q,
			Answer:    "a",
			Category:  "labor",
			Sentiment: "neutral",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if i == 1 {
			in.ResponseTimeMs = &elapsed
		}
		require.NoError(t, c.SaveInteraction(ctx, in))
	}

	two := 2
	require.NoError(t, c.SaveInteraction(ctx, models.Interaction{
		ID:            "q1",
		Question:      "q1",
		Rating:        &two,
		RatingAmended: true,
		Timestamp:     base,
	}))

	all, err := c.LoadInteractions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "q1", all[0].ID)
	require.NotNil(t, all[0].Rating)
	assert.Equal(t, 2, *all[0].Rating)
	assert.True(t, all[0].RatingAmended)
	assert.Equal(t, "labor", all[0].Category)
	require.NotNil(t, all[1].ResponseTimeMs)
	assert.Equal(t, elapsed, *all[1].ResponseTimeMs)
	assert.Nil(t, all[2].Rating)
	assert.True(t, base.Add(2*time.Minute).Equal(all[2].Timestamp))

	recent, err := c.LoadInteractions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].ID)
	assert.Equal(t, "q3", recent[1].ID)
}

func TestCommitCycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.LoadMetrics(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.KnowledgeEntry{
		{ID: "kb_z", Category: "tax", Title: "Thuế", Content: "thuế", Importance: 0.6, LastUpdated: at, Source: "seed"},
		{ID: "kb_a", Category: "labor", Title: "Lao động", Content: "lao động", Keywords: []string{"lương"}, Importance: 0.9, LastUpdated: at},
	}
	m := models.LearningMetrics{TotalInteractions: 4, SuccessfulAnswers: 3, Accuracy: 75, KnowledgeBaseSize: 2, LastUpdate: at}

	require.NoError(t, c.CommitCycle(ctx, entries, m))

	loaded, err := c.LoadKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "kb_z", loaded[0].ID)
	assert.Equal(t, []string{"lương"}, loaded[1].Keywords)
	assert.True(t, at.Equal(loaded[1].LastUpdated))

	got, err := c.LoadMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 75.0, got.Accuracy)
	assert.Equal(t, 2, got.KnowledgeBaseSize)
	assert.True(t, at.Equal(got.LastUpdate))

	m.Accuracy = 80
	require.NoError(t, c.CommitCycle(ctx, entries[:1], m))

	loaded, err = c.LoadKnowledge(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	got, err = c.LoadMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80.0, got.Accuracy)
}

func TestCommitCycleTrimsMetricsHistory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < MetricsHistory+25; i++ {
		m := models.LearningMetrics{Accuracy: float64(i), LastUpdate: at.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, c.CommitCycle(ctx, nil, m))
	}

	var rows int
	require.NoError(t, c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learning_metrics`).Scan(&rows))
	assert.Equal(t, MetricsHistory, rows)

	got, err := c.LoadMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(MetricsHistory+24), got.Accuracy)
}

func TestCommitCycleIsAtomic(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first := []models.KnowledgeEntry{{ID: "kb_1", Category: "tax", Title: "t", Content: "c", Importance: 0.5, LastUpdated: at}}
	require.NoError(t, c.CommitCycle(ctx, first, models.LearningMetrics{Accuracy: 10, LastUpdate: at}))

	dup := []models.KnowledgeEntry{first[0], first[0]}
	err := c.CommitCycle(ctx, dup, models.LearningMetrics{Accuracy: 99, LastUpdate: at})
	require.Error(t, err)

	loaded, err := c.LoadKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	got, err := c.LoadMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Accuracy)
}
