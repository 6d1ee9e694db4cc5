package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/storage/models"
	"github.com/vilaw/backend/pkg/logger"
)

var ErrNotFound = errors.New("not found")

// MetricsHistory is the number of committed metric rows kept in learning_metrics.
const MetricsHistory = 100

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		summary TEXT,
		category TEXT,
		doc_type TEXT,
		keywords TEXT,
		issued_at INTEGER,
		source TEXT,
		importance REAL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);

	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		keywords TEXT,
		importance REAL NOT NULL,
		source TEXT,
		entry_type TEXT,
		last_updated INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_category ON knowledge_entries(category);

	CREATE TABLE IF NOT EXISTS interactions (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		answer TEXT,
		rating INTEGER,
		response_time_ms REAL,
		category TEXT,
		sentiment TEXT,
		rating_amended INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);

	CREATE TABLE IF NOT EXISTS learning_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		total_interactions INTEGER NOT NULL,
		successful_answers INTEGER NOT NULL,
		accuracy REAL NOT NULL,
		knowledge_level REAL NOT NULL,
		legal_coverage REAL NOT NULL,
		responsiveness REAL NOT NULL,
		user_satisfaction REAL NOT NULL,
		knowledge_base_size INTEGER NOT NULL,
		last_update INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) SaveDocument(ctx context.Context, doc models.Document) error {
	query := `
		INSERT INTO documents (id, title, content, summary, category, doc_type, keywords, issued_at, source, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			category = excluded.category,
			doc_type = excluded.doc_type,
			keywords = excluded.keywords,
			issued_at = excluded.issued_at,
			source = excluded.source,
			importance = excluded.importance,
			updated_at = excluded.updated_at
	`

	keywords, err := json.Marshal(doc.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}

	now := time.Now().Unix()
	_, err = c.db.ExecContext(ctx,
		query,
		doc.ID,
		doc.Title,
		doc.Content,
		doc.Summary,
		doc.Category,
		doc.Type,
		string(keywords),
		unixOrNull(doc.Date),
		doc.Source,
		doc.Importance,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	logger.Debug("Document saved", zap.String("doc_id", doc.ID))
	return nil
}

func (c *Client) GetDocument(ctx context.Context, id string) (models.Document, error) {
	query := `SELECT id, title, content, summary, category, doc_type, keywords, issued_at, source, importance FROM documents WHERE id = ?`

	doc, err := scanDocument(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the corpus in insertion order.
func (c *Client) ListDocuments(ctx context.Context) ([]models.Document, error) {
	query := `SELECT id, title, content, summary, category, doc_type, keywords, issued_at, source, importance FROM documents ORDER BY rowid`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

func (c *Client) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.Document, error) {
	var doc models.Document
	var summary, category, docType, keywords, source sql.NullString
	var issuedAt sql.NullInt64

	err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Content,
		&summary,
		&category,
		&docType,
		&keywords,
		&issuedAt,
		&source,
		&doc.Importance,
	)
	if err != nil {
		return models.Document{}, err
	}

	doc.Summary = summary.String
	doc.Category = category.String
	doc.Type = docType.String
	doc.Source = source.String
	if issuedAt.Valid {
		doc.Date = time.Unix(issuedAt.Int64, 0).UTC()
	}
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &doc.Keywords); err != nil {
			return models.Document{}, fmt.Errorf("failed to decode keywords of %s: %w", doc.ID, err)
		}
	}
	return doc, nil
}

// LoadKnowledge returns the last committed knowledge set in store order.
func (c *Client) LoadKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error) {
	query := `
		SELECT id, category, title, content, keywords, importance, source, entry_type, last_updated
		FROM knowledge_entries
		ORDER BY position
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge: %w", err)
	}
	defer rows.Close()

	var entries []models.KnowledgeEntry
	for rows.Next() {
		var e models.KnowledgeEntry
		var keywords, source, entryType sql.NullString
		var lastUpdated int64

		err := rows.Scan(&e.ID, &e.Category, &e.Title, &e.Content, &keywords, &e.Importance, &source, &entryType, &lastUpdated)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if keywords.Valid && keywords.String != "" {
			if err := json.Unmarshal([]byte(keywords.String), &e.Keywords); err != nil {
				return nil, fmt.Errorf("failed to decode keywords of %s: %w", e.ID, err)
			}
		}
		e.Source = source.String
		e.Type = entryType.String
		e.LastUpdated = time.Unix(0, lastUpdated).UTC()
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SaveInteraction inserts or overwrites a record, so amended ratings reuse it.
func (c *Client) SaveInteraction(ctx context.Context, in models.Interaction) error {
	query := `
		INSERT INTO interactions (id, question, answer, rating, response_time_ms, category, sentiment, rating_amended, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rating = excluded.rating,
			rating_amended = excluded.rating_amended
	`

	var rating sql.NullInt64
	if in.Rating != nil {
		rating = sql.NullInt64{Int64: int64(*in.Rating), Valid: true}
	}
	var responseTime sql.NullFloat64
	if in.ResponseTimeMs != nil {
		responseTime = sql.NullFloat64{Float64: *in.ResponseTimeMs, Valid: true}
	}

	amended := 0
	if in.RatingAmended {
		amended = 1
	}

	_, err := c.db.ExecContext(ctx,
		query,
		in.ID,
		in.Question,
		in.Answer,
		rating,
		responseTime,
		in.Category,
		in.Sentiment,
		amended,
		in.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	logger.Debug("Interaction saved", zap.String("id", in.ID), zap.String("category", in.Category))
	return nil
}

// LoadInteractions returns the newest limit records, oldest first.
func (c *Client) LoadInteractions(ctx context.Context, limit int) ([]models.Interaction, error) {
	query := `
		SELECT id, question, answer, rating, response_time_ms, category, sentiment, rating_amended, created_at
		FROM (SELECT *, rowid AS seq FROM interactions ORDER BY created_at DESC, seq DESC LIMIT ?)
		ORDER BY created_at, seq
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	defer rows.Close()

	var records []models.Interaction
	for rows.Next() {
		var r models.Interaction
		var answer, category, sentiment sql.NullString
		var rating sql.NullInt64
		var responseTime sql.NullFloat64
		var amended int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Question, &answer, &rating, &responseTime, &category, &sentiment, &amended, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Answer = answer.String
		r.Category = category.String
		r.Sentiment = sentiment.String
		r.RatingAmended = amended == 1
		r.Timestamp = time.Unix(0, createdAt).UTC()
		if rating.Valid {
			v := int(rating.Int64)
			r.Rating = &v
		}
		if responseTime.Valid {
			v := responseTime.Float64
			r.ResponseTimeMs = &v
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// CommitCycle replaces the stored knowledge set, appends the metric row and trims the
// metric history to MetricsHistory rows in one transaction. Nothing is written if any
// statement fails.
func (c *Client) CommitCycle(ctx context.Context, entries []models.KnowledgeEntry, m models.LearningMetrics) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_entries`); err != nil {
		return fmt.Errorf("failed to clear knowledge: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_entries (id, position, category, title, content, keywords, importance, source, entry_type, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare knowledge insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		keywords, err := json.Marshal(e.Keywords)
		if err != nil {
			return fmt.Errorf("failed to encode keywords of %s: %w", e.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			e.ID,
			i,
			e.Category,
			e.Title,
			e.Content,
			string(keywords),
			e.Importance,
			e.Source,
			e.Type,
			e.LastUpdated.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert knowledge entry %s: %w", e.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO learning_metrics (total_interactions, successful_answers, accuracy, knowledge_level, legal_coverage,
			responsiveness, user_satisfaction, knowledge_base_size, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.TotalInteractions,
		m.SuccessfulAnswers,
		m.Accuracy,
		m.KnowledgeLevel,
		m.LegalCoverage,
		m.Responsiveness,
		m.UserSatisfaction,
		m.KnowledgeBaseSize,
		m.LastUpdate.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record metrics: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM learning_metrics
		WHERE id NOT IN (SELECT id FROM learning_metrics ORDER BY id DESC LIMIT ?)
	`, MetricsHistory)
	if err != nil {
		return fmt.Errorf("failed to trim metrics history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}

	logger.Info("Learning cycle persisted",
		zap.Int("knowledge_entries", len(entries)),
		zap.Float64("accuracy", m.Accuracy),
	)
	return nil
}

// LoadMetrics returns the most recently committed metrics, or ErrNotFound before the
// first cycle.
func (c *Client) LoadMetrics(ctx context.Context) (models.LearningMetrics, error) {
	query := `
		SELECT total_interactions, successful_answers, accuracy, knowledge_level, legal_coverage,
			responsiveness, user_satisfaction, knowledge_base_size, last_update
		FROM learning_metrics
		ORDER BY id DESC
		LIMIT 1
	`

	var m models.LearningMetrics
	var lastUpdate int64
	err := c.db.QueryRowContext(ctx, query).Scan(
		&m.TotalInteractions,
		&m.SuccessfulAnswers,
		&m.Accuracy,
		&m.KnowledgeLevel,
		&m.LegalCoverage,
		&m.Responsiveness,
		&m.UserSatisfaction,
		&m.KnowledgeBaseSize,
		&lastUpdate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LearningMetrics{}, ErrNotFound
	}
	if err != nil {
		return models.LearningMetrics{}, fmt.Errorf("failed to load metrics: %w", err)
	}

	m.LastUpdate = time.Unix(0, lastUpdate).UTC()
	return m, nil
}

// SeedDocuments inserts docs only into an empty corpus and reports how many were added.
func (c *Client) SeedDocuments(ctx context.Context, docs []models.Document) (int, error) {
	n, err := c.CountDocuments(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	for _, d := range docs {
		if err := c.SaveDocument(ctx, d); err != nil {
			return 0, err
		}
	}

	logger.Info("Seeded document corpus", zap.Int("documents", len(docs)))
	return len(docs), nil
}

func unixOrNull(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
