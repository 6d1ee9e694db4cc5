// Package app assembles the engine and its collaborators from configuration. Both the
// API server and the CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/api/handlers"
	"github.com/vilaw/backend/internal/cache/redis"
	"github.com/vilaw/backend/internal/engine"
	"github.com/vilaw/backend/internal/ingestion"
	"github.com/vilaw/backend/internal/intent"
	"github.com/vilaw/backend/internal/interaction"
	"github.com/vilaw/backend/internal/knowledge"
	"github.com/vilaw/backend/internal/learning"
	"github.com/vilaw/backend/internal/lexicon"
	"github.com/vilaw/backend/internal/metrics"
	"github.com/vilaw/backend/internal/seed"
	"github.com/vilaw/backend/internal/storage/sqlite"
	"github.com/vilaw/backend/internal/updates"
	"github.com/vilaw/backend/pkg/config"
	"github.com/vilaw/backend/pkg/logger"
)

type App struct {
	DB       *sqlite.Client
	Cache    *redis.Client
	Engine   *engine.Engine
	Analyzer *learning.Analyzer

	Chat         *handlers.ChatHandler
	Interactions *handlers.InteractionHandler
	Learning     *handlers.LearningHandler
	Documents    *handlers.DocumentHandler
	WebSocket    *handlers.WebSocketHandler
}

// New opens storage, restores the last committed state and wires the engine. When
// the database is empty it is seeded with the bundled corpus and knowledge base.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	lex := lexicon.Default()
	if cfg.Engine.LexiconFile != "" {
		loaded, err := lexicon.LoadFile(cfg.Engine.LexiconFile)
		if err != nil {
			return nil, err
		}
		lex = loaded
		logger.Info("Lexicon loaded", zap.String("path", cfg.Engine.LexiconFile), zap.String("version", lex.Version))
	}

	if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{DB: db}
	if err := a.build(ctx, cfg, lex); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, lex *lexicon.Lexicon) error {
	if cfg.SQLite.Seed {
		docs, err := seed.Documents()
		if err != nil {
			return err
		}
		if _, err := a.DB.SeedDocuments(ctx, docs); err != nil {
			return err
		}
	}

	entries, err := a.DB.LoadKnowledge(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 && cfg.SQLite.Seed {
		if entries, err = seed.Knowledge(time.Now()); err != nil {
			return err
		}
		logger.Info("Seeded knowledge base", zap.Int("entries", len(entries)))
	}

	store := knowledge.NewStore(cfg.Engine.KnowledgeCapacity)
	store.Replace(entries)

	a.Analyzer = learning.NewAnalyzer(lex)
	log := interaction.NewLog(cfg.Engine.InteractionLogSize, interaction.WithAnnotator(a.Analyzer))

	history, err := a.DB.LoadInteractions(ctx, cfg.Engine.InteractionLogSize)
	if err != nil {
		return err
	}
	log.Restore(history)

	experts, err := seed.ExpertFeedback()
	if err != nil {
		return err
	}

	opts := []learning.Option{
		learning.WithAnalyzer(a.Analyzer),
		learning.WithRepository(a.DB),
		learning.WithWindow(cfg.Engine.InteractionWindow),
		learning.WithExpertSource(experts),
	}
	if cfg.Updates.Enabled && cfg.Updates.FeedURL != "" {
		opts = append(opts, learning.WithUpdateSource(updates.NewClient(updates.Config{
			FeedURL:  cfg.Updates.FeedURL,
			Weight:   cfg.Updates.Weight,
			Timeout:  time.Duration(cfg.Updates.TimeoutSec) * time.Second,
			MaxItems: cfg.Updates.MaxItems,
		})))
	}
	pipeline := learning.NewPipeline(store, log, opts...)

	m, err := a.DB.LoadMetrics(ctx)
	switch {
	case err == nil:
		pipeline.RestoreMetrics(m)
		metrics.ObserveLearning(m)
	case !errors.Is(err, sqlite.ErrNotFound):
		return err
	}

	a.Engine = engine.New(engine.Config{
		Classifier:   intent.NewClassifier(lex),
		Documents:    a.DB,
		Knowledge:    store,
		Log:          log,
		Pipeline:     pipeline,
		Interactions: a.DB,
		RankLimit:    cfg.Engine.RankLimit,
		Rand:         rand.New(rand.NewSource(cfg.Engine.RandomSeed)),
	})

	var cache handlers.ResponseCache
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second)
		if err != nil {
			logger.Warn("Redis unavailable, response cache disabled", zap.Error(err))
		} else {
			a.Cache = client
			cache = client
		}
	}

	a.Chat = handlers.NewChatHandler(a.Engine, cache)
	a.Interactions = handlers.NewInteractionHandler(a.Engine)
	a.Learning = handlers.NewLearningHandler(a.Engine, cache)
	a.Documents = handlers.NewDocumentHandler(ingestion.NewProcessor(a.DB, a.Analyzer), a.DB, cache)
	a.WebSocket = handlers.NewWebSocketHandler(a.Chat)

	logger.Info("Engine ready",
		zap.Int("knowledge_entries", store.Len()),
		zap.Int("interactions", log.Len()),
	)
	return nil
}

// Routes mounts the API under /api/v1.
func (a *App) Routes(router fiber.Router) {
	api := router.Group("/api/v1")

	api.Post("/chat", a.Chat.HandleChat)
	api.Post("/rank", a.Chat.HandleRank)

	api.Post("/interactions", a.Interactions.Record)
	api.Get("/interactions/:id", a.Interactions.Get)
	api.Put("/interactions/:id/rating", a.Interactions.AmendRating)

	api.Post("/learning/cycle", a.Learning.TriggerCycle)
	api.Get("/learning/metrics", a.Learning.GetMetrics)
	api.Get("/knowledge/search", a.Learning.SearchKnowledge)
	api.Get("/knowledge/categories", a.Learning.GetCategories)

	api.Post("/documents", a.Documents.UploadDocument)
	api.Get("/documents", a.Documents.ListDocuments)

	api.Get("/ws", a.WebSocket.Upgrade, websocket.New(a.WebSocket.HandleConnection))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		if err := a.DB.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  "database unreachable",
			})
		}
		return c.JSON(fiber.Map{
			"status":            "ready",
			"knowledge_entries": a.Engine.Stats(time.Now()).KnowledgeEntries,
			"cache":             a.Cache != nil,
		})
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
