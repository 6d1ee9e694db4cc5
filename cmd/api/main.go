package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vilaw/backend/internal/app"
	"github.com/vilaw/backend/internal/metrics"
	"github.com/vilaw/backend/internal/middleware/ratelimit"
	"github.com/vilaw/backend/internal/middleware/security"
	"github.com/vilaw/backend/internal/middleware/validation"
	"github.com/vilaw/backend/pkg/config"
	appLogger "github.com/vilaw/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting ViLaw API Server")

	metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	scheduler, err := startScheduler(ctx, a, cfg.Engine.CycleInterval)
	if err != nil {
		appLogger.Fatal("Failed to schedule learning cycle", zap.Error(err))
	}

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.Server.RequestsPerMin,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	server := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	allowOrigins := "*"
	if len(cfg.Server.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.Server.AllowedOrigins, ",")
	}

	server.Use(recover.New())
	server.Use(logger.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	server.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.IsDevelopment,
	}))

	server.Get("/metrics", metrics.MetricsHandler())

	server.Use("/api/v1", limiter.Middleware())
	server.Use("/api/v1", validation.Middleware(validation.Config{
		MaxQueryLength:  cfg.Server.MaxQueryLength,
		MaxDocumentSize: cfg.Server.BodyLimit,
		Logger:          appLogger.GetLogger(),
	}))

	a.Routes(server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	cancel()
	<-scheduler.Stop().Done()
	if err := server.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// startScheduler runs one learning cycle immediately and then every interval. A
// cycle that is still running when the next tick fires is skipped.
func startScheduler(ctx context.Context, a *app.App, interval time.Duration) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	job := func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := a.Learning.RunCycle(ctx); err != nil {
			appLogger.Debug("Scheduled learning cycle not committed", zap.Error(err))
		}
	}

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		return nil, fmt.Errorf("failed to add cycle job: %w", err)
	}

	go job()
	c.Start()

	appLogger.Info("Learning cycle scheduled", zap.Duration("interval", interval))
	return c, nil
}
