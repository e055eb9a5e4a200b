package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/kunaldev/flipkart-scraper/internal/api"
	"github.com/kunaldev/flipkart-scraper/internal/browser"
	"github.com/kunaldev/flipkart-scraper/internal/config"
	"github.com/kunaldev/flipkart-scraper/internal/database"
	"github.com/kunaldev/flipkart-scraper/internal/jobs"
	"github.com/kunaldev/flipkart-scraper/internal/metrics"
	"github.com/kunaldev/flipkart-scraper/internal/queue"
	"github.com/kunaldev/flipkart-scraper/internal/ratelimit"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
	"github.com/kunaldev/flipkart-scraper/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.Format)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	taskQueue := queue.NewRedisQueue(redisClient, "")
	jobManager := jobs.NewManager(db, taskQueue, logger)

	orch := scraper.NewOrchestrator(
		browser.Factory(&browser.Options{
			Headless:          cfg.Browser.Headless,
			LookupTimeout:     cfg.Browser.LookupTimeout,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			UserAgent:         cfg.Browser.UserAgent,
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
			Locale:            cfg.Browser.Locale,
		}, logger),
		scraper.Options{
			BaseURL:       cfg.Scraper.BaseURL,
			LookupTimeout: cfg.Scraper.LookupTimeout,
			PopupTimeout:  cfg.Scraper.PopupTimeout,
			SettleDelay:   cfg.Scraper.SettleDelay,
		},
		logger,
	)

	m := metrics.New()
	limiter := ratelimit.New(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)
	worker := jobs.NewWorker(jobManager, orch, store, limiter, m, logger)
	go func() {
		if err := worker.Start(ctx); err != nil {
			logger.Error("worker stopped with error", "error", err)
		}
	}()

	handlers := api.NewHandlers(db, jobManager, store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pending, err := taskQueue.Size(r.Context())
		status := "ok"
		if err != nil {
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":       status,
			"pending_jobs": pending,
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	r.Mount("/api", handlers.Routes())

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	cancel()
	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
