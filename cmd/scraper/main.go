package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/kunaldev/flipkart-scraper/internal/browser"
	"github.com/kunaldev/flipkart-scraper/internal/config"
	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/parser"
	"github.com/kunaldev/flipkart-scraper/internal/queue"
	"github.com/kunaldev/flipkart-scraper/internal/ratelimit"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
	"github.com/kunaldev/flipkart-scraper/internal/storage"
)

func main() {
	var (
		terms     = flag.String("search", "", "Comma-separated search terms to scrape")
		inputFile = flag.String("file", "", "File containing search terms (one per line)")
		pages     = flag.Int("pages", 1, "Page limit per term (only page one is harvested)")
		headless  = flag.Bool("headless", true, "Run browser in headless mode (overrides BROWSER_HEADLESS)")
		format    = flag.String("output", "", "Output format: csv, json, both (overrides STORAGE_FORMAT)")
		dataDir   = flag.String("data-dir", "", "Output directory (overrides STORAGE_DATA_DIR)")
		fromHTML  = flag.String("from-html", "", "Re-harvest a saved results-page HTML file instead of scraping live")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *format != "" {
		cfg.Storage.Format = *format
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	applyFlagOverrides(cfg, flag.CommandLine, *headless)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("starting flipkart scraper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.Format)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	if *fromHTML != "" {
		if err := harvestSnapshot(store, *fromHTML, *terms, logger); err != nil {
			logger.Error("snapshot harvest failed", "file", *fromHTML, "error", err)
			os.Exit(1)
		}
		logger.Info("scraper finished")
		return
	}

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	if err := loadTasks(ctx, taskQueue, *terms, *inputFile, *pages); err != nil {
		logger.Error("failed to load tasks", "error", err)
		os.Exit(1)
	}
	if n, _ := taskQueue.Size(ctx); n == 0 {
		fmt.Println("No search terms to scrape. Use -search or -file.")
		flag.Usage()
		os.Exit(1)
	}

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

	limiter := ratelimit.New(cfg.Scraper.RateLimitMin, cfg.Scraper.RateLimitMax)

	first := true
	for {
		task, err := taskQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) || errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				break
			}
			logger.Error("failed to pop task", "error", err)
			continue
		}

		if !first {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		first = false

		runOne(ctx, orch, store, limiter, task, logger)

		if n, _ := taskQueue.Size(ctx); n == 0 {
			break
		}
	}

	logger.Info("scraper finished")
}

func runOne(ctx context.Context, orch *scraper.Orchestrator, store *storage.FileStore, limiter *ratelimit.Limiter, task *queue.Task, logger *slog.Logger) {
	started := time.Now()
	result, err := orch.Run(ctx, task.SearchTerm, task.PageLimit)
	if err != nil {
		limiter.RecordFailure()
		logger.Error("run failed", "term", task.SearchTerm, "error", err)
		return
	}
	limiter.RecordSuccess()

	run := &models.Run{
		ID:         task.ID,
		SearchTerm: task.SearchTerm,
		PageLimit:  task.PageLimit,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Products:   result.Products,
	}
	paths, err := store.SaveRun(run)
	if err != nil {
		logger.Error("failed to save run", "term", task.SearchTerm, "error", err)
		return
	}
	logger.Info("run saved",
		"term", task.SearchTerm,
		"products", result.Diagnostics.Emitted,
		"dropped", result.Diagnostics.DroppedNoTitle,
		"paths", paths)
}

// applyFlagOverrides folds explicitly passed flags into the env-derived
// config. Flags left at their default must not clobber the environment.
func applyFlagOverrides(cfg *config.Config, fs *flag.FlagSet, headless bool) {
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			cfg.Browser.Headless = headless
		}
	})
}

// harvestSnapshot re-extracts records from a saved results-page HTML file
// through the same chains and title filter as a live run, then saves the
// result set like any other run.
func harvestSnapshot(store *storage.FileStore, path, term string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read html file: %w", err)
	}
	snap, err := parser.NewSnapshot(string(data))
	if err != nil {
		return err
	}

	started := time.Now()
	products, diag := snap.Harvest(logger)

	if term = strings.TrimSpace(term); term == "" {
		base := filepath.Base(path)
		term = strings.TrimSuffix(base, filepath.Ext(base))
	}
	run := &models.Run{
		ID:         uuid.New().String(),
		SearchTerm: term,
		PageLimit:  1,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Products:   products,
	}
	paths, err := store.SaveRun(run)
	if err != nil {
		return fmt.Errorf("save snapshot run: %w", err)
	}

	logger.Info("snapshot harvested",
		"file", path,
		"containers", diag.ContainersFound,
		"emitted", diag.Emitted,
		"dropped", diag.DroppedNoTitle,
		"paths", paths)
	return nil
}

func loadTasks(ctx context.Context, q queue.Queue, terms, inputFile string, pages int) error {
	push := func(term string) error {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil
		}
		return q.Push(ctx, &queue.Task{
			ID:         uuid.New().String(),
			SearchTerm: term,
			PageLimit:  pages,
			CreatedAt:  time.Now(),
		})
	}

	for _, term := range strings.Split(terms, ",") {
		if err := push(term); err != nil {
			return err
		}
	}

	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if err := push(sc.Text()); err != nil {
				return err
			}
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read input file: %w", err)
		}
	}

	return nil
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
