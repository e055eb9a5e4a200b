package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kunaldev/flipkart-scraper/internal/metrics"
	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/queue"
	"github.com/kunaldev/flipkart-scraper/internal/ratelimit"
	"github.com/kunaldev/flipkart-scraper/internal/report"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
	"github.com/kunaldev/flipkart-scraper/internal/storage"
)

// Worker drains the job queue, one scrape run at a time. Each run gets a
// fresh browser session; the rate limiter spaces consecutive runs.
type Worker struct {
	manager      *Manager
	orchestrator *scraper.Orchestrator
	store        *storage.FileStore
	limiter      *ratelimit.Limiter
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewWorker(manager *Manager, orch *scraper.Orchestrator, store *storage.FileStore, limiter *ratelimit.Limiter, m *metrics.Metrics, logger *slog.Logger) *Worker {
	return &Worker{
		manager:      manager,
		orchestrator: orch,
		store:        store,
		limiter:      limiter,
		metrics:      m,
		logger:       logger.With("component", "job_worker"),
	}
}

// Start blocks until the context is cancelled or the queue closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("job worker started")
	for {
		task, err := w.manager.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Info("job worker stopping", "reason", err)
				return nil
			}
			w.logger.Error("failed to pop task", "error", err)
			continue
		}

		if err := w.limiter.Wait(ctx); err != nil {
			return nil
		}

		w.Execute(ctx, task)
	}
}

// Execute runs one job end to end: status transitions, the scrape itself,
// persistence and metrics. Run failures are recorded, never returned;
// the worker moves on to the next job.
func (w *Worker) Execute(ctx context.Context, task *queue.Task) {
	logger := w.logger.With("job_id", task.ID, "term", task.SearchTerm)

	if err := w.manager.markRunning(ctx, task.ID); err != nil {
		logger.Error("failed to mark job running", "error", err)
	}

	started := time.Now()
	result, err := w.orchestrator.Run(ctx, task.SearchTerm, task.PageLimit)
	w.metrics.RunDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		if isCancellation(err) {
			// The run context is gone; give the status write its own.
			w.metrics.RunsTotal.WithLabelValues("cancelled").Inc()
			logger.Info("job cancelled", "error", err)
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if dbErr := w.manager.markCancelled(updateCtx, task.ID); dbErr != nil {
				logger.Error("failed to mark job cancelled", "error", dbErr)
			}
			return
		}

		w.limiter.RecordFailure()
		w.metrics.RunsTotal.WithLabelValues("failed").Inc()
		var stageErr *scraper.StageError
		if errors.As(err, &stageErr) {
			w.metrics.StageFailuresTotal.WithLabelValues(string(stageErr.Stage)).Inc()
		}
		logger.Error("job failed", "error", err)
		if dbErr := w.manager.markFailed(ctx, task.ID, err.Error()); dbErr != nil {
			logger.Error("failed to mark job failed", "error", dbErr)
		}
		return
	}

	w.limiter.RecordSuccess()
	w.metrics.RunsTotal.WithLabelValues("completed").Inc()
	w.metrics.ProductsTotal.Add(float64(result.Diagnostics.Emitted))
	w.metrics.DroppedTotal.Add(float64(result.Diagnostics.DroppedNoTitle))
	w.metrics.ContainersPerRun.Observe(float64(result.Diagnostics.ContainersFound))
	for field, misses := range result.Diagnostics.FieldMisses {
		w.metrics.FieldMissesTotal.WithLabelValues(field).Add(float64(misses))
	}

	run := &models.Run{
		ID:         task.ID,
		SearchTerm: task.SearchTerm,
		PageLimit:  task.PageLimit,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Products:   result.Products,
	}

	if err := w.manager.db.SaveRun(ctx, run, derivedFields); err != nil {
		logger.Error("failed to persist run", "error", err)
	}
	if w.store != nil {
		if paths, err := w.store.SaveRun(run); err != nil {
			logger.Error("failed to export run", "error", err)
		} else {
			logger.Info("run exported", "paths", paths)
		}
	}

	if err := w.manager.markCompleted(ctx, task.ID, result.Diagnostics.Emitted, result.Diagnostics.DroppedNoTitle); err != nil {
		logger.Error("failed to mark job completed", "error", err)
	}
	logger.Info("job completed",
		"products", result.Diagnostics.Emitted,
		"dropped", result.Diagnostics.DroppedNoTitle,
		"containers", result.Diagnostics.ContainersFound)
}

// isCancellation reports whether a run error is a context cancellation
// (shutdown or deadline) rather than a scrape failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func derivedFields(p models.Product) (float64, float64, string) {
	return report.CleanPrice(p.Price), report.CleanRating(p.Rating), report.ExtractBrand(p.Title)
}
