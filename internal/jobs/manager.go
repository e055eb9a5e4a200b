package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kunaldev/flipkart-scraper/internal/database"
	"github.com/kunaldev/flipkart-scraper/internal/queue"
)

// Job is one requested scrape, tracked from creation through completion.
type Job struct {
	ID            string     `json:"id"`
	SearchTerm    string     `json:"search_term"`
	PageLimit     int        `json:"page_limit"`
	Status        string     `json:"status"`
	ProductsFound int        `json:"products_found"`
	Dropped       int        `json:"dropped"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Job status values. Cancelled marks runs interrupted by shutdown, kept
// apart from failed so restart churn doesn't skew the failure stats.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Stats summarizes the job table for the dashboard.
type Stats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	CancelledJobs int     `json:"cancelled_jobs"`
	TotalProducts int     `json:"total_products"`
	SuccessRate   float64 `json:"success_rate"`
}

// Manager owns the job table and hands pending jobs to the worker via the
// queue.
type Manager struct {
	db     *database.DB
	queue  queue.Queue
	logger *slog.Logger
}

func NewManager(db *database.DB, q queue.Queue, logger *slog.Logger) *Manager {
	return &Manager{
		db:     db,
		queue:  q,
		logger: logger.With("component", "job_manager"),
	}
}

// CreateJob records a new job and enqueues it for the worker.
func (m *Manager) CreateJob(ctx context.Context, searchTerm string, pageLimit int) (*Job, error) {
	if searchTerm == "" {
		return nil, fmt.Errorf("search term is required")
	}
	if pageLimit < 1 {
		pageLimit = 1
	}

	job := &Job{
		ID:         uuid.New().String(),
		SearchTerm: searchTerm,
		PageLimit:  pageLimit,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}

	_, err := m.db.Exec(ctx, `
		INSERT INTO scrape_jobs (id, search_term, page_limit, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, job.ID, job.SearchTerm, job.PageLimit, job.Status, job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := m.queue.Push(ctx, &queue.Task{
		ID:         job.ID,
		SearchTerm: job.SearchTerm,
		PageLimit:  job.PageLimit,
		CreatedAt:  job.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "term", searchTerm)
	return job, nil
}

// GetJob retrieves a job by ID.
func (m *Manager) GetJob(ctx context.Context, jobID string) (*Job, error) {
	var job Job
	err := m.db.QueryRow(ctx, `
		SELECT id, search_term, page_limit, status, products_found, dropped,
		       created_at, started_at, completed_at, COALESCE(error, '')
		FROM scrape_jobs WHERE id = $1
	`, jobID).Scan(&job.ID, &job.SearchTerm, &job.PageLimit, &job.Status,
		&job.ProductsFound, &job.Dropped, &job.CreatedAt, &job.StartedAt,
		&job.CompletedAt, &job.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListJobs returns recent jobs, newest first.
func (m *Manager) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := m.db.Query(ctx, `
		SELECT id, search_term, page_limit, status, products_found, dropped,
		       created_at, started_at, completed_at, COALESCE(error, '')
		FROM scrape_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.SearchTerm, &job.PageLimit, &job.Status,
			&job.ProductsFound, &job.Dropped, &job.CreatedAt, &job.StartedAt,
			&job.CompletedAt, &job.Error); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetStats aggregates job counters.
func (m *Manager) GetStats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := m.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'running'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COALESCE(SUM(products_found), 0)
		FROM scrape_jobs
	`).Scan(&s.TotalJobs, &s.PendingJobs, &s.RunningJobs, &s.CompletedJobs,
		&s.FailedJobs, &s.CancelledJobs, &s.TotalProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	// Cancelled runs are neither success nor failure.
	finished := s.CompletedJobs + s.FailedJobs
	if finished > 0 {
		s.SuccessRate = float64(s.CompletedJobs) / float64(finished)
	}
	return &s, nil
}

func (m *Manager) markRunning(ctx context.Context, jobID string) error {
	_, err := m.db.Exec(ctx, `
		UPDATE scrape_jobs SET status = $2, started_at = $3 WHERE id = $1
	`, jobID, StatusRunning, time.Now())
	return err
}

func (m *Manager) markCompleted(ctx context.Context, jobID string, found, dropped int) error {
	_, err := m.db.Exec(ctx, `
		UPDATE scrape_jobs
		SET status = $2, products_found = $3, dropped = $4, completed_at = $5
		WHERE id = $1
	`, jobID, StatusCompleted, found, dropped, time.Now())
	return err
}

func (m *Manager) markCancelled(ctx context.Context, jobID string) error {
	_, err := m.db.Exec(ctx, `
		UPDATE scrape_jobs SET status = $2, completed_at = $3 WHERE id = $1
	`, jobID, StatusCancelled, time.Now())
	return err
}

func (m *Manager) markFailed(ctx context.Context, jobID, cause string) error {
	_, err := m.db.Exec(ctx, `
		UPDATE scrape_jobs SET status = $2, error = $3, completed_at = $4 WHERE id = $1
	`, jobID, StatusFailed, cause, time.Now())
	return err
}
