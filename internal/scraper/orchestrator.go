package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// Stage names the steps of one run, in execution order.
type Stage string

const (
	StageDriverReady     Stage = "driver_ready"
	StagePageLoaded      Stage = "page_loaded"
	StagePopupResolved   Stage = "popup_resolved"
	StageSearchSubmitted Stage = "search_submitted"
	StageResultsLoaded   Stage = "results_loaded"
	StageHarvested       Stage = "harvested"
	StageClosed          Stage = "closed"
)

// StageError is the failure value of a run: the stage that failed and its
// cause. It is returned, never panicked, and teardown has already run by
// the time the caller sees it.
type StageError struct {
	Stage Stage
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }

// Diagnostics summarizes one run for observability. It travels with the
// harvested records; none of its conditions are failures.
type Diagnostics struct {
	SearchTerm        string         `json:"search_term"`
	PageLimit         int            `json:"page_limit"`
	ContainerSelector string         `json:"container_selector,omitempty"`
	ContainersFound   int            `json:"containers_found"`
	Emitted           int            `json:"emitted"`
	DroppedNoTitle    int            `json:"dropped_no_title"`
	FieldMisses       map[string]int `json:"field_misses"`
}

// RunResult is a successful run's output: records in container-encounter
// order plus diagnostics. The sequence may be empty.
type RunResult struct {
	Products    []models.Product `json:"products"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// Options is the externally supplied tuning surface of a run.
type Options struct {
	BaseURL string
	// LookupTimeout bounds every required interaction wait.
	LookupTimeout time.Duration
	// PopupTimeout bounds the best-effort popup dismissal wait.
	PopupTimeout time.Duration
	// SettleDelay bounds the quiet window granted to late asynchronous
	// content after the popup click and after results appear.
	SettleDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		BaseURL:       BaseURL,
		LookupTimeout: 10 * time.Second,
		PopupTimeout:  5 * time.Second,
		SettleDelay:   2 * time.Second,
	}
}

// Orchestrator runs the end-to-end scrape state machine for one search
// term per call. Instances are safe to run concurrently as long as the
// factory hands out independent sessions.
type Orchestrator struct {
	newSession SessionFactory
	assembler  *Assembler
	opts       Options
	logger     *slog.Logger
}

func NewOrchestrator(factory SessionFactory, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	return &Orchestrator{
		newSession: factory,
		assembler:  NewAssembler(logger),
		opts:       opts,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Run executes one scrape for the search term. pageLimit is accepted for
// forward compatibility; only the first results page is harvested. The
// session is torn down on every exit path, including cancellation and
// stage failure. The returned error, when non-nil, is a *StageError.
func (o *Orchestrator) Run(ctx context.Context, searchTerm string, pageLimit int) (*RunResult, error) {
	if searchTerm == "" {
		return nil, &StageError{Stage: StageDriverReady, Cause: errors.New("empty search term")}
	}

	o.logger.Info("run starting", "term", searchTerm, "page_limit", pageLimit)

	session, err := o.newSession(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageDriverReady, Cause: err}
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			o.logger.Warn("session close failed", "error", closeErr)
		}
		o.logger.Info("stage entered", "stage", StageClosed)
	}()
	o.logger.Info("stage entered", "stage", StageDriverReady)

	if err := o.guard(ctx, StagePageLoaded); err != nil {
		return nil, err
	}
	if err := session.Navigate(ctx, o.opts.BaseURL); err != nil {
		return nil, o.fail(StagePageLoaded, err)
	}
	o.logger.Info("stage entered", "stage", StagePageLoaded)

	if err := o.guard(ctx, StagePopupResolved); err != nil {
		return nil, err
	}
	dismissPopup(ctx, session, o.opts.PopupTimeout, o.opts.SettleDelay, o.logger)
	o.logger.Info("stage entered", "stage", StagePopupResolved)

	if err := o.guard(ctx, StageSearchSubmitted); err != nil {
		return nil, err
	}
	if err := submitSearch(ctx, session, searchTerm, o.opts.LookupTimeout); err != nil {
		return nil, o.fail(StageSearchSubmitted, err)
	}
	o.logger.Info("stage entered", "stage", StageSearchSubmitted)

	// Query submission's own success condition (a visible container) is
	// the ResultsLoaded guard; the settle window absorbs stragglers.
	session.Settle(ctx, o.opts.SettleDelay)
	o.logger.Info("stage entered", "stage", StageResultsLoaded)

	if err := o.guard(ctx, StageHarvested); err != nil {
		return nil, err
	}
	result, err := o.harvest(ctx, session, searchTerm, pageLimit)
	if err != nil {
		return nil, err
	}
	o.logger.Info("stage entered", "stage", StageHarvested,
		"containers", result.Diagnostics.ContainersFound,
		"emitted", result.Diagnostics.Emitted,
		"dropped", result.Diagnostics.DroppedNoTitle)

	return result, nil
}

// harvest enumerates the result containers and assembles one record per
// container, dropping records that fail the title invariant. Zero
// containers is a diagnostic, not a failure.
func (o *Orchestrator) harvest(ctx context.Context, session Session, searchTerm string, pageLimit int) (*RunResult, error) {
	diag := Diagnostics{
		SearchTerm:  searchTerm,
		PageLimit:   pageLimit,
		FieldMisses: make(map[string]int),
	}

	selector, containers, err := session.Containers(ctx, ContainerChain())
	if err != nil {
		return nil, o.fail(StageHarvested, err)
	}
	diag.ContainerSelector = selector
	diag.ContainersFound = len(containers)

	if len(containers) == 0 {
		o.logger.Warn("no result containers matched any selector", "term", searchTerm)
		return &RunResult{Products: []models.Product{}, Diagnostics: diag}, nil
	}
	o.logger.Info("found result containers", "count", len(containers), "selector", selector)

	products := make([]models.Product, 0, len(containers))
	for i, container := range containers {
		if err := ctx.Err(); err != nil {
			return nil, o.fail(StageHarvested, err)
		}

		p := o.assembler.Assemble(container)
		for field, found := range p.Outcome {
			if !found {
				diag.FieldMisses[field]++
			}
		}

		if !p.HasTitle() {
			diag.DroppedNoTitle++
			o.logger.Debug("record dropped, no title", "index", i)
			continue
		}
		products = append(products, p)
	}
	diag.Emitted = len(products)

	return &RunResult{Products: products, Diagnostics: diag}, nil
}

// guard turns cancellation between stages into the stage's failure value.
func (o *Orchestrator) guard(ctx context.Context, next Stage) error {
	if err := ctx.Err(); err != nil {
		return o.fail(next, err)
	}
	return nil
}

func (o *Orchestrator) fail(stage Stage, cause error) *StageError {
	o.logger.Error("stage failed", "stage", stage, "error", cause)
	return &StageError{Stage: stage, Cause: cause}
}
