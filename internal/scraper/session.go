package scraper

import (
	"context"
	"time"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
)

// Session is the browser capability the orchestrator drives. One session
// is exclusively owned by one run; no concurrent calls are made on it.
// internal/browser provides the playwright implementation.
type Session interface {
	// Navigate loads the URL and returns once the document is ready.
	Navigate(ctx context.Context, url string) error

	// Page returns a scope covering the whole current page. Lookups
	// against it are bounded by the session's per-lookup timeout.
	Page() locator.Scope

	// ClickAny waits up to timeout for the first chain candidate to
	// become visible, then clicks it.
	ClickAny(ctx context.Context, chain locator.Chain, timeout time.Duration) error

	// FillAny waits for the first visible chain candidate, clears it and
	// types value into it.
	FillAny(ctx context.Context, chain locator.Chain, value string, timeout time.Duration) error

	// WaitAny blocks until some chain candidate is present, or timeout.
	WaitAny(ctx context.Context, chain locator.Chain, timeout time.Duration) error

	// Containers enumerates elements for the first chain candidate whose
	// selector matches at least one element, returning the winning
	// selector and one scope per element in document order. A chain with
	// no matching candidate returns an empty slice, not an error.
	Containers(ctx context.Context, chain locator.Chain) (string, []locator.Scope, error)

	// Settle gives late asynchronous content a bounded window to arrive.
	// It returns early once the page is quiet and never blocks past d.
	Settle(ctx context.Context, d time.Duration)

	// Close releases the browser. Safe to call exactly once per session.
	Close() error
}

// SessionFactory launches a fresh session. The orchestrator calls it once
// per run so session startup failures stay inside the run's failure policy.
type SessionFactory func(ctx context.Context) (Session, error)
