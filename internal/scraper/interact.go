package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// dismissPopup closes the login popup Flipkart shows on first visit.
// Best-effort: no popup within the timeout is the common case and never
// fails the run. After a successful click the page gets a short settle
// window for the overlay to clear.
func dismissPopup(ctx context.Context, s Session, timeout, clearDelay time.Duration, logger *slog.Logger) {
	if err := s.ClickAny(ctx, PopupCloseChain(), timeout); err != nil {
		logger.Info("no login popup detected")
		return
	}
	logger.Info("login popup closed")
	s.Settle(ctx, clearDelay)
}

// submitSearch types the term into the search box, activates the submit
// control and waits for at least one result container to appear. All three
// steps are required: any miss within its timeout is a hard failure.
func submitSearch(ctx context.Context, s Session, term string, timeout time.Duration) error {
	if err := s.FillAny(ctx, SearchInputChain(), term, timeout); err != nil {
		return fmt.Errorf("search input not available: %w", err)
	}
	if err := s.ClickAny(ctx, SearchSubmitChain(), timeout); err != nil {
		return fmt.Errorf("search submit not available: %w", err)
	}
	if err := s.WaitAny(ctx, ContainerChain(), timeout); err != nil {
		return fmt.Errorf("no result containers after search: %w", err)
	}
	return nil
}
