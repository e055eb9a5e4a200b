package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
)

const pollInterval = 250 * time.Millisecond

type Options struct {
	Headless          bool
	LookupTimeout     time.Duration
	NavigationTimeout time.Duration
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		LookupTimeout:     10 * time.Second,
		NavigationTimeout: 30 * time.Second,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		Locale:            "en-IN",
	}
}

// Session owns one Chromium instance with a single page, exclusively for
// the duration of one scrape run. It implements scraper.Session.
type Session struct {
	pw            *playwright.Playwright
	browser       playwright.Browser
	context       playwright.BrowserContext
	page          playwright.Page
	lookupTimeout time.Duration
	navTimeout    time.Duration
	logger        *slog.Logger
}

// NewSession launches and configures a browser session. Callers must
// Close() it on every exit path.
func NewSession(opts *Options, logger *slog.Logger) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browserInst, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--user-agent=" + opts.UserAgent,
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browserCtx, err := browserInst.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(opts.UserAgent),
		Locale:    playwright.String(opts.Locale),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		browserInst.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		browserInst.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(ms(opts.LookupTimeout))

	return &Session{
		pw:            pw,
		browser:       browserInst,
		context:       browserCtx,
		page:          page,
		lookupTimeout: opts.LookupTimeout,
		navTimeout:    opts.NavigationTimeout,
		logger:        logger.With("component", "browser"),
	}, nil
}

// Factory adapts NewSession to the orchestrator's session factory, one
// fresh session per run.
func Factory(opts *Options, logger *slog.Logger) scraper.SessionFactory {
	return func(ctx context.Context) (scraper.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewSession(opts, logger)
	}
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("navigating", "url", url)
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(ms(s.navTimeout)),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) Page() locator.Scope {
	return pageScope{page: s.page, timeoutMs: ms(s.lookupTimeout)}
}

func (s *Session) ClickAny(ctx context.Context, chain locator.Chain, timeout time.Duration) error {
	loc, err := s.waitVisible(ctx, chain, timeout)
	if err != nil {
		return err
	}
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(ms(s.lookupTimeout))}); err != nil {
		return fmt.Errorf("click %s: %w", chain.Field, err)
	}
	return nil
}

func (s *Session) FillAny(ctx context.Context, chain locator.Chain, value string, timeout time.Duration) error {
	loc, err := s.waitVisible(ctx, chain, timeout)
	if err != nil {
		return err
	}
	if err := loc.Clear(playwright.LocatorClearOptions{Timeout: playwright.Float(ms(s.lookupTimeout))}); err != nil {
		return fmt.Errorf("clear %s: %w", chain.Field, err)
	}
	if err := loc.Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(ms(s.lookupTimeout))}); err != nil {
		return fmt.Errorf("fill %s: %w", chain.Field, err)
	}
	return nil
}

func (s *Session) WaitAny(ctx context.Context, chain locator.Chain, timeout time.Duration) error {
	_, err := s.waitCondition(ctx, chain, timeout, func(sel string) (playwright.Locator, bool) {
		base := s.page.Locator(sel)
		n, err := base.Count()
		return base.First(), err == nil && n > 0
	})
	return err
}

func (s *Session) Containers(ctx context.Context, chain locator.Chain) (string, []locator.Scope, error) {
	for _, sel := range chain.Selectors() {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		base := s.page.Locator(sel)
		n, err := base.Count()
		if err != nil {
			return "", nil, fmt.Errorf("count %q: %w", sel, err)
		}
		if n == 0 {
			continue
		}
		scopes := make([]locator.Scope, n)
		for i := 0; i < n; i++ {
			scopes[i] = containerScope{root: base.Nth(i), timeoutMs: ms(s.lookupTimeout)}
		}
		return sel, scopes, nil
	}
	return "", nil, nil
}

// Settle waits for the network to go quiet, bounded by d. Used instead of
// the fixed sleeps the page's async content would otherwise require.
func (s *Session) Settle(ctx context.Context, d time.Duration) {
	if d <= 0 || ctx.Err() != nil {
		return
	}
	if err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(ms(d)),
	}); err != nil {
		s.logger.Debug("settle window elapsed before network idle", "error", err)
	}
}

func (s *Session) Close() error {
	var errs []error

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}

// waitVisible polls the chain's candidates until one is visible or the
// timeout elapses.
func (s *Session) waitVisible(ctx context.Context, chain locator.Chain, timeout time.Duration) (playwright.Locator, error) {
	return s.waitCondition(ctx, chain, timeout, func(sel string) (playwright.Locator, bool) {
		loc := s.page.Locator(sel).First()
		visible, err := loc.IsVisible()
		return loc, err == nil && visible
	})
}

// waitCondition is the shared poll-until-ready-or-timeout loop for chain
// candidates. All session-level waits go through it so every wait stays
// bounded and cancellable.
func (s *Session) waitCondition(ctx context.Context, chain locator.Chain, timeout time.Duration, ready func(sel string) (playwright.Locator, bool)) (playwright.Locator, error) {
	deadline := time.Now().Add(timeout)
	for {
		for _, sel := range chain.Selectors() {
			if loc, ok := ready(sel); ok {
				return loc, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out after %s waiting for %s", timeout, chain.Field)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

// pageScope resolves selectors against the whole page.
type pageScope struct {
	page      playwright.Page
	timeoutMs float64
}

func (s pageScope) Find(selector string) (locator.Element, error) {
	base := s.page.Locator(selector)
	n, err := base.Count()
	if err != nil || n == 0 {
		return nil, locator.ErrNoElement
	}
	return element{loc: base.First(), timeoutMs: s.timeoutMs}, nil
}

// containerScope resolves selectors inside one product container.
type containerScope struct {
	root      playwright.Locator
	timeoutMs float64
}

func (s containerScope) Find(selector string) (locator.Element, error) {
	base := s.root.Locator(selector)
	n, err := base.Count()
	if err != nil || n == 0 {
		return nil, locator.ErrNoElement
	}
	return element{loc: base.First(), timeoutMs: s.timeoutMs}, nil
}

type element struct {
	loc       playwright.Locator
	timeoutMs float64
}

func (e element) Text() (string, error) {
	return e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(e.timeoutMs)})
}

func (e element) Attribute(name string) (string, error) {
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: playwright.Float(e.timeoutMs)})
	if err != nil {
		return "", err
	}
	if v == "" {
		return "", locator.ErrNoAttribute
	}
	return v, nil
}
