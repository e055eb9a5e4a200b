package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunaldev/flipkart-scraper/internal/locator"
	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// fakeSession scripts the browser surface so runs execute without a driver.
type fakeSession struct {
	navigateErr   error
	popupClickErr error
	submitErr     error
	fillErr       error
	waitErr       error
	containersErr error

	selector   string
	containers []locator.Scope

	closed   int
	navigate []string
	filled   []string
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.navigate = append(s.navigate, url)
	return s.navigateErr
}

func (s *fakeSession) Page() locator.Scope { return fakeContainer{} }

func (s *fakeSession) ClickAny(_ context.Context, chain locator.Chain, _ time.Duration) error {
	if chain.Field == "popup_close" {
		return s.popupClickErr
	}
	return s.submitErr
}

func (s *fakeSession) FillAny(_ context.Context, _ locator.Chain, value string, _ time.Duration) error {
	if s.fillErr != nil {
		return s.fillErr
	}
	s.filled = append(s.filled, value)
	return nil
}

func (s *fakeSession) WaitAny(_ context.Context, _ locator.Chain, _ time.Duration) error {
	return s.waitErr
}

func (s *fakeSession) Containers(_ context.Context, _ locator.Chain) (string, []locator.Scope, error) {
	if s.containersErr != nil {
		return "", nil, s.containersErr
	}
	return s.selector, s.containers, nil
}

func (s *fakeSession) Settle(_ context.Context, _ time.Duration) {}

func (s *fakeSession) Close() error {
	s.closed++
	return nil
}

func factoryFor(s *fakeSession) SessionFactory {
	return func(context.Context) (Session, error) { return s, nil }
}

func fastOptions() Options {
	return Options{
		BaseURL:       BaseURL,
		LookupTimeout: 50 * time.Millisecond,
		PopupTimeout:  10 * time.Millisecond,
		SettleDelay:   time.Millisecond,
	}
}

func card(title, price, rating, image string) fakeContainer {
	c := fakeContainer{}
	if title != "" {
		c["._4rR01T"] = fakeElement{text: title}
	}
	if price != "" {
		c["._30jeq3"] = fakeElement{text: price}
	}
	if rating != "" {
		c["._3LWZlK"] = fakeElement{text: rating}
	}
	if image != "" {
		c["img"] = fakeElement{attrs: map[string]string{"src": image}}
	}
	return c
}

func TestRunHappyPath(t *testing.T) {
	session := &fakeSession{
		// Popup click failing is the no-popup case, not an error.
		popupClickErr: errors.New("not visible"),
		selector:      "[data-id]",
		containers: []locator.Scope{
			card("iPhone 13", "₹54,999", "4.5", "https://img.example/a.jpg"),
			card("iPhone 13 Mini", "₹44,999", "", "https://img.example/b.jpg"),
		},
	}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	result, err := orch.Run(context.Background(), "iphone", 1)
	require.NoError(t, err)
	require.Len(t, result.Products, 2)

	assert.Equal(t, "iPhone 13", result.Products[0].Title)
	assert.Equal(t, models.NoRating, result.Products[1].Rating)
	assert.Equal(t, []string{BaseURL}, session.navigate)
	assert.Equal(t, []string{"iphone"}, session.filled)
	assert.Equal(t, 1, session.closed)

	diag := result.Diagnostics
	assert.Equal(t, "iphone", diag.SearchTerm)
	assert.Equal(t, "[data-id]", diag.ContainerSelector)
	assert.Equal(t, 2, diag.ContainersFound)
	assert.Equal(t, 2, diag.Emitted)
	assert.Equal(t, 1, diag.FieldMisses[models.FieldRating])
}

func TestRunDropsTitlelessRecords(t *testing.T) {
	session := &fakeSession{
		selector: "[data-id]",
		containers: []locator.Scope{
			card("", "₹899", "", ""),
			card("Noise ColorFit Pro 4", "₹2,499", "4.1", ""),
		},
	}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	result, err := orch.Run(context.Background(), "smartwatch", 1)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, "Noise ColorFit Pro 4", result.Products[0].Title)
	assert.Equal(t, 1, result.Diagnostics.DroppedNoTitle)
	assert.Equal(t, 1, result.Diagnostics.Emitted)
}

func TestRunZeroContainersIsNotFailure(t *testing.T) {
	session := &fakeSession{}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	result, err := orch.Run(context.Background(), "asdfqwerty", 1)
	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.Zero(t, result.Diagnostics.ContainersFound)
	assert.Equal(t, 1, session.closed)
}

func TestRunEmptySearchTerm(t *testing.T) {
	called := false
	factory := func(context.Context) (Session, error) {
		called = true
		return nil, nil
	}
	orch := NewOrchestrator(factory, fastOptions(), testLogger())

	_, err := orch.Run(context.Background(), "", 1)
	require.Error(t, err)
	assert.False(t, called, "no session should be launched for an empty term")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDriverReady, stageErr.Stage)
}

func TestRunSessionLaunchFailure(t *testing.T) {
	launchErr := errors.New("chromium not installed")
	factory := func(context.Context) (Session, error) { return nil, launchErr }
	orch := NewOrchestrator(factory, fastOptions(), testLogger())

	_, err := orch.Run(context.Background(), "iphone", 1)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageDriverReady, stageErr.Stage)
	assert.ErrorIs(t, err, launchErr)
}

func TestRunNavigationFailureClosesSession(t *testing.T) {
	session := &fakeSession{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	_, err := orch.Run(context.Background(), "iphone", 1)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePageLoaded, stageErr.Stage)
	assert.Equal(t, 1, session.closed, "teardown must run exactly once on stage failure")
}

func TestRunSearchTimeoutClosesSession(t *testing.T) {
	session := &fakeSession{fillErr: errors.New("timed out waiting for selector")}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	_, err := orch.Run(context.Background(), "iphone", 1)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSearchSubmitted, stageErr.Stage)
	assert.Contains(t, stageErr.Cause.Error(), "search input not available")
	assert.Equal(t, 1, session.closed)
}

func TestRunNoContainersAfterSearchFails(t *testing.T) {
	session := &fakeSession{waitErr: errors.New("timed out waiting for selector")}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	_, err := orch.Run(context.Background(), "iphone", 1)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSearchSubmitted, stageErr.Stage)
	assert.Contains(t, stageErr.Cause.Error(), "no result containers after search")
}

func TestRunCancelledContextClosesSession(t *testing.T) {
	session := &fakeSession{}
	orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx, "iphone", 1)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.closed)
}

func TestRunPopupDismissalIsBestEffort(t *testing.T) {
	// Both popup outcomes must leave the run on the success path.
	for _, clickErr := range []error{nil, errors.New("not visible")} {
		session := &fakeSession{
			popupClickErr: clickErr,
			selector:      "[data-id]",
			containers:    []locator.Scope{card("iPhone 13", "₹54,999", "4.5", "")},
		}
		orch := NewOrchestrator(factoryFor(session), fastOptions(), testLogger())

		result, err := orch.Run(context.Background(), "iphone", 1)
		require.NoError(t, err)
		assert.Len(t, result.Products, 1)
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &StageError{Stage: StageHarvested, Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "harvested")
}
