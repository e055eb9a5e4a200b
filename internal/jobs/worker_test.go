package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
)

func TestIsCancellation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "bare context canceled",
			err:  context.Canceled,
			want: true,
		},
		{
			name: "cancellation wrapped in a stage failure",
			err:  &scraper.StageError{Stage: scraper.StageHarvested, Cause: context.Canceled},
			want: true,
		},
		{
			name: "deadline wrapped twice",
			err:  &scraper.StageError{Stage: scraper.StagePageLoaded, Cause: fmt.Errorf("navigation aborted: %w", context.DeadlineExceeded)},
			want: true,
		},
		{
			name: "genuine stage failure",
			err:  &scraper.StageError{Stage: scraper.StageSearchSubmitted, Cause: errors.New("timed out waiting for selector")},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("chromium not installed"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCancellation(tt.err))
		})
	}
}

func TestDerivedFields(t *testing.T) {
	price, rating, brand := derivedFields(models.Product{
		Title:  "Apple iPhone 13",
		Price:  "₹54,999",
		Rating: "4.5",
	})
	assert.Equal(t, float64(54999), price)
	assert.Equal(t, 4.5, rating)
	assert.Equal(t, "Apple", brand)

	price, rating, _ = derivedFields(models.Product{
		Title:  "Noise ColorFit Pro 4",
		Price:  models.NoPrice,
		Rating: models.NoRating,
	})
	assert.Zero(t, price)
	assert.Zero(t, rating)
}
