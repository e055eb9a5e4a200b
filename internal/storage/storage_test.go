package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunaldev/flipkart-scraper/internal/models"
)

func sampleRun(term string, startedAt time.Time) *models.Run {
	return &models.Run{
		ID:         "run-1",
		SearchTerm: term,
		PageLimit:  1,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(30 * time.Second),
		Products: []models.Product{
			{
				Title:       "iPhone 13 (Midnight, 128 GB)",
				Price:       "₹54,999",
				Rating:      "4.5",
				ImageURL:    "https://img.example/iphone.jpg",
				HarvestedAt: startedAt.Add(10 * time.Second),
				Outcome: map[string]bool{
					models.FieldTitle:    true,
					models.FieldPrice:    true,
					models.FieldRating:   true,
					models.FieldImageURL: true,
				},
			},
			{
				Title:       "iPhone 13 Mini",
				Price:       models.NoPrice,
				Rating:      models.NoRating,
				ImageURL:    models.NoImage,
				HarvestedAt: startedAt.Add(11 * time.Second),
				Outcome: map[string]bool{
					models.FieldTitle:    true,
					models.FieldPrice:    false,
					models.FieldRating:   false,
					models.FieldImageURL: false,
				},
			},
		},
	}
}

func TestNewFileStoreRejectsUnknownFormat(t *testing.T) {
	_, err := NewFileStore(t.TempDir(), "xml")
	assert.Error(t, err)
}

func TestSaveRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, FormatBoth)
	require.NoError(t, err)

	startedAt := time.Date(2026, 8, 31, 14, 30, 5, 0, time.UTC)
	run := sampleRun("iphone 13", startedAt)

	paths, err := store.SaveRun(run)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, filepath.Join(dir, "flipkart_iphone_13_20260831_143005.csv"), paths[0])
	assert.Equal(t, filepath.Join(dir, "flipkart_iphone_13_20260831_143005.json"), paths[1])

	products, err := store.ReadRun("flipkart_iphone_13_20260831_143005.csv")
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "iPhone 13 (Midnight, 128 GB)", products[0].Title)
	assert.Equal(t, "₹54,999", products[0].Price)
	assert.True(t, products[0].Outcome[models.FieldPrice])

	// Sentinels must round-trip back into negative outcomes.
	assert.Equal(t, models.NoPrice, products[1].Price)
	assert.False(t, products[1].Outcome[models.FieldPrice])
	assert.False(t, products[1].Outcome[models.FieldRating])
	assert.True(t, products[1].Outcome[models.FieldTitle])

	var decoded models.Run
	data, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, run.SearchTerm, decoded.SearchTerm)
	assert.Len(t, decoded.Products, 2)
}

func TestSaveRunEmptyResultSet(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), FormatCSV)
	require.NoError(t, err)

	run := &models.Run{
		SearchTerm: "asdfqwerty",
		StartedAt:  time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
		Products:   []models.Product{},
	}
	paths, err := store.SaveRun(run)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	products, err := store.ReadRun(filepath.Base(paths[0]))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListRunsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, FormatCSV)
	require.NoError(t, err)

	older := sampleRun("laptop", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	newer := sampleRun("iphone", time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))

	olderPaths, err := store.SaveRun(older)
	require.NoError(t, err)
	newerPaths, err := store.SaveRun(newer)
	require.NoError(t, err)

	// File modification times drive the ordering, not the encoded names.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(olderPaths[0], past, past))

	files, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Base(newerPaths[0]), files[0].Name)
	assert.Equal(t, 2, files[0].Rows)
}

func TestReadRunRejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), FormatCSV)
	require.NoError(t, err)

	_, err = store.ReadRun("../../etc/passwd.csv")
	assert.Error(t, err)

	_, err = store.Path("../secret.csv")
	assert.Error(t, err)
}

func TestSanitizeTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"iphone 13", "iphone_13"},
		{"  Gaming Laptop  ", "gaming_laptop"},
		{"usb-c cable", "usb-c_cable"},
		{`weird/term\<>?*`, "weirdterm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeTerm(tt.in))
	}
}
