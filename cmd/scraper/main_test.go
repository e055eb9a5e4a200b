package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunaldev/flipkart-scraper/internal/config"
	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/storage"
)

func TestHarvestSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir, storage.FormatCSV)
	require.NoError(t, err)

	html := `
<div data-id="A">
	<div class="_4rR01T">iPhone 13 (Midnight, 128 GB)</div>
	<div class="_30jeq3">₹54,999</div>
	<div class="_3LWZlK">4.5</div>
</div>
<div data-id="B">
	<div class="_30jeq3">₹999</div>
</div>`
	htmlPath := filepath.Join(dir, "iphone-results.html")
	require.NoError(t, os.WriteFile(htmlPath, []byte(html), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, harvestSnapshot(store, htmlPath, "", logger))

	files, err := store.ListRuns()
	require.NoError(t, err)
	require.Len(t, files, 1)

	products, err := store.ReadRun(files[0].Name)
	require.NoError(t, err)
	require.Len(t, products, 1, "title-less container must be dropped")
	assert.Equal(t, "iPhone 13 (Midnight, 128 GB)", products[0].Title)
	assert.Equal(t, "₹54,999", products[0].Price)
	assert.True(t, products[0].Outcome[models.FieldTitle])

	// Search term falls back to the snapshot's file name.
	assert.Contains(t, files[0].Name, "iphone-results")
}

func TestHarvestSnapshotMissingFile(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir(), storage.FormatCSV)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Error(t, harvestSnapshot(store, "/nonexistent/page.html", "iphone", logger))
}

func TestApplyFlagOverrides(t *testing.T) {
	tests := []struct {
		name         string
		args         []string
		envHeadless  bool
		wantHeadless bool
	}{
		{
			name:         "flag forces headless on over env off",
			args:         []string{"-headless=true"},
			envHeadless:  false,
			wantHeadless: true,
		},
		{
			name:         "flag forces headless off over env on",
			args:         []string{"-headless=false"},
			envHeadless:  true,
			wantHeadless: false,
		},
		{
			name:         "unset flag leaves env value alone",
			args:         nil,
			envHeadless:  false,
			wantHeadless: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
			headless := fs.Bool("headless", true, "")
			require.NoError(t, fs.Parse(tt.args))

			cfg := &config.Config{}
			cfg.Browser.Headless = tt.envHeadless
			applyFlagOverrides(cfg, fs, *headless)
			assert.Equal(t, tt.wantHeadless, cfg.Browser.Headless)
		})
	}
}
