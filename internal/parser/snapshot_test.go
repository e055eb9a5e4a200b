package parser

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunaldev/flipkart-scraper/internal/models"
	"github.com/kunaldev/flipkart-scraper/internal/scraper"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const fullCard = `
<html><body>
<div data-id="MOBG6VF5Q82T3XRS">
	<div class="_4rR01T">iPhone 13 (Midnight, 128 GB)</div>
	<div class="_30jeq3">₹54,999</div>
	<div class="_3LWZlK">4.5</div>
	<img src="https://rukminim2.flixcart.com/image/iphone-13.jpg"/>
</div>
</body></html>`

func TestSnapshotHarvestAllFields(t *testing.T) {
	snap, err := NewSnapshot(fullCard)
	require.NoError(t, err)

	products, diag := snap.Harvest(discardLogger())
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "iPhone 13 (Midnight, 128 GB)", p.Title)
	assert.Equal(t, "₹54,999", p.Price)
	assert.Equal(t, "4.5", p.Rating)
	assert.Equal(t, "https://rukminim2.flixcart.com/image/iphone-13.jpg", p.ImageURL)
	assert.False(t, p.HarvestedAt.IsZero())
	for _, field := range models.TrackedFields {
		assert.True(t, p.Outcome[field], "field %s should be found", field)
	}

	assert.Equal(t, "[data-id]", diag.ContainerSelector)
	assert.Equal(t, 1, diag.ContainersFound)
	assert.Equal(t, 1, diag.Emitted)
	assert.Zero(t, diag.DroppedNoTitle)
}

func TestSnapshotHarvestMissingRating(t *testing.T) {
	html := `
<div data-id="A">
	<div class="_4rR01T">Samsung Galaxy S21</div>
	<div class="_30jeq3">₹38,499</div>
	<img src="https://rukminim2.flixcart.com/image/s21.jpg"/>
</div>`
	snap, err := NewSnapshot(html)
	require.NoError(t, err)

	products, diag := snap.Harvest(discardLogger())
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Samsung Galaxy S21", p.Title)
	assert.Equal(t, models.NoRating, p.Rating)
	assert.False(t, p.Outcome[models.FieldRating])
	assert.True(t, p.Outcome[models.FieldPrice])
	assert.Equal(t, 1, diag.FieldMisses[models.FieldRating])
}

func TestSnapshotHarvestDropsTitlelessContainer(t *testing.T) {
	html := `
<div data-id="A">
	<div class="_30jeq3">₹1,299</div>
</div>
<div data-id="B">
	<div class="_4rR01T">boAt Airdopes 141</div>
	<div class="_30jeq3">₹1,299</div>
</div>`
	snap, err := NewSnapshot(html)
	require.NoError(t, err)

	products, diag := snap.Harvest(discardLogger())
	require.Len(t, products, 1)
	assert.Equal(t, "boAt Airdopes 141", products[0].Title)

	assert.Equal(t, 2, diag.ContainersFound)
	assert.Equal(t, 1, diag.Emitted)
	assert.Equal(t, 1, diag.DroppedNoTitle)
}

func TestSnapshotHarvestZeroContainers(t *testing.T) {
	snap, err := NewSnapshot(`<html><body><div class="unrelated"></div></body></html>`)
	require.NoError(t, err)

	products, diag := snap.Harvest(discardLogger())
	assert.Empty(t, products)
	assert.Zero(t, diag.ContainersFound)
	assert.Empty(t, diag.ContainerSelector)
}

func TestSnapshotContainersFallbackSelector(t *testing.T) {
	// No data-id attributes on this page generation, so enumeration must
	// fall through to the next container selector.
	html := `
<div class="_1AtVbE"><div class="s1Q9rs">Cable A</div></div>
<div class="_1AtVbE"><div class="s1Q9rs">Cable B</div></div>`
	snap, err := NewSnapshot(html)
	require.NoError(t, err)

	selector, containers := snap.Containers(scraper.ContainerChain())
	assert.Equal(t, "._1AtVbE", selector)
	assert.Len(t, containers, 2)
}

func TestSnapshotPriceRejectsSymbollessText(t *testing.T) {
	// The first price class holds an EMI hint without the rupee symbol; the
	// chain must skip it and take the real price from a later candidate.
	html := `
<div data-id="A">
	<div class="_4rR01T">Redmi Note 13</div>
	<div class="_30jeq3">No cost EMI from 1,250/month</div>
	<div class="_25b18c">₹16,999</div>
</div>`
	snap, err := NewSnapshot(html)
	require.NoError(t, err)

	products, _ := snap.Harvest(discardLogger())
	require.Len(t, products, 1)
	assert.Equal(t, "₹16,999", products[0].Price)
}

func TestSnapshotTitleFromAttribute(t *testing.T) {
	html := `
<div data-id="A">
	<a title="Noise ColorFit Pro 4" href="/p/x"><span>link text</span></a>
	<div class="_30jeq3">₹2,499</div>
</div>`
	snap, err := NewSnapshot(html)
	require.NoError(t, err)

	products, _ := snap.Harvest(discardLogger())
	require.Len(t, products, 1)
	assert.Equal(t, "Noise ColorFit Pro 4", products[0].Title)
}
