package models

import (
	"time"
)

// Display sentinels for fields the extraction chains could not resolve.
// They match the values written into exported result sets, so downstream
// consumers can tell a missing field apart from an empty page artifact.
const (
	NoPrice  = "Price not available"
	NoRating = "No rating"
	NoImage  = "No image"
)

// Field names tracked per product record.
const (
	FieldTitle    = "title"
	FieldPrice    = "price"
	FieldRating   = "rating"
	FieldImageURL = "image_url"
)

// TrackedFields lists every field the assembler extracts, in output order.
var TrackedFields = []string{FieldTitle, FieldPrice, FieldRating, FieldImageURL}

// Product is one harvested listing. Price and rating are raw display text;
// numeric parsing happens in the report package, not here.
type Product struct {
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	Rating      string    `json:"rating"`
	ImageURL    string    `json:"image_url"`
	HarvestedAt time.Time `json:"harvested_at"`
	// Outcome records, per tracked field, whether any locator candidate
	// produced a value. Kept for diagnostics and filtering.
	Outcome map[string]bool `json:"extraction_outcome"`
}

// HasTitle reports whether the record satisfies the emission invariant:
// only records with a found, non-empty title leave the harvest.
func (p *Product) HasTitle() bool {
	return p.Outcome[FieldTitle] && p.Title != ""
}

// Run is one completed scrape run with its harvested records.
type Run struct {
	ID         string    `json:"id"`
	SearchTerm string    `json:"search_term"`
	PageLimit  int       `json:"page_limit"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Products   []Product `json:"products"`
}
