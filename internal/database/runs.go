package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// Schema is applied at server startup. Product rows keep the raw display
// text; numeric columns are filled in by the report helpers at write time
// so the dashboard can filter without re-parsing.
const Schema = `
CREATE TABLE IF NOT EXISTS scrape_runs (
	id TEXT PRIMARY KEY,
	search_term TEXT NOT NULL,
	page_limit INT NOT NULL DEFAULT 1,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	product_count INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS products (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES scrape_runs(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	price TEXT NOT NULL,
	rating TEXT NOT NULL,
	image_url TEXT NOT NULL,
	price_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	brand TEXT NOT NULL DEFAULT '',
	harvested_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scrape_jobs (
	id TEXT PRIMARY KEY,
	search_term TEXT NOT NULL,
	page_limit INT NOT NULL DEFAULT 1,
	status TEXT NOT NULL DEFAULT 'pending',
	products_found INT NOT NULL DEFAULT 0,
	dropped INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	error TEXT
);

CREATE INDEX IF NOT EXISTS idx_products_run_id ON products(run_id);
CREATE INDEX IF NOT EXISTS idx_products_title ON products USING gin (to_tsvector('simple', title));
`

// Migrate applies the schema.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ProductRow is one stored product with its derived numeric columns.
type ProductRow struct {
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	Price       string    `json:"price"`
	Rating      string    `json:"rating"`
	ImageURL    string    `json:"image_url"`
	PriceValue  float64   `json:"price_value"`
	RatingValue float64   `json:"rating_value"`
	Brand       string    `json:"brand"`
	HarvestedAt time.Time `json:"harvested_at"`
}

// RunRow is one stored run header.
type RunRow struct {
	ID           string    `json:"id"`
	SearchTerm   string    `json:"search_term"`
	PageLimit    int       `json:"page_limit"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	ProductCount int       `json:"product_count"`
}

// SaveRun stores the run header and its products in one transaction.
// Derived numeric values are supplied by the caller (report package).
func (db *DB) SaveRun(ctx context.Context, run *models.Run, derived func(p models.Product) (price, rating float64, brand string)) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO scrape_runs (id, search_term, page_limit, started_at, finished_at, product_count)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, run.ID, run.SearchTerm, run.PageLimit, run.StartedAt, run.FinishedAt, len(run.Products))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, p := range run.Products {
			priceValue, ratingValue, brand := derived(p)
			_, err := tx.Exec(ctx, `
				INSERT INTO products (run_id, title, price, rating, image_url, price_value, rating_value, brand, harvested_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, run.ID, p.Title, p.Price, p.Rating, p.ImageURL, priceValue, ratingValue, brand, p.HarvestedAt)
			if err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns run headers, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, `
		SELECT id, search_term, page_limit, started_at, finished_at, product_count
		FROM scrape_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.SearchTerm, &r.PageLimit, &r.StartedAt, &r.FinishedAt, &r.ProductCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunProducts returns one run's products in harvest order.
func (db *DB) RunProducts(ctx context.Context, runID string) ([]ProductRow, error) {
	rows, err := db.Query(ctx, `
		SELECT run_id, title, price, rating, image_url, price_value, rating_value, brand, harvested_at
		FROM products
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// SearchProducts filters stored products across all runs. Zero-valued
// criteria are ignored.
func (db *DB) SearchProducts(ctx context.Context, query, brand string, minPrice, maxPrice, minRating float64, limit int) ([]ProductRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.Query(ctx, `
		SELECT run_id, title, price, rating, image_url, price_value, rating_value, brand, harvested_at
		FROM products
		WHERE ($1 = '' OR title ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR LOWER(brand) = LOWER($2))
		  AND ($3 = 0 OR price_value >= $3)
		  AND ($4 = 0 OR price_value <= $4)
		  AND ($5 = 0 OR rating_value >= $5)
		ORDER BY harvested_at DESC
		LIMIT $6
	`, query, brand, minPrice, maxPrice, minRating, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]ProductRow, error) {
	var products []ProductRow
	for rows.Next() {
		var p ProductRow
		if err := rows.Scan(&p.RunID, &p.Title, &p.Price, &p.Rating, &p.ImageURL,
			&p.PriceValue, &p.RatingValue, &p.Brand, &p.HarvestedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
