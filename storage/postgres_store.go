package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"shopscout/models"
)

// PostgresStore mirrors merged products into PostgreSQL for environments
// where a queryable copy of the product table is wanted alongside the CSV.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS products (
			id            TEXT        PRIMARY KEY,
			name          TEXT        NOT NULL,
			brand         TEXT        NOT NULL,
			price_display TEXT        NOT NULL DEFAULT '',
			best_price    NUMERIC(12,2),
			avg_rating    TEXT        NOT NULL DEFAULT '',
			thumbnail     TEXT        NOT NULL DEFAULT '',
			available_on  TEXT        NOT NULL DEFAULT '',
			variants      JSONB       NOT NULL DEFAULT '[]',
			last_updated  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_products_brand      ON products(brand);
		CREATE INDEX IF NOT EXISTS idx_products_best_price ON products(best_price);
	`)
	return err
}

// Save upserts all products by id.
func (ps *PostgresStore) Save(products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(products); i += batchSize {
		end := i + batchSize
		if end > len(products) {
			end = len(products)
		}
		if err := ps.upsertBatch(products[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *PostgresStore) upsertBatch(batch []*models.Product) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*9)

	for idx, p := range batch {
		variants, err := json.Marshal(p.Variants)
		if err != nil {
			return fmt.Errorf("postgres: encode variants for %q: %w", p.ID, err)
		}

		var bestPrice sql.NullFloat64
		if p.HasPrice() {
			bestPrice = sql.NullFloat64{Float64: p.BestPrice, Valid: true}
		}

		base := idx * 9
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9))
		valueArgs = append(valueArgs,
			p.ID, p.Name, p.Brand, p.PriceDisplay, bestPrice,
			p.AvgRating, p.Thumbnail, strings.Join(p.AvailableOn, "|"), string(variants))
	}

	query := fmt.Sprintf(`
		INSERT INTO products (id, name, brand, price_display, best_price, avg_rating, thumbnail, available_on, variants)
		VALUES %s
		ON CONFLICT (id) DO UPDATE SET
			name          = EXCLUDED.name,
			brand         = EXCLUDED.brand,
			price_display = EXCLUDED.price_display,
			best_price    = EXCLUDED.best_price,
			avg_rating    = EXCLUDED.avg_rating,
			thumbnail     = EXCLUDED.thumbnail,
			available_on  = EXCLUDED.available_on,
			variants      = EXCLUDED.variants,
			last_updated  = NOW()
	`, strings.Join(valueStrings, ","))

	_, err := ps.db.Exec(query, valueArgs...)
	return err
}

// Load retrieves all stored products ordered by id.
func (ps *PostgresStore) Load() ([]*models.Product, error) {
	rows, err := ps.db.Query(`
		SELECT id, name, brand, price_display, best_price, avg_rating, thumbnail, available_on, variants, last_updated
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		var bestPrice sql.NullFloat64
		var availableOn string
		var variants []byte

		if err := rows.Scan(
			&p.ID, &p.Name, &p.Brand, &p.PriceDisplay, &bestPrice,
			&p.AvgRating, &p.Thumbnail, &availableOn, &variants, &p.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}

		p.BestPrice = math.Inf(1)
		if bestPrice.Valid {
			p.BestPrice = bestPrice.Float64
		}
		if availableOn != "" {
			p.AvailableOn = strings.Split(availableOn, "|")
		}
		if len(variants) > 0 {
			if err := json.Unmarshal(variants, &p.Variants); err != nil {
				return nil, fmt.Errorf("postgres: decode variants for %q: %w", p.ID, err)
			}
		}

		products = append(products, p)
	}
	return products, rows.Err()
}

// Close closes the underlying database handle.
func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
