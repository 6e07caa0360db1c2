package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flowwijs/elektra-scraper/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductExtractedPayload is the outbox payload published for every saved product.
type ProductExtractedPayload struct {
	ID         uuid.UUID      `json:"id"`
	URL        string         `json:"url"`
	Title      string         `json:"title"`
	SKU        string         `json:"sku,omitempty"`
	Category   string         `json:"category"`
	Attributes map[string]any `json:"attributes"`
	Quality    int            `json:"quality_percentage"`
	ParsedAt   time.Time      `json:"parsed_at"`
}

// ProductRepository stores enriched products keyed by URL.
type ProductRepository struct {
	db     Querier
	outbox *Outbox
	stream string
}

func NewProductRepository(db Querier, stream string) *ProductRepository {
	if stream == "" {
		stream = DefaultStream
	}
	return &ProductRepository{
		db:     db,
		outbox: NewOutbox(db),
		stream: stream,
	}
}

const upsertProductSQL = `
	INSERT INTO products (
		id, url, title, brand, sku, price, breadcrumb, category,
		attributes, warnings, raw, quality, parsed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
	)
	ON CONFLICT (url) DO UPDATE SET
		title = EXCLUDED.title,
		brand = EXCLUDED.brand,
		sku = EXCLUDED.sku,
		price = EXCLUDED.price,
		breadcrumb = EXCLUDED.breadcrumb,
		category = EXCLUDED.category,
		attributes = EXCLUDED.attributes,
		warnings = EXCLUDED.warnings,
		raw = EXCLUDED.raw,
		quality = EXCLUDED.quality,
		parsed_at = EXCLUDED.parsed_at,
		updated_at = NOW()
	RETURNING id`

// Save upserts the product and records a PRODUCT_EXTRACTED outbox event in
// the same transaction. A product seen before keeps its original ID.
func (r *ProductRepository) Save(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	attributes, err := json.Marshal(product.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	warnings := product.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}
	raw, err := json.Marshal(product.RawProduct)
	if err != nil {
		return fmt.Errorf("failed to marshal raw product: %w", err)
	}
	quality, err := json.Marshal(product.Quality)
	if err != nil {
		return fmt.Errorf("failed to marshal quality: %w", err)
	}

	return WithTx(ctx, r.db, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx, upsertProductSQL,
			product.ID, product.URL, product.Title, product.Brand, product.SKU,
			product.Price, product.Breadcrumb, product.Category,
			attributes, warningsJSON, raw, quality, product.ParsedAt,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("failed to upsert product: %w", err)
		}
		product.ID = id

		payload, err := json.Marshal(ProductExtractedPayload{
			ID:         id,
			URL:        product.URL,
			Title:      product.Title,
			SKU:        product.SKU,
			Category:   product.Category,
			Attributes: product.Attributes,
			Quality:    product.Quality.Percentage,
			ParsedAt:   product.ParsedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}

		return r.outbox.Enqueue(ctx, tx, &Event{
			ProductID: id,
			Type:      EventProductExtracted,
			Stream:    r.stream,
			Payload:   payload,
		})
	})
}

const selectProductSQL = `
	SELECT id, category, attributes, warnings, raw, quality, parsed_at
	FROM products`

func (r *ProductRepository) GetByURL(ctx context.Context, url string) (*models.Product, error) {
	row := r.db.QueryRow(ctx, selectProductSQL+" WHERE url = $1", url)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// List returns the most recently updated products, optionally filtered by category.
func (r *ProductRepository) List(ctx context.Context, category string, limit int) ([]*models.Product, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows pgx.Rows
		err  error
	)
	if category != "" {
		rows, err = r.db.Query(ctx, selectProductSQL+" WHERE category = $1 ORDER BY updated_at DESC LIMIT $2", category, limit)
	} else {
		rows, err = r.db.Query(ctx, selectProductSQL+" ORDER BY updated_at DESC LIMIT $1", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var (
		p                                  models.Product
		attributes, warnings, raw, quality []byte
	)
	if err := row.Scan(&p.ID, &p.Category, &attributes, &warnings, &raw, &quality, &p.ParsedAt); err != nil {
		return nil, err
	}

	for _, field := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"raw", raw, &p.RawProduct},
		{"attributes", attributes, &p.Attributes},
		{"warnings", warnings, &p.Warnings},
		{"quality", quality, &p.Quality},
	} {
		if len(field.data) == 0 {
			continue
		}
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", field.name, err)
		}
	}
	if p.Attributes == nil {
		p.Attributes = make(map[string]any)
	}
	return &p, nil
}
