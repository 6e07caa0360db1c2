package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id          UUID PRIMARY KEY,
		url         TEXT NOT NULL UNIQUE,
		title       TEXT NOT NULL DEFAULT '',
		brand       TEXT NOT NULL DEFAULT '',
		sku         TEXT NOT NULL DEFAULT '',
		price       TEXT NOT NULL DEFAULT '',
		breadcrumb  TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL,
		attributes  JSONB NOT NULL DEFAULT '{}'::jsonb,
		warnings    JSONB NOT NULL DEFAULT '[]'::jsonb,
		raw         JSONB NOT NULL,
		quality     JSONB NOT NULL DEFAULT '{}'::jsonb,
		parsed_at   TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
	`CREATE TABLE IF NOT EXISTS product_outbox (
		id            UUID PRIMARY KEY,
		product_id    UUID NOT NULL REFERENCES products (id) ON DELETE CASCADE,
		event_type    TEXT NOT NULL,
		stream        TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		attempts      INT NOT NULL DEFAULT 0,
		last_error    TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		available_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		published_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_outbox_due
		ON product_outbox (status, available_at)`,
}

// EnsureSchema creates the products and product_outbox tables when missing.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
