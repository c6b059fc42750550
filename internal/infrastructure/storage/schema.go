package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		source TEXT,
		summary TEXT,
		summary_zh TEXT,
		lang TEXT,
		tags TEXT[],
		published_at TIMESTAMPTZ,
		score DOUBLE PRECISION DEFAULT 0,
		citation_count INTEGER,
		star_count INTEGER,
		is_featured BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS summary_zh TEXT`,
	`ALTER TABLE items ADD COLUMN IF NOT EXISTS tsv tsvector GENERATED ALWAYS AS (
		setweight(to_tsvector('simple', coalesce(title, '')), 'A') ||
		setweight(to_tsvector('simple', coalesce(summary, '')), 'B') ||
		setweight(to_tsvector('simple', coalesce(source, '')), 'C')
	) STORED`,
	`CREATE INDEX IF NOT EXISTS idx_items_tsv ON items USING GIN (tsv)`,
	`CREATE INDEX IF NOT EXISTS idx_items_published_at ON items (published_at DESC NULLS LAST)`,
	`CREATE TABLE IF NOT EXISTS subscribers (
		email TEXT PRIMARY KEY,
		lang TEXT CHECK (lang IN ('zh','en')) NOT NULL DEFAULT 'en',
		confirmed BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sent_logs (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL,
		date DATE NOT NULL,
		items JSONB NOT NULL,
		lang TEXT CHECK (lang IN ('zh','en')) NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
}

// EnsureSchema creates tables and the full-text index; it is idempotent.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if r.pool == nil {
		return errNoPool
	}
	for i, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
