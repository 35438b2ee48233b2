package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the study-pack tables if needed. Keeping the
// migration in code lets docker-compose bootstrap a working stack without a
// separate migration tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS study_packs (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	focus TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_study_packs_status ON study_packs(status);

CREATE TABLE IF NOT EXISTS study_pack_files (
	id UUID PRIMARY KEY,
	pack_id UUID NOT NULL UNIQUE REFERENCES study_packs(id) ON DELETE CASCADE,
	object_key TEXT NOT NULL DEFAULT '',
	media_type TEXT NOT NULL,
	inline_text TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS study_pack_chunks (
	id UUID PRIMARY KEY,
	pack_id UUID NOT NULL REFERENCES study_packs(id) ON DELETE CASCADE,
	idx INT NOT NULL,
	content TEXT NOT NULL,
	hash TEXT NOT NULL,
	token_estimate INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (pack_id, idx)
);

CREATE TABLE IF NOT EXISTS study_pack_outputs (
	id UUID PRIMARY KEY,
	pack_id UUID NOT NULL REFERENCES study_packs(id) ON DELETE CASCADE,
	mode TEXT NOT NULL,
	content_html TEXT NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]',
	model_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	UNIQUE (pack_id, mode)
);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
