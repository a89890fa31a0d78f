package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// input и output хранятся как JSON: порядок ключей значим.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          UUID PRIMARY KEY,
		status      TEXT NOT NULL CHECK (status IN ('PENDING', 'RUNNING', 'SUCCEEDED', 'FAILED')),
		input       JSON NOT NULL,
		options     JSONB NOT NULL DEFAULT '{}'::jsonb,
		output      JSON,
		step_count  INTEGER NOT NULL DEFAULT 0,
		group_count INTEGER NOT NULL DEFAULT 0,
		error       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at  TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS runs_status_created_at_idx ON runs (status, created_at DESC)`,
}

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
