package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a pgx connection pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	owner_id      uuid NOT NULL,
	video_url     text NOT NULL,
	title         text,
	status        text NOT NULL DEFAULT 'pending',
	video_format  text,
	subscribers   bigint,
	views         bigint,
	published_at  timestamptz,
	fraud_score   double precision,
	confidence    double precision,
	summary       text,
	timeline      jsonb,
	created_at    timestamptz NOT NULL DEFAULT now(),
	updated_at    timestamptz NOT NULL DEFAULT now(),
	completed_at  timestamptz
);

CREATE INDEX IF NOT EXISTS analyses_owner_created_idx
	ON analyses (owner_id, created_at DESC);
`

// EnsureSchema creates the analyses table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
