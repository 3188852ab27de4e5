package store

import (
	"context"
	"errors"

	"github.com/go-logr/logr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/xerrors"
)

var ErrNotFound = errors.New("not found")

// DBPool is the subset of pgxpool.Pool the store uses, so tests can use pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool DBPool
	log  logr.Logger
}

// New verifies the connection before returning the store.
func New(ctx context.Context, pool DBPool, logger logr.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.WithName("store"),
	}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS screenshots (
    id BIGSERIAL PRIMARY KEY,
    url TEXT NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
    viewport_width INTEGER NOT NULL,
    viewport_height INTEGER NOT NULL,
    file_path TEXT,
    base64_data TEXT,
    http_status_code INTEGER,
    page_load_time_ms DOUBLE PRECISION,
    full_page BOOLEAN NOT NULL DEFAULT FALSE,
    wait_strategy TEXT,
    error_message TEXT,
    success BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS ix_screenshots_url ON screenshots (url);
CREATE INDEX IF NOT EXISTS ix_screenshots_timestamp ON screenshots (timestamp);
CREATE INDEX IF NOT EXISTS ix_screenshots_success ON screenshots (success);
CREATE TABLE IF NOT EXISTS api_keys (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    key_hash TEXT NOT NULL UNIQUE,
    key_prefix TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    last_used_at TIMESTAMPTZ,
    expires_at TIMESTAMPTZ,
    request_count BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ix_api_keys_key_prefix ON api_keys (key_prefix);
CREATE INDEX IF NOT EXISTS ix_api_keys_is_active ON api_keys (is_active);
`

// Migrate creates the tables and indexes when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return xerrors.Errorf("failed to create tables: %w", err)
	}
	s.log.Info("database schema is up to date")
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
