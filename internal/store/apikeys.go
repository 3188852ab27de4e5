package store

import (
	"context"
	"time"

	"golang.org/x/xerrors"
)

type APIKey struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description"`
	KeyHash      string     `json:"-"`
	KeyPrefix    string     `json:"key_prefix"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at"`
	ExpiresAt    *time.Time `json:"expires_at"`
	RequestCount int64      `json:"request_count"`
}

const apiKeyColumns = `id, name, description, key_hash, key_prefix, is_active, created_at, last_used_at, expires_at, request_count`

func (s *Store) CreateAPIKey(ctx context.Context, key *APIKey) (*APIKey, error) {
	created := *key
	created.IsActive = true
	created.CreatedAt = time.Now().UTC()

	if err := s.pool.QueryRow(ctx, `
        INSERT INTO api_keys (name, description, key_hash, key_prefix, is_active, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`,
		created.Name, created.Description, created.KeyHash, created.KeyPrefix,
		created.IsActive, created.CreatedAt, created.ExpiresAt,
	).Scan(&created.ID); err != nil {
		return nil, xerrors.Errorf("failed to insert api key: %w", err)
	}

	return &created, nil
}

func (s *Store) GetAPIKey(ctx context.Context, id int64) (*APIKey, error) {
	keys, err := s.queryAPIKeys(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFound
	}
	return &keys[0], nil
}

func (s *Store) ListAPIKeys(ctx context.Context, includeInactive bool) ([]APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys`
	if !includeInactive {
		query += ` WHERE is_active`
	}
	return s.queryAPIKeys(ctx, query+` ORDER BY created_at DESC`)
}

// ListActiveAPIKeys returns the candidates a presented key is verified against.
func (s *Store) ListActiveAPIKeys(ctx context.Context) ([]APIKey, error) {
	return s.queryAPIKeys(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE is_active`)
}

func (s *Store) SetAPIKeyActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return xerrors.Errorf("failed to update api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAPIKey records one more use of the key at t.
func (s *Store) TouchAPIKey(ctx context.Context, id int64, t time.Time) error {
	if _, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $1, request_count = request_count + 1 WHERE id = $2`, t.UTC(), id); err != nil {
		return xerrors.Errorf("failed to record api key usage: %w", err)
	}
	return nil
}

func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return xerrors.Errorf("failed to delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryAPIKeys(ctx context.Context, query string, args ...any) ([]APIKey, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to query api keys: %w", err)
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(
			&k.ID, &k.Name, &k.Description, &k.KeyHash, &k.KeyPrefix,
			&k.IsActive, &k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt, &k.RequestCount,
		); err != nil {
			return nil, xerrors.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Errorf("failed to read api keys: %w", err)
	}
	return keys, nil
}
