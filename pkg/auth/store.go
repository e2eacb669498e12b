package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrKeyNotFound is returned when no key matches a hash
var ErrKeyNotFound = errors.New("api key not found")

// KeyStore persists API key records
type KeyStore interface {
	CreateKey(ctx context.Context, key *APIKey) error
	GetKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListKeys(ctx context.Context, userID string) ([]*APIKey, error)
	RevokeKey(ctx context.Context, id string) error
	RecordKeyUsage(ctx context.Context, id string) error
	DeleteExpiredKeys(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresKeyStore implements KeyStore using PostgreSQL
type PostgresKeyStore struct {
	db *sql.DB
}

// NewPostgresKeyStore creates a new PostgresKeyStore
func NewPostgresKeyStore(db *sql.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

// CreateKey inserts a new API key record
func (s *PostgresKeyStore) CreateKey(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key_hash, key_prefix, name, scopes, ip_whitelist, rate_limit, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	scopes := make([]string, len(key.Scopes))
	for i, scope := range key.Scopes {
		scopes[i] = string(scope)
	}

	err := s.db.QueryRowContext(ctx, query,
		key.ID, key.UserID, key.KeyHash, key.KeyPrefix, key.Name,
		pq.Array(scopes), pq.Array(key.IPWhitelist), key.RateLimit, key.ExpiresAt,
	).Scan(&key.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// GetKeyByHash looks up a key record by its hash. Revoked and expired
// keys are still returned so the caller can fail with a precise reason.
func (s *PostgresKeyStore) GetKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, name, scopes, ip_whitelist,
		       rate_limit, usage_count, last_used_at, expires_at, revoked_at, created_at
		FROM api_keys
		WHERE key_hash = $1
	`
	key, err := scanKey(s.db.QueryRowContext(ctx, query, keyHash))
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

// ListKeys returns all keys owned by a user, newest first
func (s *PostgresKeyStore) ListKeys(ctx context.Context, userID string) ([]*APIKey, error) {
	query := `
		SELECT id, user_id, key_hash, key_prefix, name, scopes, ip_whitelist,
		       rate_limit, usage_count, last_used_at, expires_at, revoked_at, created_at
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// RevokeKey marks a key as revoked
func (s *PostgresKeyStore) RevokeKey(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// RecordKeyUsage bumps the usage counter and last-used timestamp
func (s *PostgresKeyStore) RecordKeyUsage(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to record key usage: %w", err)
	}
	return nil
}

// DeleteExpiredKeys removes keys that expired before the cutoff
func (s *PostgresKeyStore) DeleteExpiredKeys(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1`
	result, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired keys: %w", err)
	}
	return result.RowsAffected()
}

// scanKey scans an API key from a database row
func scanKey(scanner interface {
	Scan(dest ...interface{}) error
}) (*APIKey, error) {
	var key APIKey
	var scopes []string
	var whitelist []string
	var rateLimit sql.NullInt64
	var lastUsedAt, expiresAt, revokedAt sql.NullTime

	err := scanner.Scan(
		&key.ID, &key.UserID, &key.KeyHash, &key.KeyPrefix, &key.Name,
		pq.Array(&scopes), pq.Array(&whitelist),
		&rateLimit, &key.UsageCount, &lastUsedAt, &expiresAt, &revokedAt, &key.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	key.Scopes = make([]Scope, len(scopes))
	for i, scope := range scopes {
		key.Scopes[i] = Scope(scope)
	}
	key.IPWhitelist = whitelist

	if rateLimit.Valid {
		limit := int(rateLimit.Int64)
		key.RateLimit = &limit
	}
	if lastUsedAt.Valid {
		key.LastUsedAt = &lastUsedAt.Time
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		key.RevokedAt = &revokedAt.Time
	}

	return &key, nil
}
