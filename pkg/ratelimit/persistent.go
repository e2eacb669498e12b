package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// PersistentStore is the durable backing for rate windows, shared across
// processes. Writes are best effort and asynchronous; enforcement across
// replicas is only eventually consistent.
type PersistentStore interface {
	// Load returns the persisted count for a window, 0 when absent
	Load(ctx context.Context, identifier string, windowStart time.Time) (int64, error)
	// Save persists the current count for a window. Idempotent per
	// (identifier, windowStart).
	Save(ctx context.Context, identifier string, windowStart time.Time, count int64, ttl time.Duration) error
	// Purge removes windows that started before the cutoff
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// RedisStore persists windows in Redis with a TTL per key
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new RedisStore
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(identifier string, windowStart time.Time) string {
	return fmt.Sprintf("%s:%s:%d", s.prefix, identifier, windowStart.UnixMilli())
}

// Load returns the persisted count for a window
func (s *RedisStore) Load(ctx context.Context, identifier string, windowStart time.Time) (int64, error) {
	count, err := s.client.Get(ctx, s.key(identifier, windowStart)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get: %w", err)
	}
	return count, nil
}

// Save persists the current count with a TTL so stale windows expire on
// their own
func (s *RedisStore) Save(ctx context.Context, identifier string, windowStart time.Time, count int64, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(identifier, windowStart), count, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Purge is a no-op for Redis; key TTLs already bound retention
func (s *RedisStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// PostgresStore persists windows in a rate_limit_windows table
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load returns the persisted count for a window
func (s *PostgresStore) Load(ctx context.Context, identifier string, windowStart time.Time) (int64, error) {
	query := `
		SELECT request_count
		FROM rate_limit_windows
		WHERE identifier = $1 AND window_start = $2
	`
	var count int64
	err := s.db.QueryRowContext(ctx, query, identifier, windowStart).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load rate window: %w", err)
	}
	return count, nil
}

// Save upserts the current count for a window
func (s *PostgresStore) Save(ctx context.Context, identifier string, windowStart time.Time, count int64, ttl time.Duration) error {
	query := `
		INSERT INTO rate_limit_windows (identifier, window_start, request_count, last_request)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (identifier, window_start)
		DO UPDATE SET request_count = GREATEST(rate_limit_windows.request_count, EXCLUDED.request_count),
		              last_request = EXCLUDED.last_request
	`
	if _, err := s.db.ExecContext(ctx, query, identifier, windowStart, count); err != nil {
		return fmt.Errorf("failed to save rate window: %w", err)
	}
	return nil
}

// Purge removes windows that started before the cutoff
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge rate windows: %w", err)
	}
	return result.RowsAffected()
}
