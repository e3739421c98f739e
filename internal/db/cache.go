package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DefaultCacheTTL applies when a caller passes a zero TTL.
const DefaultCacheTTL = 24 * time.Hour

// CacheStore persists serialized analysis results keyed by content
// hash, view name and filter fingerprint. Entries expire after a TTL
// and are invalidated wholesale when a session's data changes.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a cache store backed by the database.
func NewCacheStore(d *DB) *CacheStore {
	return &CacheStore{db: d}
}

// Get returns the cached payload for key, or nil when the entry is
// missing or has expired. Expired entries are removed on read.
func (c *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		payload []byte
		expires string
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT payload, expires_at FROM analysis_cache WHERE cache_key = ?", key,
	).Scan(&payload, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	if parseStoredTime(expires).Before(time.Now().UTC()) {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE cache_key = ?", key); err != nil {
			return nil, fmt.Errorf("dropping expired cache entry: %w", err)
		}
		return nil, nil
	}
	return payload, nil
}

// Put stores a payload under key. A zero ttl falls back to
// DefaultCacheTTL.
func (c *CacheStore) Put(ctx context.Context, key, sessionID, view string, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO analysis_cache (cache_key, session_id, view, payload, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, sessionID, view, payload,
		now.Format(time.DateTime), now.Add(ttl).Format(time.DateTime),
	)
	if err != nil {
		return fmt.Errorf("storing cache entry: %w", err)
	}
	return nil
}

// InvalidateSession drops every cached result for a session, called
// when its record set changes or the session is deleted.
func (c *CacheStore) InvalidateSession(ctx context.Context, sessionID string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM analysis_cache WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("invalidating cache for session %s: %w", sessionID, err)
	}
	return nil
}

// PurgeExpired removes all entries past their expiry, returning how
// many were dropped. Called opportunistically, not on a timer.
func (c *CacheStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		"DELETE FROM analysis_cache WHERE expires_at < ?",
		time.Now().UTC().Format(time.DateTime),
	)
	if err != nil {
		return 0, fmt.Errorf("purging expired cache entries: %w", err)
	}
	return res.RowsAffected()
}
