package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/models"
)

// Cache is a cache.Store backed by SQLite. Timestamps are unix milliseconds.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	hit_count  INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// New opens (or creates) the cache database at dbPath.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// SQLite has a single writer and every Get is a write.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Get bumps and returns a live entry in a single statement, so a concurrent
// sweep either runs before (and the row is gone) or after.
func (c *Cache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	var (
		e                  = models.CacheEntry{Key: key}
		created, expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1
		 WHERE cache_key = ? AND expires_at > ?
		 RETURNING payload, hit_count, created_at, expires_at`,
		key, c.now().UnixMilli(),
	).Scan(&e.Payload, &e.HitCount, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, apperr.StoreUnavailable("sqlite.Get", err)
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return e, true, nil
}

// Put stores a payload, resetting the hit count of an existing key.
func (c *Cache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		return apperr.InvalidArgument("sqlite.Put", "negative ttl %s", ttl)
	}
	now := c.now()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, payload, hit_count, created_at, expires_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			hit_count = 0,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, payload, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return apperr.StoreUnavailable("sqlite.Put", err)
	}
	return nil
}

// SweepExpired deletes entries whose expiry has passed.
func (c *Cache) SweepExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, c.now().UnixMilli())
	if err != nil {
		return 0, apperr.StoreUnavailable("sqlite.SweepExpired", err)
	}
	return res.RowsAffected()
}

// Purge removes every entry.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	if err != nil {
		return 0, apperr.StoreUnavailable("sqlite.Purge", err)
	}
	return res.RowsAffected()
}

// Stats counts live entries and sums their hits.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var st models.CacheStats
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM cache_entries WHERE expires_at > ?`,
		c.now().UnixMilli(),
	).Scan(&st.Entries, &st.Hits)
	if err != nil {
		return models.CacheStats{}, apperr.StoreUnavailable("sqlite.Stats", err)
	}
	return st, nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
