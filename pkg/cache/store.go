// Package cache defines the result cache contract and its shared helpers.
package cache

import (
	"context"
	"time"

	"github.com/pario-ai/sift/pkg/models"
)

// Store persists encoded result sets under normalized keys.
type Store interface {
	// Get returns the live entry for key and atomically increments its hit
	// count. A miss is (zero, false, nil); backend failures are errors of
	// kind STORE_UNAVAILABLE.
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)

	// Put creates or overwrites the entry for key. Overwriting resets the hit
	// count. A ttl of zero stores an entry that is already expired.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// SweepExpired removes every entry whose expiry is at or before now and
	// returns how many were removed.
	SweepExpired(ctx context.Context) (int64, error)

	// Purge removes all entries.
	Purge(ctx context.Context) (int64, error)

	// Stats scans the live entries.
	Stats(ctx context.Context) (models.CacheStats, error)

	// Close releases backend resources.
	Close() error
}
