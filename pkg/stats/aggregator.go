// Package stats derives user and system statistics from the cache store and
// the history ledger.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/cache"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/models"
)

// Aggregator computes statistics on demand. It holds no state of its own:
// every figure is read from the stores at call time, and the two stores are
// read independently, so a snapshot is eventually consistent rather than
// transactional with concurrent searches.
type Aggregator struct {
	store  cache.Store
	ledger history.Ledger
	now    func() time.Time
}

// New creates an Aggregator. store may be nil when caching is disabled.
func New(store cache.Store, ledger history.Ledger) *Aggregator {
	return &Aggregator{store: store, ledger: ledger, now: time.Now}
}

// UserStats summarizes one user's history. The hit ratio comes from the
// hit/miss status the search path stamped on each item.
func (a *Aggregator) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	if userID == "" {
		return models.UserStats{}, apperr.InvalidArgument("stats.UserStats", "user id is required")
	}
	s, err := a.ledger.Summarize(ctx, userID)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("summarize history: %w", err)
	}
	return models.UserStats{
		UserID:         userID,
		TotalSearches:  s.TotalItems,
		UniqueQueries:  s.UniqueQueries,
		AvgResultCount: s.AvgResultCount,
		CacheHitRatio:  ratio(s.Hits, s.Hits+s.Misses),
		CalculatedAt:   a.now().UTC(),
	}, nil
}

// SystemStats scans the cache store and counts the ledger. Each live entry
// was created by exactly one miss, so the aggregate ratio is
// hits / (hits + entries).
func (a *Aggregator) SystemStats(ctx context.Context) (models.SystemStats, error) {
	var cs models.CacheStats
	if a.store != nil {
		var err error
		cs, err = a.store.Stats(ctx)
		if err != nil {
			return models.SystemStats{}, fmt.Errorf("scan cache: %w", err)
		}
	}
	items, err := a.ledger.Count(ctx)
	if err != nil {
		return models.SystemStats{}, fmt.Errorf("count history: %w", err)
	}
	return models.SystemStats{
		TotalCacheEntries: cs.Entries,
		TotalHits:         cs.Hits,
		AggregateHitRatio: ratio(cs.Hits, cs.Hits+cs.Entries),
		TotalHistoryItems: items,
		CalculatedAt:      a.now().UTC(),
	}, nil
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
