// Package memory is an in-process history.Ledger with per-user buckets.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pario-ai/sift/pkg/cachekey"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
)

// bucket holds one user's items in append order.
type bucket struct {
	mu    sync.RWMutex
	items []models.HistoryItem
}

// Ledger keeps each user's items behind that user's own lock.
type Ledger struct {
	users sync.Map // userID -> *bucket
	now   func() time.Time

	retentionDays int
	interval      time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	once          sync.Once
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRetention drops items older than days, checked hourly. Zero keeps
// everything.
func WithRetention(days int) Option {
	return func(l *Ledger) { l.retentionDays = days }
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now, interval: time.Hour, done: make(chan struct{})}
	for _, o := range opts {
		o(l)
	}
	if l.retentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}
	return l
}

func (l *Ledger) bucket(userID string, create bool) *bucket {
	if b, ok := l.users.Load(userID); ok {
		return b.(*bucket)
	}
	if !create {
		return nil
	}
	b, _ := l.users.LoadOrStore(userID, &bucket{})
	return b.(*bucket)
}

// Append records an item.
func (l *Ledger) Append(_ context.Context, rec models.HistoryRecord) (models.HistoryItem, error) {
	if err := history.ValidateRecord(rec); err != nil {
		return models.HistoryItem{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return models.HistoryItem{}, err
	}
	var filters *models.FilterSet
	if rec.Filters != nil {
		f := *rec.Filters
		filters = &f
	}
	item := models.HistoryItem{
		ID:          id.String(),
		UserID:      rec.UserID,
		Query:       rec.Query,
		Filters:     filters,
		ResultCount: rec.ResultCount,
		CacheStatus: rec.CacheStatus,
		CreatedAt:   l.now().UTC().Truncate(time.Millisecond),
	}

	b := l.bucket(rec.UserID, true)
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()
	return item, nil
}

// List filters and pages a user's items, newest first.
func (l *Ledger) List(_ context.Context, userID string, filter models.HistoryFilter, page, limit int) (models.HistoryPage, error) {
	if err := history.ValidatePage(userID, page, limit); err != nil {
		return models.HistoryPage{}, err
	}
	if filter.EmptyRange() {
		return history.EmptyPage(page, limit), nil
	}
	b := l.bucket(userID, false)
	if b == nil {
		return history.EmptyPage(page, limit), nil
	}

	term := models.FoldTerm(filter.SearchTerm)
	offset := (page - 1) * limit
	out := []models.HistoryItem{}
	total := 0

	b.mu.RLock()
	for i := len(b.items) - 1; i >= 0; i-- {
		it := b.items[i]
		if !filter.Matches(it, term) {
			continue
		}
		if total >= offset && len(out) < limit {
			out = append(out, it)
		}
		total++
	}
	b.mu.RUnlock()

	return models.HistoryPage{Items: out, Pagination: models.NewPagination(total, page, limit)}, nil
}

// DeleteOne removes the item if userID owns it.
func (l *Ledger) DeleteOne(_ context.Context, userID, id string) error {
	b := l.bucket(userID, false)
	if b == nil {
		return history.NotFound(id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, it := range b.items {
		if it.ID == id {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return nil
		}
	}
	return history.NotFound(id)
}

// ClearAll drops a user's bucket contents.
func (l *Ledger) ClearAll(_ context.Context, userID string) (int64, error) {
	b := l.bucket(userID, false)
	if b == nil {
		return 0, nil
	}
	b.mu.Lock()
	n := int64(len(b.items))
	b.items = nil
	b.mu.Unlock()
	return n, nil
}

// Summarize aggregates a user's items.
func (l *Ledger) Summarize(_ context.Context, userID string) (models.LedgerSummary, error) {
	var s models.LedgerSummary
	b := l.bucket(userID, false)
	if b == nil {
		return s, nil
	}
	unique := make(map[string]struct{})
	var results int64

	b.mu.RLock()
	for _, it := range b.items {
		s.TotalItems++
		results += int64(it.ResultCount)
		unique[cachekey.NormalizeQuery(it.Query)] = struct{}{}
		switch it.CacheStatus {
		case models.CacheHit:
			s.Hits++
		case models.CacheMiss:
			s.Misses++
		}
	}
	b.mu.RUnlock()

	s.UniqueQueries = int64(len(unique))
	if s.TotalItems > 0 {
		s.AvgResultCount = float64(results) / float64(s.TotalItems)
	}
	return s, nil
}

// Count totals items over all users.
func (l *Ledger) Count(_ context.Context) (int64, error) {
	var n int64
	l.users.Range(func(_, v any) bool {
		b := v.(*bucket)
		b.mu.RLock()
		n += int64(len(b.items))
		b.mu.RUnlock()
		return true
	})
	return n, nil
}

// Cleanup removes items created before cutoff across all users.
func (l *Ledger) Cleanup(_ context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	l.users.Range(func(_, v any) bool {
		b := v.(*bucket)
		b.mu.Lock()
		kept := b.items[:0]
		for _, it := range b.items {
			if it.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, it)
		}
		b.items = kept
		b.mu.Unlock()
		return true
	})
	return removed, nil
}

// Close stops the retention loop.
func (l *Ledger) Close() error {
	l.once.Do(func() { close(l.done) })
	l.wg.Wait()
	return nil
}

func (l *Ledger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	log := logger.WithComponent("history-retention")
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			cutoff := l.now().AddDate(0, 0, -l.retentionDays)
			if n, _ := l.Cleanup(context.Background(), cutoff); n > 0 {
				log.Info("removed expired history items", "removed", n)
			}
		}
	}
}
