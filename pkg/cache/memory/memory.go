// Package memory is an in-process, sharded cache.Store.
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/models"
)

// DefaultShards is used when New is given a non-positive shard count.
const DefaultShards = 32

type entry struct {
	payload   []byte
	hits      int64
	createdAt time.Time
	expiresAt time.Time
}

type shard struct {
	mu    sync.Mutex
	items map[string]*entry
}

// Store keeps entries in memory, spread over independently locked shards.
type Store struct {
	shards []*shard
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store with the given number of shards.
func New(numShards int, opts ...Option) (*Store, error) {
	if numShards <= 0 {
		numShards = DefaultShards
	}
	if numShards > 4096 {
		return nil, fmt.Errorf("shard count too large: %d", numShards)
	}
	s := &Store{shards: make([]*shard, numShards), now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]*entry)}
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns a copy of a live entry and increments its hit count under the
// shard lock.
func (s *Store) Get(_ context.Context, key string) (models.CacheEntry, bool, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.items[key]
	if !ok || !now.Before(e.expiresAt) {
		return models.CacheEntry{}, false, nil
	}
	e.hits++
	return models.CacheEntry{
		Key:       key,
		Payload:   append([]byte(nil), e.payload...),
		HitCount:  e.hits,
		CreatedAt: e.createdAt,
		ExpiresAt: e.expiresAt,
	}, true, nil
}

// Put stores a copy of payload, replacing any previous entry.
func (s *Store) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	if ttl < 0 {
		return apperr.InvalidArgument("memory.Put", "negative ttl %s", ttl)
	}
	now := s.now()
	e := &entry{
		payload:   append([]byte(nil), payload...),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.items[key] = e
	sh.mu.Unlock()
	return nil
}

// SweepExpired walks the shards one at a time, so a sweep only ever blocks
// keys that share the shard being swept.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	var removed int64
	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		now := s.now()
		sh.mu.Lock()
		for k, e := range sh.items {
			if !now.Before(e.expiresAt) {
				delete(sh.items, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Purge drops every entry.
func (s *Store) Purge(_ context.Context) (int64, error) {
	var removed int64
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += int64(len(sh.items))
		sh.items = make(map[string]*entry)
		sh.mu.Unlock()
	}
	return removed, nil
}

// Stats counts live entries and their hits.
func (s *Store) Stats(_ context.Context) (models.CacheStats, error) {
	var st models.CacheStats
	now := s.now()
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.items {
			if now.Before(e.expiresAt) {
				st.Entries++
				st.Hits += e.hits
			}
		}
		sh.mu.Unlock()
	}
	return st, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
