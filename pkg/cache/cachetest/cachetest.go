// Package cachetest holds the behavioural suite every cache.Store backend runs.
package cachetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/cache"
)

// Factory returns a fresh, empty store. It should register its own cleanup.
type Factory func(t *testing.T) cache.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, cache.Store)
	}{
		{"MissIsNotAnError", testMiss},
		{"GetIncrementsHitCount", testHitCount},
		{"OverwriteResetsHitCount", testOverwrite},
		{"ZeroTTLIsInvisible", testZeroTTL},
		{"NegativeTTLRejected", testNegativeTTL},
		{"SweepRemovesOnlyExpired", testSweep},
		{"Purge", testPurge},
		{"StatsCountLiveEntries", testStats},
		{"ConcurrentGetsCountEveryHit", testConcurrentGets},
		{"ConcurrentSweepAndGet", testConcurrentSweep},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func testMiss(t *testing.T, s cache.Store) {
	_, ok, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testHitCount(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("payload"), time.Hour))

	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), e.HitCount)
	assert.Equal(t, []byte("payload"), e.Payload)
	assert.Equal(t, "k", e.Key)
	assert.True(t, e.ExpiresAt.After(e.CreatedAt))

	e, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), e.HitCount)
}

func testOverwrite(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("v1"), time.Hour))
	for i := 0; i < 3; i++ {
		_, _, err := s.Get(ctx, "k")
		require.NoError(t, err)
	}

	require.NoError(t, s.Put(ctx, "k", []byte("v2"), time.Hour))
	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), e.Payload)
	assert.Equal(t, int64(1), e.HitCount)
}

func testZeroTTL(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("v"), 0))

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "zero ttl entry must be invisible")

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func testNegativeTTL(t *testing.T, s cache.Store) {
	err := s.Put(context.Background(), "k", []byte("v"), -time.Second)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func testSweep(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "live", []byte("v"), time.Hour))
	require.NoError(t, s.Put(ctx, "dead-1", []byte("v"), 0))
	require.NoError(t, s.Put(ctx, "dead-2", []byte("v"), 0))

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := s.Get(ctx, "live")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testPurge(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", []byte("v"), time.Hour))
	require.NoError(t, s.Put(ctx, "b", []byte("v"), time.Hour))

	n, err := s.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func testStats(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a", []byte("v"), time.Hour))
	require.NoError(t, s.Put(ctx, "b", []byte("v"), time.Hour))
	require.NoError(t, s.Put(ctx, "expired", []byte("v"), 0))
	_, _, _ = s.Get(ctx, "a")
	_, _, _ = s.Get(ctx, "a")
	_, _, _ = s.Get(ctx, "b")

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Entries)
	assert.Equal(t, int64(3), st.Hits)
}

func testConcurrentGets(t *testing.T, s cache.Store) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "hot", []byte("v"), time.Hour))

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, ok, err := s.Get(ctx, "hot"); err != nil {
					errs <- err
				} else if !ok {
					errs <- fmt.Errorf("unexpected miss")
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	e, ok, err := s.Get(ctx, "hot")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(workers*perWorker+1), e.HitCount)
}

func testConcurrentSweep(t *testing.T, s cache.Store) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		ttl := time.Hour
		if i%2 == 0 {
			ttl = 0
		}
		require.NoError(t, s.Put(ctx, fmt.Sprintf("k%d", i), []byte("v"), ttl))
	}

	var wg sync.WaitGroup
	var swept int64
	var mu sync.Mutex
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n, err := s.SweepExpired(ctx)
			assert.NoError(t, err)
			mu.Lock()
			swept += n
			mu.Unlock()
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				e, ok, err := s.Get(ctx, fmt.Sprintf("k%d", i))
				assert.NoError(t, err)
				if i%2 == 0 {
					assert.False(t, ok)
				} else if assert.True(t, ok) {
					assert.GreaterOrEqual(t, e.HitCount, int64(1))
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(10), swept, "each expired entry is removed exactly once")
}
