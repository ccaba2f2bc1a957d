package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/cache"
	"github.com/pario-ai/sift/pkg/cache/cachetest"
)

func TestConformance(t *testing.T) {
	cachetest.Run(t, func(t *testing.T) cache.Store {
		s, err := New(4)
		require.NoError(t, err)
		return s
	})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestExpiryBoundary(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s, err := New(2, WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), time.Minute))

	clock.Advance(time.Minute - time.Nanosecond)
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "visible just before expiry")

	clock.Advance(time.Nanosecond)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "invisible exactly at expiry")

	n, err := s.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPutCopiesPayload(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, s.Put(ctx, "k", buf, time.Hour))
	buf[0] = 'x'

	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(e.Payload))
}

func TestGetReturnsCopy(t *testing.T) {
	s, err := New(1)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("abc"), time.Hour))

	e, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	e.Payload[0] = 'x'

	e, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(e.Payload))
}

func TestNewRejectsHugeShardCount(t *testing.T) {
	_, err := New(1 << 20)
	assert.Error(t, err)

	s, err := New(0)
	require.NoError(t, err)
	assert.Len(t, s.shards, DefaultShards)
}

func TestSweepHonoursCancellation(t *testing.T) {
	s, err := New(8)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.SweepExpired(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
