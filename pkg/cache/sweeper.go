package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/metrics"
)

// Sweeper periodically removes expired entries from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewSweeper creates a sweeper. Call Start to begin sweeping.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval, done: make(chan struct{})}
}

// Start launches the sweep loop. A non-positive interval disables it.
func (s *Sweeper) Start() {
	if s.interval <= 0 {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log := logger.WithComponent("cache-sweeper")
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			n, err := s.store.SweepExpired(ctx)
			cancel()
			if err != nil {
				log.Warn("sweep failed", "error", err)
				metrics.StoreUnavailable.WithLabelValues("cache").Inc()
				continue
			}
			metrics.CacheSwept.Add(float64(n))
			if n > 0 {
				log.Debug("swept expired entries", "removed", n)
			}
		}
	}
}
