package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
)

// StatsSource supplies the system snapshot the gauges mirror.
type StatsSource interface {
	SystemStats(ctx context.Context) (models.SystemStats, error)
}

// Collector periodically refreshes gauge metrics from a StatsSource.
type Collector struct {
	source   StatsSource
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewCollector creates a new metrics collector.
func NewCollector(source StatsSource, interval time.Duration) *Collector {
	return &Collector{
		source:   source,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start runs the collection loop until Stop is called or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the collector.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Collect refreshes the gauges once. On failure they are set to -1 to signal
// stale data.
func (c *Collector) Collect(ctx context.Context) {
	stats, err := c.source.SystemStats(ctx)
	if err != nil {
		logger.WithComponent("metrics").Warn("collect system stats", "error", err)
		MetricsCollectionErrors.WithLabelValues("system").Inc()
		CacheEntries.Set(-1)
		CacheHits.Set(-1)
		HistoryItems.Set(-1)
		return
	}
	CacheEntries.Set(float64(stats.TotalCacheEntries))
	CacheHits.Set(float64(stats.TotalHits))
	HistoryItems.Set(float64(stats.TotalHistoryItems))
}
