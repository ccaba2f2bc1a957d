package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pario-ai/sift/pkg/models"
)

type fakeSource struct {
	stats models.SystemStats
	err   error
}

func (f fakeSource) SystemStats(context.Context) (models.SystemStats, error) {
	return f.stats, f.err
}

func TestCollectSetsGauges(t *testing.T) {
	c := NewCollector(fakeSource{stats: models.SystemStats{
		TotalCacheEntries: 4,
		TotalHits:         9,
		TotalHistoryItems: 13,
	}}, 0)
	c.Collect(context.Background())

	assert.Equal(t, 4.0, testutil.ToFloat64(CacheEntries))
	assert.Equal(t, 9.0, testutil.ToFloat64(CacheHits))
	assert.Equal(t, 13.0, testutil.ToFloat64(HistoryItems))
}

func TestCollectSignalsStaleOnError(t *testing.T) {
	before := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("system"))

	c := NewCollector(fakeSource{err: errors.New("down")}, 0)
	c.Collect(context.Background())

	assert.Equal(t, -1.0, testutil.ToFloat64(CacheEntries))
	assert.Equal(t, -1.0, testutil.ToFloat64(HistoryItems))
	assert.Equal(t, before+1, testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("system")))
}

func TestStopIsIdempotent(t *testing.T) {
	c := NewCollector(fakeSource{}, 0)
	c.Stop()
	c.Stop()
}
