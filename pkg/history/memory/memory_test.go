package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/history/historytest"
	"github.com/pario-ai/sift/pkg/models"
)

func TestConformance(t *testing.T) {
	historytest.Run(t, func(t *testing.T) history.Ledger { return New() })
}

func TestCleanup(t *testing.T) {
	l := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return base }
	_, err := l.Append(ctx, models.HistoryRecord{UserID: "u1", Query: "old"})
	require.NoError(t, err)

	l.now = func() time.Time { return base.AddDate(0, 0, 40) }
	_, err = l.Append(ctx, models.HistoryRecord{UserID: "u1", Query: "new"})
	require.NoError(t, err)

	n, err := l.Cleanup(ctx, base.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	page, err := l.List(ctx, "u1", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "new", page.Items[0].Query)
}

func TestRetentionLoop(t *testing.T) {
	l := New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l.now = func() time.Time { return base }
	_, err := l.Append(ctx, models.HistoryRecord{UserID: "u1", Query: "old"})
	require.NoError(t, err)
	l.now = func() time.Time { return base.AddDate(0, 0, 40) }
	_, err = l.Append(ctx, models.HistoryRecord{UserID: "u1", Query: "new"})
	require.NoError(t, err)

	l.retentionDays = 30
	l.interval = 10 * time.Millisecond
	l.wg.Add(1)
	go l.retentionLoop()
	defer l.Close()

	assert.Eventually(t, func() bool {
		n, err := l.Count(ctx)
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWithRetentionStartsLoop(t *testing.T) {
	l := New(WithRetention(7))
	assert.Equal(t, 7, l.retentionDays)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	assert.NoError(t, New().Close(), "no loop without retention")
}

func TestAppendCopiesFilters(t *testing.T) {
	l := New()
	f := &models.FilterSet{ContentType: "web"}
	_, err := l.Append(context.Background(), models.HistoryRecord{UserID: "u1", Query: "q", Filters: f})
	require.NoError(t, err)
	f.ContentType = "news"

	page, err := l.List(context.Background(), "u1", models.HistoryFilter{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "web", page.Items[0].Filters.ContentType)
}
