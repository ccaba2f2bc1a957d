// Package historytest holds the behavioural suite every history.Ledger runs.
package historytest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/models"
)

// Factory returns a fresh, empty ledger. It should register its own cleanup.
type Factory func(t *testing.T) history.Ledger

// Run executes the suite against ledgers produced by newLedger.
func Run(t *testing.T, newLedger Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, history.Ledger)
	}{
		{"AppendAssignsIdentity", testAppend},
		{"AppendValidates", testAppendValidates},
		{"ListNewestFirstAndPaged", testListOrder},
		{"ListSearchTerm", testListSearchTerm},
		{"ListDateRangeInclusive", testListDateRange},
		{"ListInvertedRangeIsEmpty", testListInvertedRange},
		{"ListIsolatesUsers", testListIsolation},
		{"DeleteOneOwnership", testDeleteOne},
		{"ClearAllIdempotent", testClearAll},
		{"Summarize", testSummarize},
		{"Count", testCount},
		{"ConcurrentAppends", testConcurrentAppends},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newLedger(t))
		})
	}
}

func appendN(t *testing.T, l history.Ledger, userID string, queries ...string) []models.HistoryItem {
	t.Helper()
	items := make([]models.HistoryItem, 0, len(queries))
	for _, q := range queries {
		item, err := l.Append(context.Background(), models.HistoryRecord{
			UserID:      userID,
			Query:       q,
			ResultCount: len(q),
			CacheStatus: models.CacheMiss,
		})
		require.NoError(t, err)
		items = append(items, item)
	}
	return items
}

func ids(items []models.HistoryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func testAppend(t *testing.T, l history.Ledger) {
	before := time.Now().Add(-time.Second)
	filters := &models.FilterSet{Version: 1, ContentType: "web"}
	item, err := l.Append(context.Background(), models.HistoryRecord{
		UserID:      "u1",
		Query:       "golang channels",
		Filters:     filters,
		ResultCount: 15,
		CacheStatus: models.CacheMiss,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "u1", item.UserID)
	assert.True(t, item.CreatedAt.After(before))

	page, err := l.List(context.Background(), "u1", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	got := page.Items[0]
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, 15, got.ResultCount)
	assert.Equal(t, models.CacheMiss, got.CacheStatus)
	assert.Equal(t, filters, got.Filters)
	assert.True(t, item.CreatedAt.Equal(got.CreatedAt))
}

func testAppendValidates(t *testing.T, l history.Ledger) {
	ctx := context.Background()
	bad := []models.HistoryRecord{
		{Query: "q"},
		{UserID: "u1"},
		{UserID: "u1", Query: "q", ResultCount: -1},
	}
	for _, rec := range bad {
		_, err := l.Append(ctx, rec)
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
	}
}

func testListOrder(t *testing.T, l history.Ledger) {
	items := appendN(t, l, "u1", "one", "two", "three", "four", "five")
	ctx := context.Background()

	page, err := l.List(ctx, "u1", models.HistoryFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{items[4].ID, items[3].ID}, ids(page.Items))
	assert.Equal(t, 5, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNextPage)

	page, err = l.List(ctx, "u1", models.HistoryFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{items[0].ID}, ids(page.Items))
	assert.False(t, page.HasNextPage)

	page, err = l.List(ctx, "u1", models.HistoryFilter{}, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 5, page.TotalCount)

	_, err = l.List(ctx, "u1", models.HistoryFilter{}, 0, 2)
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func testListSearchTerm(t *testing.T, l history.Ledger) {
	items := appendN(t, l, "u1", "Golang Channels", "rust traits", "GOLANG generics", "100% done_now", "tree-node", "ÜBER Café")
	ctx := context.Background()

	page, err := l.List(ctx, "u1", models.HistoryFilter{SearchTerm: "golang"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{items[2].ID, items[0].ID}, ids(page.Items))
	assert.Equal(t, 2, page.TotalCount)

	page, err = l.List(ctx, "u1", models.HistoryFilter{SearchTerm: "%"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{items[3].ID}, ids(page.Items), "wildcards match literally")

	page, err = l.List(ctx, "u1", models.HistoryFilter{SearchTerm: "e_n"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{items[3].ID}, ids(page.Items), "underscore matches literally")

	page, err = l.List(ctx, "u1", models.HistoryFilter{SearchTerm: "über café"}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{items[5].ID}, ids(page.Items), "case folding covers non-ASCII letters")
}

func testListDateRange(t *testing.T, l history.Ledger) {
	items := appendN(t, l, "u1", "a", "b", "c")
	ctx := context.Background()
	mid := items[1].CreatedAt

	page, err := l.List(ctx, "u1", models.HistoryFilter{From: mid, To: mid}, 1, 10)
	require.NoError(t, err)
	assert.Contains(t, ids(page.Items), items[1].ID)

	page, err = l.List(ctx, "u1", models.HistoryFilter{From: items[2].CreatedAt.Add(time.Millisecond)}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	page, err = l.List(ctx, "u1", models.HistoryFilter{To: items[0].CreatedAt.Add(-time.Millisecond)}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func testListInvertedRange(t *testing.T, l history.Ledger) {
	appendN(t, l, "u1", "a")
	now := time.Now()
	page, err := l.List(context.Background(), "u1",
		models.HistoryFilter{From: now, To: now.Add(-time.Hour)}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalCount)
}

func testListIsolation(t *testing.T, l history.Ledger) {
	appendN(t, l, "alice", "secret query")
	page, err := l.List(context.Background(), "bob", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func testDeleteOne(t *testing.T, l history.Ledger) {
	ctx := context.Background()
	mine := appendN(t, l, "alice", "a", "b")
	theirs := appendN(t, l, "bob", "c")

	require.NoError(t, l.DeleteOne(ctx, "alice", mine[0].ID))

	err := l.DeleteOne(ctx, "alice", mine[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "second delete is not found")

	err = l.DeleteOne(ctx, "alice", theirs[0].ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "foreign item is not found")

	page, err := l.List(ctx, "bob", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{theirs[0].ID}, ids(page.Items))

	page, err = l.List(ctx, "alice", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{mine[1].ID}, ids(page.Items))
}

func testClearAll(t *testing.T, l history.Ledger) {
	ctx := context.Background()
	appendN(t, l, "alice", "a", "b", "c")
	appendN(t, l, "bob", "d")

	n, err := l.ClearAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = l.ClearAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = l.ClearAll(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	page, err := l.List(ctx, "bob", models.HistoryFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func testSummarize(t *testing.T, l history.Ledger) {
	ctx := context.Background()
	recs := []models.HistoryRecord{
		{UserID: "u1", Query: "Go", ResultCount: 10, CacheStatus: models.CacheMiss},
		{UserID: "u1", Query: "go ", ResultCount: 10, CacheStatus: models.CacheHit},
		{UserID: "u1", Query: "rust", ResultCount: 4, CacheStatus: models.CacheHit},
		{UserID: "u1", Query: "saved", ResultCount: 0, CacheStatus: models.CacheNone},
		{UserID: "u2", Query: "other", ResultCount: 100, CacheStatus: models.CacheMiss},
	}
	for _, r := range recs {
		_, err := l.Append(ctx, r)
		require.NoError(t, err)
	}

	s, err := l.Summarize(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.TotalItems)
	assert.Equal(t, int64(3), s.UniqueQueries)
	assert.InDelta(t, 6.0, s.AvgResultCount, 0.0001)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)

	s, err = l.Summarize(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerSummary{}, s)
}

func testCount(t *testing.T, l history.Ledger) {
	appendN(t, l, "u1", "a", "b")
	appendN(t, l, "u2", "c")
	n, err := l.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func testConcurrentAppends(t *testing.T, l history.Ledger) {
	const users = 4
	const perUser = 10
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				_, err := l.Append(context.Background(), models.HistoryRecord{
					UserID: fmt.Sprintf("user-%d", u),
					Query:  fmt.Sprintf("q%d", i),
				})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		page, err := l.List(context.Background(), fmt.Sprintf("user-%d", u), models.HistoryFilter{}, 1, 100)
		require.NoError(t, err)
		assert.Len(t, page.Items, perUser)
	}
}
