package models

import (
	"testing"
	"time"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		page      int
		limit     int
		wantPages int
		wantNext  bool
	}{
		{"first of three", 23, 1, 10, 3, true},
		{"middle", 23, 2, 10, 3, true},
		{"last partial", 23, 3, 10, 3, false},
		{"exact multiple last", 20, 2, 10, 2, false},
		{"empty", 0, 1, 10, 0, false},
		{"beyond end", 5, 4, 10, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantNext, p.HasNextPage)
			assert.Equal(t, tt.page, p.CurrentPage)
		})
	}
}

func TestFilterSetNormalize(t *testing.T) {
	f := (&FilterSet{
		ContentType: " WEB ",
		SortOrder:   "Date",
		Domain:      "Go.Dev.",
		DateFrom:    "2024-03-01T23:30:00-02:00",
	}).Normalize()

	assert.Equal(t, FilterVersion, f.Version)
	assert.Equal(t, "web", f.ContentType)
	assert.Equal(t, "date", f.SortOrder)
	assert.Equal(t, "go.dev", f.Domain)
	assert.Equal(t, "2024-03-02", f.DateFrom)

	var nilSet *FilterSet
	assert.Nil(t, nilSet.Normalize())
	assert.True(t, nilSet.IsEmpty())
}

func TestFilterSetValidate(t *testing.T) {
	tests := []struct {
		name string
		f    FilterSet
		ok   bool
	}{
		{"empty", FilterSet{}, true},
		{"valid", FilterSet{ContentType: "news", SortOrder: "relevance", DateFrom: "2024-01-01", DateTo: "2024-02-01"}, true},
		{"same day range", FilterSet{DateFrom: "2024-01-01", DateTo: "2024-01-01"}, true},
		{"unknown content type", FilterSet{ContentType: "podcasts"}, false},
		{"unknown sort", FilterSet{SortOrder: "random"}, false},
		{"bad domain", FilterSet{Domain: "go.dev/blog"}, false},
		{"bad date", FilterSet{DateFrom: "yesterday"}, false},
		{"inverted range", FilterSet{DateFrom: "2024-02-01", DateTo: "2024-01-01"}, false},
		{"future version", FilterSet{Version: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.f.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
		})
	}
}

func TestParseFilterSet(t *testing.T) {
	f, err := ParseFilterSet(map[string]string{"contentType": "Web", "sort": "date"})
	require.NoError(t, err)
	assert.Equal(t, "web", f.ContentType)
	assert.Equal(t, "date", f.SortOrder)

	_, err = ParseFilterSet(map[string]string{"colour": "red"})
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))

	f, err = ParseFilterSet(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestHistoryFilterMatches(t *testing.T) {
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	item := HistoryItem{Query: "Golang Channels", CreatedAt: at}

	assert.True(t, HistoryFilter{}.Matches(item, ""))
	assert.True(t, HistoryFilter{}.Matches(item, FoldTerm(" CHANNEL ")))
	assert.False(t, HistoryFilter{}.Matches(item, FoldTerm("rust")))
	assert.True(t, HistoryFilter{From: at, To: at}.Matches(item, ""), "bounds are inclusive")
	assert.False(t, HistoryFilter{From: at.Add(time.Second)}.Matches(item, ""))
	assert.False(t, HistoryFilter{To: at.Add(-time.Second)}.Matches(item, ""))

	assert.True(t, HistoryFilter{From: at, To: at.Add(-time.Hour)}.EmptyRange())
	assert.False(t, HistoryFilter{From: at}.EmptyRange())
}

func TestCacheEntryLive(t *testing.T) {
	now := time.Now()
	assert.True(t, CacheEntry{ExpiresAt: now.Add(time.Second)}.Live(now))
	assert.False(t, CacheEntry{ExpiresAt: now}.Live(now))
}
