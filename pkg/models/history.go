package models

import (
	"strings"
	"time"
)

// CacheStatus records how a search was served.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
	// CacheNone marks items saved explicitly rather than by a search.
	CacheNone CacheStatus = ""
)

// HistoryRecord is the input to a ledger append.
type HistoryRecord struct {
	UserID      string
	Query       string
	Filters     *FilterSet
	ResultCount int
	CacheStatus CacheStatus
}

// HistoryItem is an immutable ledger entry.
type HistoryItem struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Query       string      `json:"query"`
	Filters     *FilterSet  `json:"filters,omitempty"`
	ResultCount int         `json:"result_count"`
	CacheStatus CacheStatus `json:"cache_status,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// HistoryFilter narrows a ledger listing. Zero values mean unbounded.
type HistoryFilter struct {
	SearchTerm string
	From       time.Time
	To         time.Time
}

// EmptyRange reports whether both bounds are set and inverted.
func (f HistoryFilter) EmptyRange() bool {
	return !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From)
}

// Matches applies the filter to a single item.
func (f HistoryFilter) Matches(item HistoryItem, foldedTerm string) bool {
	if !f.From.IsZero() && item.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && item.CreatedAt.After(f.To) {
		return false
	}
	if foldedTerm == "" {
		return true
	}
	return containsFold(item.Query, foldedTerm)
}

// HistoryPage is one page of a ledger listing, newest first.
type HistoryPage struct {
	Items []HistoryItem `json:"items"`
	Pagination
}

// LedgerSummary aggregates one user's ledger.
type LedgerSummary struct {
	TotalItems     int64   `json:"total_items"`
	UniqueQueries  int64   `json:"unique_queries"`
	AvgResultCount float64 `json:"avg_result_count"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
}

// FoldTerm prepares a search term for Matches.
func FoldTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

func containsFold(s, foldedTerm string) bool {
	return strings.Contains(strings.ToLower(s), foldedTerm)
}
