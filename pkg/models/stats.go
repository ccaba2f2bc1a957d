package models

import "time"

// UserStats summarizes one user's search activity. Values are a point-in-time
// read of the ledger and are not transactional with concurrent searches.
type UserStats struct {
	UserID         string    `json:"user_id"`
	TotalSearches  int64     `json:"total_searches"`
	UniqueQueries  int64     `json:"unique_queries"`
	AvgResultCount float64   `json:"avg_result_count"`
	CacheHitRatio  float64   `json:"cache_hit_ratio"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// SystemStats summarizes the cache store and ledger. Eventually consistent.
type SystemStats struct {
	TotalCacheEntries int64     `json:"total_cache_entries"`
	TotalHits         int64     `json:"total_hits"`
	AggregateHitRatio float64   `json:"aggregate_hit_ratio"`
	TotalHistoryItems int64     `json:"total_history_items"`
	CalculatedAt      time.Time `json:"calculated_at"`
}
