package models

import "time"

// CacheEntry is a stored result set and its usage counter.
type CacheEntry struct {
	Key       string    `json:"key"`
	Payload   []byte    `json:"-"`
	HitCount  int64     `json:"hit_count"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Live reports whether the entry is visible at now.
func (e CacheEntry) Live(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// CacheStats is a scan of the live entries of a cache store.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
}
