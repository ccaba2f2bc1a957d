package models

import "time"

// SearchResult is a single provider hit.
type SearchResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet,omitempty"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ResultSet is what a provider returns for one page and what the cache stores.
type ResultSet struct {
	Results      []SearchResult `json:"results"`
	TotalCount   int            `json:"total_count"`
	SearchTimeMs int64          `json:"search_time_ms"`
}

// SearchRequest is the provider-facing form of a user query.
type SearchRequest struct {
	Query   string
	Filters *FilterSet
	Page    int
	Limit   int
}

// SearchResponse is returned to the caller of a search.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalCount   int            `json:"total_count"`
	CurrentPage  int            `json:"current_page"`
	TotalPages   int            `json:"total_pages"`
	HasNextPage  bool           `json:"has_next_page"`
	SearchTimeMs int64          `json:"search_time_ms"`
	FromCache    bool           `json:"from_cache"`
}

// Pagination is derived page metadata. It is never stored.
type Pagination struct {
	TotalCount  int  `json:"total_count"`
	CurrentPage int  `json:"current_page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"total_pages"`
	HasNextPage bool `json:"has_next_page"`
}

// NewPagination derives page metadata from a total, a 1-based page and a page size.
func NewPagination(total, page, limit int) Pagination {
	p := Pagination{TotalCount: total, CurrentPage: page, Limit: limit}
	if limit > 0 {
		p.TotalPages = (total + limit - 1) / limit
		p.HasNextPage = page*limit < total
	}
	return p
}
