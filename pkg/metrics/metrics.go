package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Search path
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_cache_lookups_total",
			Help: "Cache lookups performed by searches",
		},
		[]string{"result"}, // hit, miss, error
	)

	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sift_search_duration_seconds",
			Help:    "End-to-end search latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"}, // cache, provider
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_provider_requests_total",
			Help: "Upstream search provider requests",
		},
		[]string{"provider", "status"}, // status: success, retry, failure
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sift_provider_duration_seconds",
			Help:    "Upstream search provider latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sift_provider_rate_limit_waits_total",
			Help: "Times a provider request waited on the local rate limiter",
		},
	)

	// Ledger
	HistoryAppends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_history_appends_total",
			Help: "History ledger appends",
		},
		[]string{"status"}, // ok, failed
	)

	// Stores
	StoreUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_store_unavailable_total",
			Help: "Operations that failed because a backing store was unavailable",
		},
		[]string{"store"}, // cache, history
	)

	CacheSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sift_cache_swept_total",
			Help: "Expired cache entries removed by sweeps",
		},
	)

	// Gauges refreshed by the Collector
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sift_cache_entries",
			Help: "Live cache entries",
		},
	)

	CacheHits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sift_cache_entry_hits",
			Help: "Sum of hit counts over live cache entries",
		},
	)

	HistoryItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sift_history_items",
			Help: "History items across all users",
		},
	)

	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_metrics_collection_errors_total",
			Help: "Errors while refreshing gauge metrics",
		},
		[]string{"collector"},
	)

	// HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sift_http_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"route", "code"},
	)
)
