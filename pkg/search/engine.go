// Package search orchestrates cache lookups, provider fetches and history
// recording for a single search request.
package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/cache"
	"github.com/pario-ai/sift/pkg/cachekey"
	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/errorreporting"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/metrics"
	"github.com/pario-ai/sift/pkg/models"
	"github.com/pario-ai/sift/pkg/provider"
	"github.com/pario-ai/sift/pkg/tracing"
)

// Options tunes the engine.
type Options struct {
	TTL             time.Duration
	ProviderTimeout time.Duration
	AppendTimeout   time.Duration
	// WriteTimeout bounds the cache write after a provider fetch. It runs
	// detached from the caller so a disconnect does not drop the entry.
	WriteTimeout time.Duration
	// MaxLimit caps the page size. Zero means no cap.
	MaxLimit int
}

// OptionsFromConfig reads engine options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TTL:             cfg.Cache.TTL,
		ProviderTimeout: cfg.Provider.Timeout,
		AppendTimeout:   cfg.History.AppendTimeout,
		MaxLimit:        cfg.Search.MaxLimit,
	}
}

// Engine serves searches from the cache when it can and from the provider
// otherwise, recording every successful search in the user's history.
type Engine struct {
	store    cache.Store
	ledger   history.Ledger
	provider provider.Provider
	codec    *cache.Codec
	opts     Options

	pending sync.WaitGroup
}

// New creates an Engine. A nil store disables caching.
func New(store cache.Store, ledger history.Ledger, p provider.Provider, codec *cache.Codec, opts Options) *Engine {
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	return &Engine{
		store:    store,
		ledger:   ledger,
		provider: p,
		codec:    codec,
		opts:     opts,
	}
}

// Search answers one page of a query for userID.
func (e *Engine) Search(ctx context.Context, userID, query string, filters *models.FilterSet, page, limit int) (models.SearchResponse, error) {
	const op = "search.Search"
	start := time.Now()

	ctx, span := tracing.StartSpan(ctx, "search.Search")
	defer span.End()

	if userID == "" {
		return models.SearchResponse{}, apperr.InvalidArgument(op, "user id is required")
	}
	if page < 1 {
		return models.SearchResponse{}, apperr.InvalidArgument(op, "page must be >= 1")
	}
	if limit < 1 {
		return models.SearchResponse{}, apperr.InvalidArgument(op, "limit must be >= 1")
	}
	if e.opts.MaxLimit > 0 && limit > e.opts.MaxLimit {
		return models.SearchResponse{}, apperr.InvalidArgument(op, "limit must be <= %d", e.opts.MaxLimit)
	}
	filters = filters.Normalize()
	if err := filters.Validate(); err != nil {
		return models.SearchResponse{}, err
	}
	key, err := cachekey.Normalize(query, filters, page, limit)
	if err != nil {
		return models.SearchResponse{}, err
	}

	log := logger.WithRequestID(ctx)
	span.SetAttributes(attribute.Int("search.page", page), attribute.Int("search.limit", limit))

	rs, hit := e.lookup(ctx, key)
	status := models.CacheMiss
	source := "provider"
	if hit {
		status = models.CacheHit
		source = "cache"
	} else {
		rs, err = e.fetch(ctx, models.SearchRequest{Query: query, Filters: filters, Page: page, Limit: limit})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "provider failed")
			log.Warn("search provider failed", "error", err)
			return models.SearchResponse{}, err
		}
		e.save(ctx, key, rs)
	}
	span.SetAttributes(attribute.Bool("search.cache_hit", hit))

	resp := buildResponse(rs, page, limit, hit)
	metrics.SearchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

	e.appendAsync(ctx, models.HistoryRecord{
		UserID:      userID,
		Query:       query,
		Filters:     filters,
		ResultCount: rs.TotalCount,
		CacheStatus: status,
	})
	return resp, nil
}

// lookup consults the cache. Store failures and unreadable payloads are
// reported and then treated as misses.
func (e *Engine) lookup(ctx context.Context, key string) (models.ResultSet, bool) {
	if e.store == nil {
		return models.ResultSet{}, false
	}
	entry, ok, err := e.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		e.reportStoreError(ctx, "cache", "get", err)
		return models.ResultSet{}, false
	}
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return models.ResultSet{}, false
	}
	rs, err := e.codec.Decode(entry.Payload)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		logger.WithRequestID(ctx).Warn("discarding unreadable cache entry", "error", err)
		return models.ResultSet{}, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return rs, true
}

func (e *Engine) fetch(ctx context.Context, req models.SearchRequest) (models.ResultSet, error) {
	const op = "search.fetch"
	if e.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ProviderTimeout)
		defer cancel()
	}
	rs, err := e.provider.Fetch(ctx, req)
	if err != nil {
		if apperr.Is(err, apperr.KindUpstream) {
			return models.ResultSet{}, err
		}
		return models.ResultSet{}, apperr.Upstream(op, err)
	}
	if rs.Results == nil {
		rs.Results = []models.SearchResult{}
	}
	return rs, nil
}

// save writes a fresh result set. Failures never fail the search.
func (e *Engine) save(ctx context.Context, key string, rs models.ResultSet) {
	if e.store == nil {
		return
	}
	payload, err := e.codec.Encode(rs)
	if err != nil {
		logger.WithRequestID(ctx).Warn("encode result set for cache", "error", err)
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.WriteTimeout)
	defer cancel()
	if err := e.store.Put(wctx, key, payload, e.opts.TTL); err != nil {
		e.reportStoreError(ctx, "cache", "put", err)
	}
}

// appendAsync records the search on a context that survives the caller's
// cancellation. Failures are observable but never reach the caller.
func (e *Engine) appendAsync(ctx context.Context, rec models.HistoryRecord) {
	if e.ledger == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		actx, cancel := context.WithTimeout(detached, e.opts.AppendTimeout)
		defer cancel()
		if _, err := e.ledger.Append(actx, rec); err != nil {
			metrics.HistoryAppends.WithLabelValues("failed").Inc()
			e.reportStoreError(actx, "history", "append", err)
			return
		}
		metrics.HistoryAppends.WithLabelValues("ok").Inc()
	}()
}

func (e *Engine) reportStoreError(ctx context.Context, store, action string, err error) {
	metrics.StoreUnavailable.WithLabelValues(store).Inc()
	logger.WithRequestID(ctx).Warn("store operation failed",
		"store", store, "action", action, "kind", string(apperr.KindOf(err)), "error", err)
	errorreporting.CaptureErrorWithContext(err,
		map[string]string{"store": store, "action": action},
		nil)
}

// Wait blocks until pending history appends finish.
func (e *Engine) Wait() {
	e.pending.Wait()
}

// SaveHistory records a search the caller performed elsewhere. Unlike the
// append made by Search it is synchronous and its errors are returned.
func (e *Engine) SaveHistory(ctx context.Context, userID, query string, filters *models.FilterSet, resultCount int) (models.HistoryItem, error) {
	if e.ledger == nil {
		return models.HistoryItem{}, apperr.StoreUnavailable("search.SaveHistory", errors.New("history is not configured"))
	}
	filters = filters.Normalize()
	if err := filters.Validate(); err != nil {
		return models.HistoryItem{}, err
	}
	return e.ledger.Append(ctx, models.HistoryRecord{
		UserID:      userID,
		Query:       query,
		Filters:     filters,
		ResultCount: resultCount,
		CacheStatus: models.CacheNone,
	})
}

// SweepExpired removes expired cache entries. With caching disabled there is
// nothing to sweep.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	if e.store == nil {
		return 0, nil
	}
	n, err := e.store.SweepExpired(ctx)
	if err != nil {
		return 0, err
	}
	metrics.CacheSwept.Add(float64(n))
	return n, nil
}

// PurgeCache removes every cache entry.
func (e *Engine) PurgeCache(ctx context.Context) (int64, error) {
	if e.store == nil {
		return 0, nil
	}
	return e.store.Purge(ctx)
}

func buildResponse(rs models.ResultSet, page, limit int, fromCache bool) models.SearchResponse {
	p := models.NewPagination(rs.TotalCount, page, limit)
	results := rs.Results
	if results == nil {
		results = []models.SearchResult{}
	}
	return models.SearchResponse{
		Results:      results,
		TotalCount:   rs.TotalCount,
		CurrentPage:  p.CurrentPage,
		TotalPages:   p.TotalPages,
		HasNextPage:  p.HasNextPage,
		SearchTimeMs: rs.SearchTimeMs,
		FromCache:    fromCache,
	}
}
