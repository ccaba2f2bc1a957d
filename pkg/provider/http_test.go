package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/models"
)

func resultsHandler(t *testing.T, n int, calls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		assert.Equal(t, "/search", r.URL.Path)
		results := make([]models.SearchResult, n)
		for i := range results {
			results[i] = models.SearchResult{Title: "r", URL: "https://example.com"}
		}
		_ = json.NewEncoder(w).Encode(wireResponse{Results: results, TotalCount: n, SearchTimeMs: 12})
	}
}

func newClient(providers []config.ProviderConfig, routes ...config.RouteConfig) *HTTPClient {
	cfg := config.Default()
	cfg.Providers = providers
	cfg.Router.Routes = routes
	return NewHTTPClient(cfg)
}

func TestFetch(t *testing.T) {
	var seen http.Header
	var query string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		query = r.URL.RawQuery
		resultsHandler(t, 15, nil)(w, r)
	}))
	defer upstream.Close()

	c := newClient([]config.ProviderConfig{{Name: "web", URL: upstream.URL, APIKey: "sk-provider"}})
	rs, err := c.Fetch(context.Background(), models.SearchRequest{
		Query:   "golang channels",
		Filters: &models.FilterSet{ContentType: "web", SortOrder: "date"},
		Page:    1,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.Len(t, rs.Results, 15)
	assert.Equal(t, 15, rs.TotalCount)
	assert.Equal(t, int64(12), rs.SearchTimeMs)
	assert.Equal(t, "Bearer sk-provider", seen.Get("Authorization"))
	assert.Contains(t, query, "q=golang+channels")
	assert.Contains(t, query, "type=web")
	assert.Contains(t, query, "sort=date")
	assert.Contains(t, query, "limit=10")
}

func TestFetchFallsBackOn5xx(t *testing.T) {
	var primaryCalls, secondaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(resultsHandler(t, 3, &secondaryCalls))
	defer secondary.Close()

	c := newClient(
		[]config.ProviderConfig{{Name: "primary", URL: primary.URL}, {Name: "secondary", URL: secondary.URL}},
		config.RouteConfig{ContentType: "news", Providers: []string{"primary", "secondary"}},
	)
	rs, err := c.Fetch(context.Background(), models.SearchRequest{
		Query: "q", Filters: &models.FilterSet{ContentType: "news"}, Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, rs.Results, 3)
	assert.Equal(t, int32(1), primaryCalls.Load())
	assert.Equal(t, int32(1), secondaryCalls.Load())
}

func TestFetchFallsBackOnRateLimit(t *testing.T) {
	var secondaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(resultsHandler(t, 2, &secondaryCalls))
	defer secondary.Close()

	c := newClient(
		[]config.ProviderConfig{{Name: "primary", URL: primary.URL}, {Name: "secondary", URL: secondary.URL}},
		config.RouteConfig{ContentType: "web", Providers: []string{"primary", "secondary"}},
	)
	rs, err := c.Fetch(context.Background(), models.SearchRequest{
		Query: "q", Filters: &models.FilterSet{ContentType: "web"}, Page: 1, Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, rs.Results, 2)
	assert.Equal(t, int32(1), secondaryCalls.Load())
}

func TestFetchFailsFastOn4xx(t *testing.T) {
	var secondaryCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer primary.Close()
	secondary := httptest.NewServer(resultsHandler(t, 1, &secondaryCalls))
	defer secondary.Close()

	c := newClient(
		[]config.ProviderConfig{{Name: "primary", URL: primary.URL}, {Name: "secondary", URL: secondary.URL}},
		config.RouteConfig{ContentType: "web", Providers: []string{"primary", "secondary"}},
	)
	_, err := c.Fetch(context.Background(), models.SearchRequest{
		Query: "q", Filters: &models.FilterSet{ContentType: "web"}, Page: 1, Limit: 10,
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, int32(0), secondaryCalls.Load())
}

func TestFetchAllFail(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	c := newClient([]config.ProviderConfig{{Name: "down", URL: down.URL}})
	_, err := c.Fetch(context.Background(), models.SearchRequest{Query: "q", Page: 1, Limit: 10})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestFetchMalformedBody(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer bad.Close()

	c := newClient([]config.ProviderConfig{{Name: "bad", URL: bad.URL}})
	_, err := c.Fetch(context.Background(), models.SearchRequest{Query: "q", Page: 1, Limit: 10})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestFetchRespectsDeadline(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := newClient([]config.ProviderConfig{{Name: "slow", URL: slow.URL}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, models.SearchRequest{Query: "q", Page: 1, Limit: 10})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestNoProviders(t *testing.T) {
	c := newClient(nil)
	_, err := c.Fetch(context.Background(), models.SearchRequest{Query: "q", Page: 1, Limit: 10})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(context.DeadlineExceeded, 0))
	assert.True(t, isRetryable(nil, 500))
	assert.True(t, isRetryable(nil, 429))
	assert.False(t, isRetryable(nil, 404))
	assert.False(t, isRetryable(nil, 200))
}
