package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/sift/pkg/cache"
	cachemem "github.com/pario-ai/sift/pkg/cache/memory"
	"github.com/pario-ai/sift/pkg/config"
	histmem "github.com/pario-ai/sift/pkg/history/memory"
	"github.com/pario-ai/sift/pkg/models"
	"github.com/pario-ai/sift/pkg/provider"
	"github.com/pario-ai/sift/pkg/search"
	"github.com/pario-ai/sift/pkg/stats"
)

type testServer struct {
	srv    *Server
	engine *search.Engine
	ledger *histmem.Ledger
	auth   *Authenticator
}

func newTestServer(t *testing.T, p provider.Provider) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret-with-enough-length-000"

	store, err := cachemem.New(4)
	require.NoError(t, err)
	codec, err := cache.NewCodec()
	require.NoError(t, err)
	t.Cleanup(codec.Close)
	ledger := histmem.New()

	if p == nil {
		p = provider.Func(func(context.Context, models.SearchRequest) (models.ResultSet, error) {
			return models.ResultSet{
				Results:    []models.SearchResult{{Title: "Go channels", URL: "https://go.dev"}},
				TotalCount: 15,
			}, nil
		})
	}
	engine := search.New(store, ledger, p, codec, search.OptionsFromConfig(cfg))
	auth, err := NewAuthenticator(cfg.Auth)
	require.NoError(t, err)

	return &testServer{
		srv:    New(cfg, engine, ledger, stats.New(store, ledger), auth),
		engine: engine,
		ledger: ledger,
		auth:   auth,
	}
}

func (ts *testServer) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := ts.auth.Issue(user, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	ts.engine.Wait()
	return w
}

func TestHealthNeedsNoToken(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/v1/search", "", map[string]any{"query": "q"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/search", "not-a-jwt", map[string]any{"query": "q"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := NewAuthenticator(config.AuthConfig{JWTSecret: "a-different-secret", Issuer: "sift"})
	require.NoError(t, err)
	forged, err := other.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	w = ts.do(t, http.MethodPost, "/v1/search", forged, map[string]any{"query": "q"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := ts.auth.Issue("user-1", "", -time.Minute)
	require.NoError(t, err)
	w = ts.do(t, http.MethodPost, "/v1/search", expired, map[string]any{"query": "q"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSearchMissThenHit(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, "user-1", "")
	body := map[string]any{
		"query":   "golang channels",
		"filters": map[string]string{"contentType": "web"},
		"page":    1,
		"limit":   10,
	}

	w := ts.do(t, http.MethodPost, "/v1/search", tok, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "miss", w.Header().Get(CacheHeader))

	var resp models.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 15, resp.TotalCount)
	assert.Equal(t, 2, resp.TotalPages)
	assert.True(t, resp.HasNextPage)

	w = ts.do(t, http.MethodPost, "/v1/search", tok, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get(CacheHeader))

	w = ts.do(t, http.MethodGet, "/v1/stats", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var us models.UserStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &us))
	assert.Equal(t, int64(2), us.TotalSearches)
	assert.Equal(t, int64(1), us.UniqueQueries)
	assert.InDelta(t, 0.5, us.CacheHitRatio, 1e-9)
}

func TestSearchRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, "user-1", "")

	tests := map[string]any{
		"empty query":    map[string]any{"query": "  "},
		"unknown filter": map[string]any{"query": "q", "filters": map[string]string{"color": "red"}},
		"bad sort":       map[string]any{"query": "q", "filters": map[string]string{"sort": "random"}},
		"unknown field":  map[string]any{"query": "q", "extra": true},
		"negative page":  map[string]any{"query": "q", "page": -1},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/v1/search", tok, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	ts := newTestServer(t, provider.Func(func(context.Context, models.SearchRequest) (models.ResultSet, error) {
		return models.ResultSet{}, errors.New("connection refused to 10.0.0.1")
	}))
	w := ts.do(t, http.MethodPost, "/v1/search", ts.token(t, "user-1", ""), map[string]any{"query": "q"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestHistoryLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	alice := ts.token(t, "alice", "")
	bob := ts.token(t, "bob", "")

	for _, q := range []string{"golang channels", "rust traits", "golang generics"} {
		w := ts.do(t, http.MethodPost, "/v1/history", alice, map[string]any{"query": q, "result_count": 3})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := ts.do(t, http.MethodGet, "/v1/history?q=GOLANG&limit=1", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.HistoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "golang generics", page.Items[0].Query)
	assert.Equal(t, 2, page.TotalCount)
	assert.True(t, page.HasNextPage)

	id := page.Items[0].ID
	w = ts.do(t, http.MethodDelete, "/v1/history/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign items look missing")

	w = ts.do(t, http.MethodDelete, "/v1/history/"+id, alice, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, "/v1/history/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/v1/history", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":2}`, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/v1/history", alice, nil)
	assert.JSONEq(t, `{"deleted":0}`, w.Body.String())
}

func TestHistoryDateRange(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := ts.token(t, "alice", "")
	w := ts.do(t, http.MethodPost, "/v1/history", tok, map[string]any{"query": "today", "result_count": 1})
	require.Equal(t, http.StatusCreated, w.Code)

	today := time.Now().UTC().Format(models.DateLayout)
	w = ts.do(t, http.MethodGet, "/v1/history?from="+today+"&to="+today, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.HistoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1, "a date-only upper bound covers the whole day")

	w = ts.do(t, http.MethodGet, "/v1/history?from=2024-02-01&to=2024-01-01", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/history?from=yesterday", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	user := ts.token(t, "user-1", "")
	admin := ts.token(t, "ops", RoleAdmin)

	w := ts.do(t, http.MethodPost, "/v1/search", user, map[string]any{"query": "q"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/admin/stats", user, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/admin/stats", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ss models.SystemStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ss))
	assert.Equal(t, int64(1), ss.TotalCacheEntries)
	assert.Equal(t, int64(1), ss.TotalHistoryItems)

	w = ts.do(t, http.MethodPost, "/v1/admin/cache/sweep", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":0}`, w.Body.String())

	w = ts.do(t, http.MethodDelete, "/v1/admin/cache", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":1}`, w.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	ts.srv.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator(config.AuthConfig{})
	assert.Error(t, err)
}
