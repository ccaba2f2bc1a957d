package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/metrics"
	"github.com/pario-ai/sift/pkg/models"
	"github.com/pario-ai/sift/pkg/router"
	"github.com/pario-ai/sift/pkg/tracing"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 8 << 20

// HTTPClient queries HTTP search providers, falling back along the route
// chain for the request's content type.
type HTTPClient struct {
	router  *router.Router
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a client from configuration. A zero rate limit
// disables local throttling.
func NewHTTPClient(cfg *config.Config) *HTTPClient {
	limit := rate.Inf
	if cfg.Provider.RateLimit > 0 {
		limit = rate.Limit(cfg.Provider.RateLimit)
	}
	burst := cfg.Provider.Burst
	if burst < 1 {
		burst = 1
	}
	return &HTTPClient{
		router:  router.New(cfg),
		client:  &http.Client{Transport: http.DefaultTransport},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// upstreamResult holds the response from a single upstream attempt.
type upstreamResult struct {
	statusCode int
	body       []byte
}

// wireResponse is the JSON a provider answers with.
type wireResponse struct {
	Results      []models.SearchResult `json:"results"`
	TotalCount   int                   `json:"total_count"`
	SearchTimeMs int64                 `json:"search_time_ms"`
}

// Fetch tries each provider on the route in order. Transport errors, 5xx and
// 429 answers move on to the next provider; any other 4xx fails immediately.
func (c *HTTPClient) Fetch(ctx context.Context, req models.SearchRequest) (models.ResultSet, error) {
	const op = "provider.Fetch"
	ctx, span := tracing.StartSpan(ctx, "provider.Fetch")
	defer span.End()

	contentType := ""
	if req.Filters != nil {
		contentType = req.Filters.ContentType
	}
	routes, err := c.router.Resolve(contentType)
	if err != nil {
		return models.ResultSet{}, apperr.Upstream(op, err)
	}

	log := logger.WithRequestID(ctx)
	var lastErr error
	for _, route := range routes {
		name := route.Provider.Name
		if c.limiter.Limit() != rate.Inf && c.limiter.Tokens() < 1 {
			metrics.ProviderRateLimitWaits.Inc()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return models.ResultSet{}, apperr.Upstream(op, err)
		}

		start := time.Now()
		res, err := c.doUpstreamRequest(ctx, route.Provider, req)
		metrics.ProviderDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if isRetryable(err, statusOf(res)) {
			metrics.ProviderRequests.WithLabelValues(name, "retry").Inc()
			if err == nil {
				err = fmt.Errorf("%s returned %d", name, res.statusCode)
			}
			log.Warn("upstream provider failed, trying next", "provider", name, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if res.statusCode >= 400 {
			metrics.ProviderRequests.WithLabelValues(name, "failure").Inc()
			return models.ResultSet{}, apperr.Upstream(op,
				fmt.Errorf("%s returned %d: %s", name, res.statusCode, truncate(res.body, 256)))
		}

		var wire wireResponse
		if err := json.Unmarshal(res.body, &wire); err != nil {
			metrics.ProviderRequests.WithLabelValues(name, "failure").Inc()
			return models.ResultSet{}, apperr.Upstream(op, fmt.Errorf("decode %s response: %w", name, err))
		}
		metrics.ProviderRequests.WithLabelValues(name, "success").Inc()
		if wire.Results == nil {
			wire.Results = []models.SearchResult{}
		}
		if wire.TotalCount < len(wire.Results) {
			wire.TotalCount = len(wire.Results)
		}
		if wire.SearchTimeMs == 0 {
			wire.SearchTimeMs = time.Since(start).Milliseconds()
		}
		return models.ResultSet(wire), nil
	}

	if lastErr == nil {
		lastErr = errors.New("no provider answered")
	}
	return models.ResultSet{}, apperr.Upstream(op, fmt.Errorf("all upstream providers failed: %w", lastErr))
}

// doUpstreamRequest sends one search to a provider.
func (c *HTTPClient) doUpstreamRequest(ctx context.Context, p config.ProviderConfig, req models.SearchRequest) (*upstreamResult, error) {
	target, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid provider URL: %w", err)
	}
	target = target.JoinPath("search")
	target.RawQuery = searchParams(req).Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if p.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)
	}
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		httpReq.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &upstreamResult{statusCode: resp.StatusCode, body: body}, nil
}

func searchParams(req models.SearchRequest) url.Values {
	v := url.Values{}
	v.Set("q", req.Query)
	v.Set("page", strconv.Itoa(req.Page))
	v.Set("limit", strconv.Itoa(req.Limit))
	if f := req.Filters; f != nil {
		setIf(v, "type", f.ContentType)
		setIf(v, "sort", f.SortOrder)
		setIf(v, "domain", f.Domain)
		setIf(v, "from", f.DateFrom)
		setIf(v, "to", f.DateTo)
	}
	return v
}

func setIf(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

// isRetryable returns true if the error or status code warrants trying the next route.
func isRetryable(err error, statusCode int) bool {
	if err != nil {
		return true
	}
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

func statusOf(res *upstreamResult) int {
	if res == nil {
		return 0
	}
	return res.statusCode
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
