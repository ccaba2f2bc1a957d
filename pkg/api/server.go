// Package api exposes search, history and statistics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pario-ai/sift/pkg/apperr"
	"github.com/pario-ai/sift/pkg/config"
	"github.com/pario-ai/sift/pkg/errorreporting"
	"github.com/pario-ai/sift/pkg/history"
	"github.com/pario-ai/sift/pkg/logger"
	"github.com/pario-ai/sift/pkg/models"
	"github.com/pario-ai/sift/pkg/search"
	"github.com/pario-ai/sift/pkg/stats"
)

// CacheHeader tells the caller whether a search was served from the cache.
const CacheHeader = "X-Sift-Cache"

const maxBodyBytes = 1 << 20

// Server is the HTTP front end.
type Server struct {
	cfg    *config.Config
	engine *search.Engine
	ledger history.Ledger
	stats  *stats.Aggregator
	auth   *Authenticator
	router *mux.Router
}

// New creates a Server and registers its routes.
func New(cfg *config.Config, engine *search.Engine, ledger history.Ledger, agg *stats.Aggregator, auth *Authenticator) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		ledger: ledger,
		stats:  agg,
		auth:   auth,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(requestID, recoverPanics, instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(s.auth.middleware)
	v1.HandleFunc("/search", s.handleSearch).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.handleListHistory).Methods(http.MethodGet)
	v1.HandleFunc("/history", s.handleSaveHistory).Methods(http.MethodPost)
	v1.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	v1.HandleFunc("/history/{id}", s.handleDeleteHistory).Methods(http.MethodDelete)
	v1.HandleFunc("/stats", s.handleUserStats).Methods(http.MethodGet)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(requireAdmin)
	admin.HandleFunc("/stats", s.handleSystemStats).Methods(http.MethodGet)
	admin.HandleFunc("/cache/sweep", s.handleSweep).Methods(http.MethodPost)
	admin.HandleFunc("/cache", s.handlePurge).Methods(http.MethodDelete)

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sift api listening", "addr", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type searchRequest struct {
	Query   string            `json:"query"`
	Filters map[string]string `json:"filters,omitempty"`
	Page    int               `json:"page,omitempty"`
	Limit   int               `json:"limit,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	filters, err := models.ParseFilterSet(req.Filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Limit == 0 {
		req.Limit = s.cfg.Search.DefaultLimit
	}

	p, _ := PrincipalFrom(r.Context())
	resp, err := s.engine.Search(r.Context(), p.UserID, req.Query, filters, req.Page, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if resp.FromCache {
		w.Header().Set(CacheHeader, string(models.CacheHit))
	} else {
		w.Header().Set(CacheHeader, string(models.CacheMiss))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	const op = "api.ListHistory"
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		writeError(w, r, apperr.InvalidArgument(op, "invalid page"))
		return
	}
	limit, err := intParam(q.Get("limit"), s.cfg.Search.DefaultLimit)
	if err != nil {
		writeError(w, r, apperr.InvalidArgument(op, "invalid limit"))
		return
	}
	if limit > s.cfg.Search.MaxLimit {
		writeError(w, r, apperr.InvalidArgument(op, "limit must be <= %d", s.cfg.Search.MaxLimit))
		return
	}
	filter, err := parseHistoryFilter(q.Get("q"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, _ := PrincipalFrom(r.Context())
	out, err := s.ledger.List(r.Context(), p.UserID, filter, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type saveHistoryRequest struct {
	Query       string            `json:"query"`
	Filters     map[string]string `json:"filters,omitempty"`
	ResultCount int               `json:"result_count"`
}

func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req saveHistoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	filters, err := models.ParseFilterSet(req.Filters)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, _ := PrincipalFrom(r.Context())
	item, err := s.engine.SaveHistory(r.Context(), p.UserID, req.Query, filters, req.ResultCount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	if err := s.ledger.DeleteOne(r.Context(), p.UserID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	n, err := s.ledger.ClearAll(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFrom(r.Context())
	out, err := s.stats.UserStats(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	out, err := s.stats.SystemStats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.SweepExpired(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.PurgeCache(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseHistoryFilter reads the history query parameters. A date-only "to"
// covers the whole day.
func parseHistoryFilter(term, from, to string) (models.HistoryFilter, error) {
	const op = "api.ListHistory"
	f := models.HistoryFilter{SearchTerm: strings.TrimSpace(term)}
	var err error
	if from != "" {
		if f.From, _, err = parseTime(from); err != nil {
			return f, apperr.InvalidArgument(op, "invalid from %q", from)
		}
	}
	if to != "" {
		var dateOnly bool
		if f.To, dateOnly, err = parseTime(to); err != nil {
			return f, apperr.InvalidArgument(op, "invalid to %q", to)
		}
		if dateOnly {
			f.To = f.To.Add(24*time.Hour - time.Millisecond)
		}
	}
	if f.EmptyRange() {
		return f, apperr.InvalidArgument(op, "to is before from")
	}
	return f, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(models.DateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	return t.UTC(), false, err
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func decodeBody(r *http.Request, v any) error {
	const op = "api.decodeBody"
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.InvalidArgument(op, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response", "error", err)
	}
}

// writeError maps an error to a status code. Server-side failures are logged
// and their detail withheld from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := apperr.HTTPStatus(kind)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		msg = ae.Message
	}
	if code >= http.StatusInternalServerError {
		logger.WithRequestID(r.Context()).Error("request failed", "kind", string(kind), "error", err)
		msg = strings.ToLower(http.StatusText(code))
		if kind == apperr.KindInternal {
			errorreporting.CaptureErrorWithContext(err, map[string]string{"path": r.URL.Path}, nil)
		}
	}
	writeJSONError(w, code, msg)
}
