// Package handler exposes the query server's HTTP API and front-end.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gerdreiss/seroost/internal/analytics"
	"github.com/gerdreiss/seroost/internal/indexer/index"
	"github.com/gerdreiss/seroost/internal/indexer/tokenizer"
	"github.com/gerdreiss/seroost/internal/searcher/cache"
	"github.com/gerdreiss/seroost/internal/searcher/executor"
	"github.com/gerdreiss/seroost/internal/searcher/reload"
	apperrors "github.com/gerdreiss/seroost/pkg/errors"
	"github.com/gerdreiss/seroost/pkg/logger"
	"github.com/gerdreiss/seroost/pkg/metrics"
	"github.com/gerdreiss/seroost/pkg/middleware"
	"github.com/gerdreiss/seroost/pkg/resilience"
)

// topLogged is how many results each search logs at debug level.
const topLogged = 10

type SearchExecutor interface {
	ExecuteOn(ctx context.Context, m *index.Model, query string, limit int) (*executor.SearchResult, error)
	Model() *index.Model
}

type Reloader interface {
	Reload(ctx context.Context, trigger string) (reload.Result, error)
	Path() string
}

type Config struct {
	DefaultLimit  int
	MaxResults    int
	Timeout       time.Duration
	MaxQueryBytes int64
}

// Deps are the optional collaborators; nil fields disable the feature.
type Deps struct {
	Cache      *cache.QueryCache
	Collector  *analytics.Collector
	Aggregator *analytics.Aggregator
	Reloader   Reloader
	Metrics    *metrics.Metrics
	Assets     fs.FS
}

type Handler struct {
	exec   SearchExecutor
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

func New(exec SearchExecutor, cfg Config, deps Deps) *Handler {
	if cfg.MaxQueryBytes <= 0 {
		cfg.MaxQueryBytes = 64 << 10
	}
	return &Handler{
		exec:   exec,
		cfg:    cfg,
		deps:   deps,
		logger: slog.Default().With("component", "search-handler"),
	}
}

// Search answers POST /api/search. The body is the query text; an unreadable
// or non-UTF-8 body is treated as an empty query. The response is the ranked
// list of {document, score}, truncated to ?limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := h.limit(r)
	if err != nil {
		limit = h.cfg.DefaultLimit
	}

	var query string
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxQueryBytes))
	switch {
	case err != nil:
		logger.FromContext(r.Context()).Warn("unreadable query body, searching for nothing", "error", err)
	case !utf8.Valid(body):
		logger.FromContext(r.Context()).Warn("query body is not valid UTF-8, searching for nothing")
	default:
		query = string(body)
	}

	res, err := h.search(r, query, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res.Results)
}

// SearchV1 answers GET /api/v1/search?q=&limit= with the full result envelope.
func (h *Handler) SearchV1(w http.ResponseWriter, r *http.Request) {
	limit, err := h.limit(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	res, err := h.search(r, r.URL.Query().Get("q"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) limit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return h.cfg.DefaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer, got %q", s)
	}
	return min(n, h.cfg.MaxResults), nil
}

func (h *Handler) search(r *http.Request, query string, limit int) (*executor.SearchResult, error) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	m := h.exec.Model()
	if m == nil {
		return nil, apperrors.ErrIndexUnavailable
	}
	terms := tokenizer.Tokenize(query)

	var (
		res      *executor.SearchResult
		cacheHit bool
	)
	err := resilience.WithTimeout(ctx, h.cfg.Timeout, "search", func(ctx context.Context) error {
		compute := func() (*executor.SearchResult, error) {
			return h.exec.ExecuteOn(ctx, m, query, limit)
		}
		var err error
		if h.deps.Cache != nil && len(terms) > 0 {
			res, cacheHit, err = h.deps.Cache.GetOrCompute(ctx, query, terms, m.Fingerprint(), limit, compute)
		} else {
			res, err = compute()
		}
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	if err != nil {
		log.Error("search failed", "query", query, "error", err)
		return nil, err
	}

	latency := time.Since(start)
	h.observe(r, res, cacheHit, latency)
	log.Info("search completed",
		"query", query,
		"terms", len(res.Terms),
		"total_hits", res.TotalHits,
		"returned", len(res.Results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if log.Enabled(ctx, slog.LevelDebug) {
		for i, d := range res.Results[:min(topLogged, len(res.Results))] {
			log.Debug("search result", "rank", i+1, "document", d.Document, "score", d.Score)
		}
	}
	return res, nil
}

func (h *Handler) observe(r *http.Request, res *executor.SearchResult, cacheHit bool, latency time.Duration) {
	evType := analytics.EventSearch
	if res.TotalHits == 0 {
		evType = analytics.EventZeroResult
	}
	if m := h.deps.Metrics; m != nil {
		cacheStatus := "disabled"
		if h.deps.Cache != nil {
			cacheStatus = "miss"
			if cacheHit {
				cacheStatus = "hit"
			}
		}
		m.SearchQueriesTotal.WithLabelValues(string(evType)).Inc()
		m.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		m.SearchResultsCount.Observe(float64(res.TotalHits))
	}

	ev := analytics.SearchEvent{
		Type:        evType,
		Query:       res.Query,
		Terms:       res.Terms,
		TotalHits:   res.TotalHits,
		Returned:    len(res.Results),
		LatencyMs:   latency.Milliseconds(),
		CacheHit:    cacheHit,
		Fingerprint: res.Fingerprint,
		Timestamp:   time.Now().UTC(),
		RequestID:   middleware.GetRequestID(r),
	}
	if h.deps.Aggregator != nil {
		h.deps.Aggregator.Record(ev)
	}
	if h.deps.Collector != nil {
		h.deps.Collector.Track(ev)
	}
}

// IndexStats answers GET /api/v1/index.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	m := h.exec.Model()
	if m == nil {
		h.writeError(w, apperrors.ErrIndexUnavailable)
		return
	}
	stats := map[string]any{
		"documents":   m.Len(),
		"terms":       m.Vocabulary(),
		"fingerprint": m.Fingerprint(),
	}
	if h.deps.Reloader != nil {
		stats["index_path"] = h.deps.Reloader.Path()
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	s := h.deps.Cache.Stats()
	total := s.Hits + s.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.Hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     s.Hits,
		"misses":   s.Misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
		"breaker":  s.Breaker,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	// an operator asking for invalidation wants Redis tried again
	h.deps.Cache.ResetBreaker()
	n, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "invalidated",
		"deleted": n,
		"breaker": h.deps.Cache.Stats().Breaker,
	})
}

// Reload answers POST /api/v1/admin/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	if h.deps.Reloader == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "reloading is disabled"})
		return
	}
	res, err := h.deps.Reloader.Reload(r.Context(), reload.TriggerManual)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// Static serves the embedded front-end; unknown paths get the 404 page.
func (h *Handler) Static(w http.ResponseWriter, r *http.Request) {
	name, contentType, status := "404.html", "text/html; charset=utf-8", http.StatusNotFound
	switch r.URL.Path {
	case "/", "/index.html":
		name, status = "index.html", http.StatusOK
	case "/index.js":
		name, contentType, status = "index.js", "text/javascript; charset=utf-8", http.StatusOK
	}

	if h.deps.Assets == nil {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(h.deps.Assets, name)
	if err != nil {
		h.logger.Error("missing static asset", "name", name, "error", err)
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": msg})
}
