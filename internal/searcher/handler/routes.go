package handler

import (
	"net/http"

	"github.com/gerdreiss/seroost/pkg/health"
)

// Routes registers every endpoint of the query server. analytics may be nil.
func (h *Handler) Routes(checker *health.Checker, analytics http.HandlerFunc) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", h.Search)
	mux.HandleFunc("GET /api/v1/search", h.SearchV1)
	mux.HandleFunc("GET /api/v1/index", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("POST /api/v1/admin/reload", h.Reload)
	if analytics != nil {
		mux.HandleFunc("GET /api/v1/analytics", analytics)
	}
	if checker != nil {
		mux.HandleFunc("GET /health/live", checker.LiveHandler())
		mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	}
	mux.HandleFunc("GET /", h.Static)
	return mux
}
