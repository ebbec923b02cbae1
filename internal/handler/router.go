package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/conversation-analytics/internal/middleware"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

// RouterConfig configures the protection of the ops endpoints.
type RouterConfig struct {
	JWTSecret         string
	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter mounts /health and /ready unauthenticated, and /status and /metrics behind the
// optional JWT check.
func NewRouter(h *HealthHandler, cfg RouterConfig, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RequireScope(cfg.JWTSecret, middleware.ScopeStatusRead))

		r.Get("/status", h.Status)
		r.Handle("/metrics", promhttp.Handler())
	})

	return r
}
