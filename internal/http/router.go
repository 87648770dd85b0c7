package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linkpulse/internal/auth"
	"github.com/roniherschmann/linkpulse/internal/config"
	"github.com/roniherschmann/linkpulse/internal/core"
	"github.com/roniherschmann/linkpulse/internal/metrics"
)

type Router struct {
	cfg     config.Config
	svc     *core.Service
	agg     *core.Aggregator
	tokens  *auth.Tokens
	limiter *rateLimiter
}

// NewRouter wires the public API. tokens may be nil, in which case no caller is ever identified.
func NewRouter(cfg config.Config, svc *core.Service, agg *core.Aggregator, tokens *auth.Tokens) http.Handler {
	r := chi.NewRouter()
	// Logging middleware
	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.RequestIDHandler("req_id", "Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", dur).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	api := &Router{
		cfg:     cfg,
		svc:     svc,
		agg:     agg,
		tokens:  tokens,
		limiter: newRateLimiter(cfg.CreateRateRPS, cfg.CreateRateBurst),
	}

	r.MethodFunc(http.MethodGet, "/healthz", api.handleHealth)
	r.MethodFunc(http.MethodGet, "/readyz", api.handleReady)

	// Metrics
	r.MethodFunc(http.MethodGet, "/metrics", metrics.Handler)

	r.Group(func(r chi.Router) {
		r.Use(api.identify)

		r.MethodFunc(http.MethodPost, "/shorten", api.handleShorten)
		r.MethodFunc(http.MethodGet, "/analytics/topic/{topic}", api.handleTopicAnalytics)
		r.With(requireOwner).MethodFunc(http.MethodGet, "/analytics/overall", api.handleOverallAnalytics)
		r.MethodFunc(http.MethodGet, "/analytics/{alias}", api.handleAliasAnalytics)
	})

	// Redirect path
	r.MethodFunc(http.MethodGet, "/shorten/{alias}", api.handleRedirect)

	return r
}
