package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"categorywatch/internal/adapters/http/middleware"
	"categorywatch/internal/adapters/http/perf"
	"categorywatch/internal/application/orchestrators"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the HTTP surface needs.
type Deps struct {
	DB        Pinger
	Collector *perf.Collector
	Notify    orchestrators.NotifyCategoryChangeDeps
	// AutoWatch is nil when the auto-watch category is disabled.
	AutoWatch *orchestrators.EnsureAutoWatchDeps

	HookSecret     string
	HookRateLimit  int
	HookRateWindow time.Duration
	Version        string
}

// Server serves the edit hook and the operational endpoints.
type Server struct {
	deps Deps
}

// NewRouter wires HTTP handlers for the service.
// /healthz is open; everything under /api needs the hook secret and is rate limited per client IP.
func NewRouter(deps Deps) http.Handler {
	s := &Server{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.Timing(deps.Collector))
	r.Use(middleware.SecurityHeaders)

	r.Get("/healthz", s.handleHealth)

	limiter := middleware.NewRateLimiter(deps.HookRateLimit, deps.HookRateWindow)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))
		r.Use(middleware.RequireSecret(deps.HookSecret))
		r.Post("/edits", s.handleEdit)
		r.Get("/perf", s.handlePerf)
	})

	return r
}
