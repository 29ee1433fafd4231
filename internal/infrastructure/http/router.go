package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/0xcro3dile/docqa-go/internal/infrastructure/http/middleware"
)

const readinessTimeout = 3 * time.Second

// HealthCheck is one dependency probed by /health/ready.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HandlerSet holds the endpoint handlers injected from main.
type HandlerSet struct {
	Ask    http.HandlerFunc
	Upload http.HandlerFunc
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	// RateLimiter, when set, guards /api.
	RateLimiter     func(http.Handler) http.Handler
	ReadinessChecks []HealthCheck
}

// NewRouter mounts the health, metrics and /api routes behind the shared middleware.
func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	live := func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
	r.Get("/health/live", live)
	r.Get("/api/health", live)

	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{"status": "healthy"}
		status := http.StatusOK

		for _, hc := range cfg.ReadinessChecks {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			err := hc.Check(ctx)
			cancel()
			if err != nil {
				health[hc.Name] = "unhealthy"
				health["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			health[hc.Name] = "healthy"
		}

		JSON(w, status, health)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter)
		}
		r.Post("/document/upload", h.Upload)
		r.Post("/query/ask", h.Ask)
	})

	return r
}
