package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/kiranshivaraju/speedwatch/internal/api/middleware"
	"github.com/kiranshivaraju/speedwatch/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler   http.HandlerFunc
	CycleHandler    http.HandlerFunc
	ListJobsHandler http.HandlerFunc
	GetJobHandler   http.HandlerFunc
	ListNodes       http.HandlerFunc
	RefreshHandler  http.HandlerFunc

	// Metrics defaults to the Prometheus default registry.
	Metrics http.Handler
}

// NewRouter builds the Chi router with middleware stack and all routes.
// Reads are public; triggering a cycle requires an API key when any is configured.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/cycle", orNotImplemented(deps.CycleHandler))
	r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
	r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))
	r.Get("/api/v1/nodes", orNotImplemented(deps.ListNodes))

	// Protected routes
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/refresh", orNotImplemented(deps.RefreshHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
