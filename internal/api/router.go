package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/RiskScore/internal/evaluator"
	"github.com/MikeSquared-Agency/RiskScore/internal/store"
)

type Options struct {
	AdminToken string
	RateLimit  int
	// InstanceID tags population invalidation broadcasts from this process.
	InstanceID string
}

// NewRouter builds the public API. s may be nil when no database is
// configured; history and population upload then answer 501. cache may be
// nil when the population is not cached.
func NewRouter(ev *evaluator.Evaluator, s store.Store, cache evaluator.Invalidator, opts Options, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(opts.RateLimit))

	evaluations := NewEvaluationsHandler(ev, s, logger)
	population := NewPopulationHandler(ev, s, cache, opts.InstanceID, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/evaluations", evaluations.Create)
		r.Get("/evaluations", evaluations.List)
		r.Get("/evaluations/{id}", evaluations.Get)
		r.Get("/evaluations/{id}/audit", evaluations.Audit)

		r.Post("/score", evaluations.Score)
		r.Get("/weights", evaluations.Weights)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(opts.AdminToken))
			r.Put("/population", population.Replace)
			r.Post("/population/reload", population.Reload)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
