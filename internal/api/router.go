// Package api exposes the ledger's read views as JSON over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/buildinfo"
	"github.com/cleared-dev/cashflow/internal/ledger"
	"github.com/cleared-dev/cashflow/internal/observability"
)

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *ledger.Service, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(routeTimer(metrics))

	r.Get("/healthz", healthzHandler())
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/dashboard", dashboardHandler(svc, logger))
		r.Get("/accounts", listAccountsHandler(svc))
		r.Get("/accounts/{name}", accountHandler(svc, logger))
		r.Get("/tax", taxHandler(svc, logger))
		r.Get("/credit-card", creditCardHandler(svc, logger))
		r.Get("/reconciliation", reconciliationHandler(svc, logger))
		r.Get("/classification", classificationHandler(svc, logger))
		r.Get("/review", reviewHandler(svc, logger))
		r.Get("/forecast", forecastHandler(svc, logger))
		r.Get("/risk", riskHandler(svc, logger))
		r.Get("/insights", insightsHandler(svc, logger))
	})

	return r
}

// routeTimer observes request latency labelled by the matched route
// pattern, so path parameters do not explode label cardinality.
func routeTimer(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveHTTP(route, time.Since(start))
		})
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		})
	}
}
