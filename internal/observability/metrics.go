package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Classification outcomes.
const (
	OutcomeClassified = "classified"
	OutcomeReview     = "review"
	OutcomeError      = "error"
)

// Metrics holds the Prometheus collectors for the ledger engine.
type Metrics struct {
	// Registry owns these metrics; /metrics serves it.
	Registry *prometheus.Registry

	classified   *prometheus.CounterVec
	runDuration  prometheus.Histogram
	httpDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors in a private registry, so repeated
// calls (one per test) never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		classified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cashflow_classified_records_total",
				Help: "Records processed by classification runs, by outcome.",
			},
			[]string{"outcome"},
		),
		runDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cashflow_classification_run_seconds",
				Help:    "Duration of classification runs.",
				Buckets: prometheus.DefBuckets,
			},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cashflow_http_request_seconds",
				Help:    "Duration of API requests by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// IncrClassified counts one record with the given outcome. Nil-safe.
func (m *Metrics) IncrClassified(outcome string) {
	if m == nil {
		return
	}
	m.classified.WithLabelValues(outcome).Inc()
}

// ObserveRun records the duration of a classification run. Nil-safe.
func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// ObserveHTTP records the duration of one API request. Nil-safe.
func (m *Metrics) ObserveHTTP(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
