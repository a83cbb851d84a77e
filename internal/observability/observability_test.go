package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "bogus"} {
		logger, err := NewLogger(level)
		require.NoError(t, err, level)
		assert.NotNil(t, logger)
	}

	logger, err := NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncrClassified(OutcomeClassified)
	m.IncrClassified(OutcomeClassified)
	m.IncrClassified(OutcomeError)
	m.ObserveRun(time.Second)

	assert.InDelta(t, 2, testutil.ToFloat64(m.classified.WithLabelValues(OutcomeClassified)), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(m.classified.WithLabelValues(OutcomeError)), 0.001)

	// Independent registries.
	other := NewMetrics()
	assert.InDelta(t, 0, testutil.ToFloat64(other.classified.WithLabelValues(OutcomeClassified)), 0.001)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrClassified(OutcomeReview)
		m.ObserveRun(time.Second)
		m.ObserveHTTP("/v1/tax", time.Millisecond)
	})
}

func TestZapLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := ZapLoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts/x", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.WarnLevel, entry.Level)
	assert.Equal(t, int64(http.StatusNotFound), entry.ContextMap()["status"])
}
