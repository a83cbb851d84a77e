package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/classify"
	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/importer"
	"github.com/cleared-dev/cashflow/internal/ledger"
	"github.com/cleared-dev/cashflow/internal/observability"
	"github.com/cleared-dev/cashflow/internal/store"
)

const revenueCSV = `Date,Description,Amount,Type
2025-01-05,ACH PAYMENT ACME CORPORATION,15000.00,CREDIT
2025-01-06,Transfer from CH x4717 to CH x5285 TMID:ab12cd34ef,-5000.00,DEBIT
`

const billPayCSV = `Date,Description,Amount,Type
2025-01-06,Transfer from CH x4717 to CH x5285 TMID:ab12cd34ef,5000.00,CREDIT
2025-01-10,Payment to Office Supplies Co,-2400.00,DEBIT
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()

	st, err := store.Open(ctx, filepath.Join(root, "cashflow.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clk := clock.Fixed{T: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)}
	svc, err := ledger.New(st, config.Default("Acme"), ledger.Options{Clock: clk})
	require.NoError(t, err)

	im := importer.New(nil, svc.Accounts(), clk, nil)
	for account, csv := range map[string]string{"Revenue 4717": revenueCSV, "Bill Pay 5285": billPayCSV} {
		b, err := im.Read(strings.NewReader(csv), "generic", account)
		require.NoError(t, err)
		_, err = svc.ImportBatch(ctx, b)
		require.NoError(t, err)
	}
	_, err = svc.Classify(ctx, classify.Options{})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(svc, observability.NewMetrics(), nil))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	code := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	getJSON(t, srv.URL+"/healthz", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		KPIs struct {
			Revenue     string `json:"revenue_total"`
			NetCashFlow string `json:"net_cash_flow"`
		} `json:"kpis"`
		Reconciliation struct {
			State string `json:"status"`
		} `json:"transfer_reconciliation"`
	}
	code := getJSON(t, srv.URL+"/v1/dashboard?start=2025-01-01&end=2025-12-31", &body)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "15000", body.KPIs.Revenue)
	assert.Equal(t, "12600", body.KPIs.NetCashFlow)
	assert.Equal(t, "RECONCILED", body.Reconciliation.State)
}

func TestDashboard_BadDate(t *testing.T) {
	srv := newTestServer(t)

	var body errorResponse
	code := getJSON(t, srv.URL+"/v1/dashboard?start=01-01-2025", &body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Error, "start")
}

func TestDashboard_InvertedWindow(t *testing.T) {
	srv := newTestServer(t)

	code := getJSON(t, srv.URL+"/v1/dashboard?start=2025-12-31&end=2025-01-01", &errorResponse{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAccounts(t *testing.T) {
	srv := newTestServer(t)

	var list []accountView
	code := getJSON(t, srv.URL+"/v1/accounts", &list)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 4)

	code = getJSON(t, srv.URL+"/v1/accounts/Nowhere%201234", &errorResponse{})
	assert.Equal(t, http.StatusNotFound, code)

	var summary map[string]any
	code = getJSON(t, srv.URL+"/v1/accounts/Bill%20Pay%205285", &summary)
	assert.Equal(t, http.StatusOK, code)
}

func TestReconciliation(t *testing.T) {
	srv := newTestServer(t)

	var body reconciliationResponse
	code := getJSON(t, srv.URL+"/v1/reconciliation", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body.Pairs, 1)
	assert.Equal(t, "ab12cd34ef", body.Pairs[0].Token)
	assert.Equal(t, "5000", body.Pairs[0].Amount.String())
}

func TestQueryLimits(t *testing.T) {
	srv := newTestServer(t)

	code := getJSON(t, srv.URL+"/v1/forecast?days=1000", &errorResponse{})
	assert.Equal(t, http.StatusBadRequest, code)

	var points []map[string]any
	code = getJSON(t, srv.URL+"/v1/forecast?days=7", &points)
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, points, 7)

	code = getJSON(t, srv.URL+"/v1/insights?top=0", &errorResponse{})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNotFoundRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
