package projection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/model"
)

var today = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func ob(kind model.ObligationKind, party, amount string, due time.Time, status model.ObligationStatus) model.Obligation {
	return model.Obligation{
		ID:           party + "-" + amount,
		Kind:         kind,
		Counterparty: party,
		Amount:       decimal.RequireFromString(amount),
		DueDate:      due,
		Status:       status,
	}
}

func in(days int) time.Time {
	return clock.Date(today).AddDate(0, 0, days)
}

func TestForecast(t *testing.T) {
	p := New(clock.Fixed{T: today})
	obs := []model.Obligation{
		ob(model.KindReceivable, "Acme", "1000", in(0), model.StatusPending),
		ob(model.KindReceivable, "Acme", "500", in(0), model.StatusPaid),
		ob(model.KindPayable, "Rent Co", "400", in(2), model.StatusPending),
		ob(model.KindReceivable, "Late", "700", in(-3), model.StatusPending),
		ob(model.KindReceivable, "Far", "700", in(10), model.StatusPending),
	}

	points := p.Forecast(obs, 5)
	require.Len(t, points, 5)

	assert.Equal(t, "2025-06-01", points[0].Date)
	assert.Equal(t, "850", points[0].Inflow.String())
	assert.Equal(t, "0", points[0].Outflow.String())
	assert.Equal(t, "850", points[0].NetFlow.String())
	assert.Equal(t, "0.75", points[0].Confidence.String())

	assert.True(t, points[1].NetFlow.IsZero())
	assert.Equal(t, "0.3", points[1].Confidence.String())

	assert.Equal(t, "400", points[2].Outflow.String())
	assert.Equal(t, "-400", points[2].NetFlow.String())
	assert.Equal(t, "0.75", points[2].Confidence.String())
}

func TestForecast_DefaultHorizon(t *testing.T) {
	p := New(clock.Fixed{T: today})
	points := p.Forecast(nil, 0)
	require.Len(t, points, DefaultHorizon)
	assert.Equal(t, "2025-08-29", points[len(points)-1].Date)
	for _, pt := range points {
		assert.Equal(t, "0.3", pt.Confidence.String())
	}
}

func TestForecast_RoundsToCents(t *testing.T) {
	p := New(clock.Fixed{T: today})
	points := p.Forecast([]model.Obligation{
		ob(model.KindReceivable, "Acme", "10.01", in(0), model.StatusPending),
	}, 1)
	assert.Equal(t, "8.51", points[0].Inflow.String())
}

func TestRisk_None(t *testing.T) {
	p := New(clock.Fixed{T: today})
	r := p.Risk(nil, time.Time{})
	assert.Equal(t, "2025-06-01", r.AsOf)
	assert.True(t, r.Score.IsZero())
	assert.Equal(t, LevelLow, r.Level)
	assert.Empty(t, r.Recommendations)
}

func TestRisk_High(t *testing.T) {
	p := New(clock.Fixed{T: today})
	obs := []model.Obligation{
		ob(model.KindReceivable, "Acme", "12000", in(-31), model.StatusPending),
		ob(model.KindPayable, "Rent Co", "800", in(-2), model.StatusPending),
		ob(model.KindReceivable, "Beta", "10000", in(5), model.StatusPending),
		ob(model.KindPayable, "Supplier", "30000", in(30), model.StatusPending),
		ob(model.KindPayable, "Later", "99999", in(31), model.StatusPending),
		ob(model.KindReceivable, "Paid", "99999", in(-5), model.StatusPaid),
	}

	r := p.Risk(obs, time.Time{})
	assert.Equal(t, 1, r.OverdueReceivables.Count)
	assert.Equal(t, "12000", r.OverdueReceivables.Amount.String())
	assert.Equal(t, 1, r.OverduePayables.Count)
	assert.Equal(t, "10000", r.Upcoming.Receivables.String())
	assert.Equal(t, "30000", r.Upcoming.Payables.String(), "due exactly 30 days out counts, 31 does not")
	assert.Equal(t, "-20000", r.Upcoming.NetFlow.String())

	// 12 (overdue) + 20 (negative net) + 30 (ratio 3, capped)
	assert.Equal(t, "62", r.Score.String())
	assert.Equal(t, LevelHigh, r.Level)
	assert.Equal(t, []string{
		"Follow up on 1 overdue receivables",
		"Pay 1 overdue bills to avoid penalties",
		"Consider negotiating payment terms with customers",
		"Review credit policies for new customers",
	}, r.Recommendations)
}

func TestRisk_Critical(t *testing.T) {
	p := New(clock.Fixed{T: today})
	obs := []model.Obligation{
		ob(model.KindReceivable, "Acme", "50000", in(-1), model.StatusPending),
		ob(model.KindReceivable, "Beta", "10000", in(1), model.StatusPending),
		ob(model.KindPayable, "Supplier", "70000", in(1), model.StatusPending),
	}

	r := p.Risk(obs, time.Time{})
	assert.Equal(t, "100", r.Score.String())
	assert.Equal(t, LevelCritical, r.Level)
	assert.Len(t, r.Recommendations, 5)
	assert.Contains(t, r.Recommendations, "Urgent: Review cash position and consider financing options")
}

func TestRisk_AsOf(t *testing.T) {
	p := New(clock.Fixed{T: today})
	obs := []model.Obligation{ob(model.KindReceivable, "Acme", "5000", in(10), model.StatusPending)}

	assert.Equal(t, 0, p.Risk(obs, in(0)).OverdueReceivables.Count)
	assert.Equal(t, 1, p.Risk(obs, in(11)).OverdueReceivables.Count)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		score string
		want  string
	}{
		{"0", LevelLow},
		{"24.9", LevelLow},
		{"25", LevelMedium},
		{"49.9", LevelMedium},
		{"50", LevelHigh},
		{"74.99", LevelHigh},
		{"75", LevelCritical},
		{"100", LevelCritical},
	}
	for _, tt := range tests {
		t.Run(tt.score, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(decimal.RequireFromString(tt.score)))
		})
	}
}

func TestInsights(t *testing.T) {
	p := New(clock.Fixed{T: today})
	obs := []model.Obligation{
		ob(model.KindReceivable, "Acme", "1000", in(1), model.StatusPending),
		ob(model.KindReceivable, "Acme", "2000", in(-40), model.StatusPaid),
		ob(model.KindReceivable, "Beta", "5000", in(2), model.StatusPending),
		ob(model.KindReceivable, "Gamma", "9999", in(2), model.StatusCancelled),
		ob(model.KindPayable, "Rent Co", "1500", in(3), model.StatusPending),
	}

	got := p.Insights(obs, 0)
	require.Len(t, got.TopCustomers, 2)
	assert.Equal(t, "Beta", got.TopCustomers[0].Name)
	assert.Equal(t, "Acme", got.TopCustomers[1].Name)
	assert.Equal(t, "3000", got.TopCustomers[1].Total.String())
	assert.Equal(t, 2, got.TopCustomers[1].Count)
	assert.Equal(t, "1500", got.TopCustomers[1].Average.String())
	require.Len(t, got.TopVendors, 1)

	assert.Len(t, p.Insights(obs, 1).TopCustomers, 1)
}
