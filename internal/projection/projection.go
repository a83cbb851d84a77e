// Package projection forecasts short-term cash movement from open
// receivables and payables and scores liquidity risk.
package projection

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/model"
)

const (
	DefaultHorizon     = 90
	DefaultInsightsTop = 5
	riskWindowDays     = 30
)

// Risk levels.
const (
	LevelLow      = "Low"
	LevelMedium   = "Medium"
	LevelHigh     = "High"
	LevelCritical = "Critical"
)

var (
	// DefaultDiscountFactor is the share of receivables expected to be
	// collected on time.
	DefaultDiscountFactor = decimal.RequireFromString("0.85")

	confidenceIdle   = decimal.RequireFromString("0.3")
	confidenceActive = decimal.RequireFromString("0.75")

	thousand    = decimal.NewFromInt(1000)
	one         = decimal.NewFromInt(1)
	twenty      = decimal.NewFromInt(20)
	capOverdue  = decimal.NewFromInt(30)
	capNegative = decimal.NewFromInt(40)
	capPayRatio = decimal.NewFromInt(30)
	maxScore    = decimal.NewFromInt(100)
	levelMedium = decimal.NewFromInt(25)
	levelHigh   = decimal.NewFromInt(50)
	levelCrit   = decimal.NewFromInt(75)
)

// Point is the expected cash movement on one day.
type Point struct {
	Date       string          `json:"date"`
	Inflow     decimal.Decimal `json:"inflow"`
	Outflow    decimal.Decimal `json:"outflow"`
	NetFlow    decimal.Decimal `json:"net_flow"`
	Confidence decimal.Decimal `json:"confidence"`
}

// Bucket is a count and total of obligations.
type Bucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Upcoming is the receivable and payable volume due in the next 30 days.
type Upcoming struct {
	Receivables decimal.Decimal `json:"receivables_amount"`
	Payables    decimal.Decimal `json:"payables_amount"`
	NetFlow     decimal.Decimal `json:"net_flow"`
}

// RiskAnalysis scores near-term liquidity risk from 0 (none) to 100.
type RiskAnalysis struct {
	AsOf               string          `json:"as_of"`
	Score              decimal.Decimal `json:"risk_score"`
	Level              string          `json:"risk_level"`
	OverdueReceivables Bucket          `json:"overdue_receivables"`
	OverduePayables    Bucket          `json:"overdue_payables"`
	Upcoming           Upcoming        `json:"upcoming_30_days"`
	Recommendations    []string        `json:"recommendations"`
}

// Counterparty aggregates obligations with one customer or vendor.
type Counterparty struct {
	Name    string          `json:"name"`
	Total   decimal.Decimal `json:"total_amount"`
	Count   int             `json:"transaction_count"`
	Average decimal.Decimal `json:"avg_amount"`
}

// Insights lists the largest customers and vendors.
type Insights struct {
	TopCustomers []Counterparty `json:"top_customers"`
	TopVendors   []Counterparty `json:"top_vendors"`
}

// Projector computes forecasts relative to the clock's current day.
type Projector struct {
	Clock          clock.Clock
	DiscountFactor decimal.Decimal
	Horizon        int
}

// New returns a Projector with the default discount factor and horizon.
func New(clk clock.Clock) *Projector {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Projector{Clock: clk, DiscountFactor: DefaultDiscountFactor, Horizon: DefaultHorizon}
}

// Forecast returns one point per day for horizon days starting today.
// A non-positive horizon uses the projector's default.
//
// Inflows are receivables due that day scaled by the discount factor;
// outflows are payables due that day. Confidence is 0.3 on a day with no
// scheduled activity and 0.75 otherwise. It is not a statistical interval.
func (p *Projector) Forecast(obs []model.Obligation, horizon int) []Point {
	if horizon <= 0 {
		horizon = p.Horizon
	}
	if horizon <= 0 {
		horizon = DefaultHorizon
	}

	inflow := map[time.Time]decimal.Decimal{}
	outflow := map[time.Time]decimal.Decimal{}
	for _, o := range obs {
		if !o.IsPending() {
			continue
		}
		due := clock.Date(o.DueDate)
		switch o.Kind {
		case model.KindReceivable:
			inflow[due] = inflow[due].Add(o.Amount)
		case model.KindPayable:
			outflow[due] = outflow[due].Add(o.Amount)
		}
	}

	today := clock.Today(p.Clock)
	points := make([]Point, 0, horizon)
	for i := 0; i < horizon; i++ {
		d := today.AddDate(0, 0, i)
		in, out := inflow[d], outflow[d]
		conf := confidenceActive
		if in.IsZero() && out.IsZero() {
			conf = confidenceIdle
		}
		adjusted := in.Mul(p.DiscountFactor)
		points = append(points, Point{
			Date:       d.Format("2006-01-02"),
			Inflow:     adjusted.Round(2),
			Outflow:    out.Round(2),
			NetFlow:    adjusted.Sub(out).Round(2),
			Confidence: conf,
		})
	}
	return points
}

// Risk scores liquidity risk as of asOf from pending obligations.
//
// Overdue receivables add up to 30 points, a negative net flow over the next
// 30 days up to 40, and payables exceeding receivables in that period up to
// 30. A zero asOf means today.
func (p *Projector) Risk(obs []model.Obligation, asOf time.Time) RiskAnalysis {
	if asOf.IsZero() {
		asOf = p.Clock.Now()
	}
	today := clock.Date(asOf)
	horizon := today.AddDate(0, 0, riskWindowDays)

	r := RiskAnalysis{
		AsOf:               today.Format("2006-01-02"),
		OverdueReceivables: Bucket{Amount: decimal.Zero},
		OverduePayables:    Bucket{Amount: decimal.Zero},
		Upcoming:           Upcoming{Receivables: decimal.Zero, Payables: decimal.Zero},
		Recommendations:    []string{},
	}
	for _, o := range obs {
		if !o.IsPending() {
			continue
		}
		due := clock.Date(o.DueDate)
		switch {
		case due.Before(today):
			if o.Kind == model.KindReceivable {
				r.OverdueReceivables.Count++
				r.OverdueReceivables.Amount = r.OverdueReceivables.Amount.Add(o.Amount)
			} else {
				r.OverduePayables.Count++
				r.OverduePayables.Amount = r.OverduePayables.Amount.Add(o.Amount)
			}
		case !due.After(horizon):
			if o.Kind == model.KindReceivable {
				r.Upcoming.Receivables = r.Upcoming.Receivables.Add(o.Amount)
			} else {
				r.Upcoming.Payables = r.Upcoming.Payables.Add(o.Amount)
			}
		}
	}
	r.Upcoming.NetFlow = r.Upcoming.Receivables.Sub(r.Upcoming.Payables)

	score := decimal.Zero
	if r.OverdueReceivables.Amount.IsPositive() {
		score = score.Add(decimal.Min(capOverdue, r.OverdueReceivables.Amount.Div(thousand)))
	}
	if r.Upcoming.NetFlow.IsNegative() {
		score = score.Add(decimal.Min(capNegative, r.Upcoming.NetFlow.Abs().Div(thousand)))
	}
	if r.Upcoming.Receivables.IsPositive() {
		ratio := r.Upcoming.Payables.Div(r.Upcoming.Receivables)
		if ratio.GreaterThan(one) {
			score = score.Add(decimal.Min(capPayRatio, ratio.Sub(one).Mul(twenty)))
		}
	}
	score = decimal.Max(decimal.Zero, decimal.Min(maxScore, score))

	r.Score = score.Round(1)
	r.Level = Level(score)
	r.Recommendations = recommendations(score, r.OverdueReceivables.Count, r.OverduePayables.Count)
	r.OverdueReceivables.Amount = r.OverdueReceivables.Amount.Round(2)
	r.OverduePayables.Amount = r.OverduePayables.Amount.Round(2)
	return r
}

// Level maps a risk score to its band.
func Level(score decimal.Decimal) string {
	switch {
	case score.LessThan(levelMedium):
		return LevelLow
	case score.LessThan(levelHigh):
		return LevelMedium
	case score.LessThan(levelCrit):
		return LevelHigh
	default:
		return LevelCritical
	}
}

func recommendations(score decimal.Decimal, overdueIn, overdueOut int) []string {
	out := []string{}
	if overdueIn > 0 {
		out = append(out, fmt.Sprintf("Follow up on %d overdue receivables", overdueIn))
	}
	if overdueOut > 0 {
		out = append(out, fmt.Sprintf("Pay %d overdue bills to avoid penalties", overdueOut))
	}
	if score.GreaterThan(levelHigh) {
		out = append(out,
			"Consider negotiating payment terms with customers",
			"Review credit policies for new customers")
	}
	if score.GreaterThan(levelCrit) {
		out = append(out,
			"Urgent: Review cash position and consider financing options",
			"Prioritize collection of largest outstanding receivables")
	}
	return out
}

// Insights ranks counterparties by total obligation amount. Cancelled
// obligations are ignored. A non-positive n uses DefaultInsightsTop.
func (p *Projector) Insights(obs []model.Obligation, n int) Insights {
	if n <= 0 {
		n = DefaultInsightsTop
	}
	return Insights{
		TopCustomers: top(obs, model.KindReceivable, n),
		TopVendors:   top(obs, model.KindPayable, n),
	}
}

func top(obs []model.Obligation, kind model.ObligationKind, n int) []Counterparty {
	idx := map[string]int{}
	out := []Counterparty{}
	for _, o := range obs {
		if o.Kind != kind || o.Status == model.StatusCancelled {
			continue
		}
		i, ok := idx[o.Counterparty]
		if !ok {
			i = len(out)
			idx[o.Counterparty] = i
			out = append(out, Counterparty{Name: o.Counterparty, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(o.Amount)
		out[i].Count++
	}
	for i := range out {
		out[i].Average = out[i].Total.Div(decimal.NewFromInt(int64(out[i].Count))).Round(2)
		out[i].Total = out[i].Total.Round(2)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
