// Package reconcile measures how well internal transfers between the
// business's own accounts balance out.
package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/model"
)

// Reconciliation states.
const (
	StateReconciled  = "RECONCILED"
	StateNeedsReview = "NEEDS_REVIEW"
)

var (
	hundred   = decimal.NewFromInt(100)
	threshold = decimal.NewFromInt(95)
)

// Route is the transfer volume along one source -> target account pair.
type Route struct {
	Source   string          `json:"source_account"`
	Target   string          `json:"target_account"`
	Outgoing decimal.Decimal `json:"outgoing"`
	Incoming decimal.Decimal `json:"incoming"`
	Ratio    decimal.Decimal `json:"ratio"`
}

// Status is the reconciliation health of internal transfers up to AsOf.
type Status struct {
	AsOf              time.Time       `json:"as_of"`
	OutgoingTotal     decimal.Decimal `json:"outgoing_total"`
	IncomingTotal     decimal.Decimal `json:"incoming_total"`
	Difference        decimal.Decimal `json:"difference"`
	Ratio             decimal.Decimal `json:"reconciliation_ratio"`
	State             string          `json:"status"`
	OutgoingCount     int             `json:"outgoing_count"`
	IncomingCount     int             `json:"incoming_count"`
	UnmatchedOutgoing int             `json:"unmatched_outgoing"`
	UnmatchedIncoming int             `json:"unmatched_incoming"`
	PairedCount       int             `json:"paired_count"`
	Routes            []Route         `json:"routes"`
}

// Pair is an outgoing and an incoming transfer sharing a correlation token
// and amount.
type Pair struct {
	Token    string
	Outgoing model.TransactionRecord
	Incoming model.TransactionRecord
}

// Reconciled reports whether the ratio clears the 95% bar.
func (s Status) Reconciled() bool {
	return s.State == StateReconciled
}

// Ratio returns min(a,b)/max(a,b)*100 rounded to one decimal, or 100 when
// both are zero.
func Ratio(a, b decimal.Decimal) decimal.Decimal {
	return rawRatio(a, b).Round(1)
}

func rawRatio(a, b decimal.Decimal) decimal.Decimal {
	hi, lo := decimal.Max(a, b), decimal.Min(a, b)
	if hi.IsZero() {
		return hundred
	}
	return lo.Div(hi).Mul(hundred)
}

// Transfers returns the classified internal transfers dated on or before asOf.
// A zero asOf keeps every transfer.
func Transfers(recs []model.TransactionRecord, asOf time.Time) []model.TransactionRecord {
	var out []model.TransactionRecord
	for _, r := range recs {
		if r.Class == nil || !r.Class.IsInternalTransfer {
			continue
		}
		if !asOf.IsZero() && r.Date.After(asOf) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// StatusOf computes reconciliation health over recs as of asOf.
//
// The ratio compares total outgoing against total incoming volume; it is a
// coarse signal and does not require individual transfers to pair up.
// Unmatched counts are transfers without a correlation token.
func StatusOf(recs []model.TransactionRecord, asOf time.Time) Status {
	st := Status{
		AsOf:          asOf,
		OutgoingTotal: decimal.Zero,
		IncomingTotal: decimal.Zero,
	}

	type key struct{ src, dst string }
	routes := map[key]*Route{}

	transfers := Transfers(recs, asOf)
	for _, r := range transfers {
		k := key{r.Class.SourceAccount, r.Class.TargetAccount}
		rt, ok := routes[k]
		if !ok {
			rt = &Route{Source: k.src, Target: k.dst, Outgoing: decimal.Zero, Incoming: decimal.Zero}
			routes[k] = rt
		}

		switch r.Amount.Sign() {
		case -1:
			abs := r.Amount.Abs()
			st.OutgoingTotal = st.OutgoingTotal.Add(abs)
			rt.Outgoing = rt.Outgoing.Add(abs)
			st.OutgoingCount++
			if r.Class.TransferToken == "" {
				st.UnmatchedOutgoing++
			}
		case 1:
			st.IncomingTotal = st.IncomingTotal.Add(r.Amount)
			rt.Incoming = rt.Incoming.Add(r.Amount)
			st.IncomingCount++
			if r.Class.TransferToken == "" {
				st.UnmatchedIncoming++
			}
		}
	}

	st.Difference = st.OutgoingTotal.Sub(st.IncomingTotal).Abs()
	raw := rawRatio(st.OutgoingTotal, st.IncomingTotal)
	st.Ratio = raw.Round(1)
	st.State = StateNeedsReview
	if raw.GreaterThan(threshold) {
		st.State = StateReconciled
	}
	st.PairedCount = len(Pairs(transfers))

	st.Routes = make([]Route, 0, len(routes))
	for _, rt := range routes {
		rt.Ratio = Ratio(rt.Outgoing, rt.Incoming)
		st.Routes = append(st.Routes, *rt)
	}
	sort.Slice(st.Routes, func(i, j int) bool {
		if st.Routes[i].Source != st.Routes[j].Source {
			return st.Routes[i].Source < st.Routes[j].Source
		}
		return st.Routes[i].Target < st.Routes[j].Target
	})
	return st
}

// Pairs matches outgoing and incoming internal transfers that carry the same
// correlation token and the same absolute amount. Each record is used at
// most once; pairs are returned in token order.
func Pairs(recs []model.TransactionRecord) []Pair {
	outs := map[string][]model.TransactionRecord{}
	ins := map[string][]model.TransactionRecord{}
	for _, r := range recs {
		if r.Class == nil || !r.Class.IsInternalTransfer || r.Class.TransferToken == "" {
			continue
		}
		tok := r.Class.TransferToken
		switch r.Amount.Sign() {
		case -1:
			outs[tok] = append(outs[tok], r)
		case 1:
			ins[tok] = append(ins[tok], r)
		}
	}

	tokens := make([]string, 0, len(outs))
	for tok := range outs {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	var pairs []Pair
	for _, tok := range tokens {
		candidates := ins[tok]
		used := make([]bool, len(candidates))
		for _, o := range outs[tok] {
			for i, in := range candidates {
				if used[i] || !in.Amount.Equal(o.Amount.Neg()) {
					continue
				}
				used[i] = true
				pairs = append(pairs, Pair{Token: tok, Outgoing: o, Incoming: in})
				break
			}
		}
	}
	return pairs
}
