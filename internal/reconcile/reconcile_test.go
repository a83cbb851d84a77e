package reconcile

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func transfer(id string, date time.Time, amount, token string) model.TransactionRecord {
	sub := model.SubtypeTransferIn
	account := "Bill Pay 5285"
	if decimal.RequireFromString(amount).IsNegative() {
		sub = model.SubtypeTransferOut
		account = "Revenue 4717"
	}
	return model.TransactionRecord{
		ID:          id,
		AccountName: account,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Class: &model.Classification{
			Category:           model.CategoryInternalTransfer,
			Subtype:            sub,
			LedgerCode:         "1100",
			IsInternalTransfer: true,
			SourceAccount:      "Revenue 4717",
			TargetAccount:      "Bill Pay 5285",
			TransferToken:      token,
			Confidence:         decimal.RequireFromString("0.92"),
			Method:             model.MethodRuleBased,
		},
	}
}

func TestStatusOf_Balanced(t *testing.T) {
	recs := []model.TransactionRecord{
		transfer("o1", day(2025, 1, 10), "-5000", "aaaa1111"),
		transfer("i1", day(2025, 1, 10), "5000", "aaaa1111"),
		transfer("o2", day(2025, 1, 20), "-1000", ""),
		transfer("i2", day(2025, 1, 21), "1000", ""),
	}
	st := StatusOf(recs, day(2025, 12, 31))

	assert.Equal(t, "100", st.Ratio.String())
	assert.Equal(t, StateReconciled, st.State)
	assert.True(t, st.Reconciled())
	assert.True(t, decimal.RequireFromString("6000").Equal(st.OutgoingTotal))
	assert.True(t, st.Difference.IsZero())
	assert.Equal(t, 2, st.OutgoingCount)
	assert.Equal(t, 2, st.IncomingCount)
	assert.Equal(t, 1, st.UnmatchedOutgoing)
	assert.Equal(t, 1, st.UnmatchedIncoming)
	assert.Equal(t, 1, st.PairedCount)
	require.Len(t, st.Routes, 1)
	assert.Equal(t, "Revenue 4717", st.Routes[0].Source)
}

func TestStatusOf_Empty(t *testing.T) {
	st := StatusOf(nil, day(2025, 1, 1))
	assert.Equal(t, "100", st.Ratio.String())
	assert.Equal(t, StateReconciled, st.State)
	assert.True(t, st.OutgoingTotal.IsZero())
	assert.Empty(t, st.Routes)
}

func TestStatusOf_NeedsReview(t *testing.T) {
	recs := []model.TransactionRecord{
		transfer("o1", day(2025, 1, 10), "-1000", ""),
		transfer("i1", day(2025, 1, 11), "950", ""),
	}
	st := StatusOf(recs, time.Time{})
	assert.Equal(t, "95", st.Ratio.String())
	assert.Equal(t, StateNeedsReview, st.State, "exactly 95 is not enough")
	assert.True(t, decimal.RequireFromString("50").Equal(st.Difference))

	recs[1] = transfer("i1", day(2025, 1, 11), "951", "")
	assert.Equal(t, StateReconciled, StatusOf(recs, time.Time{}).State)
}

func TestStatusOf_ThresholdUsesUnroundedRatio(t *testing.T) {
	recs := []model.TransactionRecord{
		transfer("o1", day(2025, 1, 10), "-10000", ""),
		transfer("i1", day(2025, 1, 11), "9504", ""),
	}
	st := StatusOf(recs, time.Time{})
	assert.Equal(t, "95", st.Ratio.String(), "reported ratio is rounded")
	assert.Equal(t, StateReconciled, st.State, "95.04 clears the bar")
}

func TestStatusOf_OneSided(t *testing.T) {
	st := StatusOf([]model.TransactionRecord{transfer("o1", day(2025, 1, 10), "-1000", "")}, time.Time{})
	assert.True(t, st.Ratio.IsZero())
	assert.Equal(t, StateNeedsReview, st.State)
}

func TestStatusOf_AsOfFilter(t *testing.T) {
	recs := []model.TransactionRecord{
		transfer("o1", day(2025, 1, 10), "-1000", ""),
		transfer("i1", day(2025, 2, 10), "1000", ""),
	}
	st := StatusOf(recs, day(2025, 1, 31))
	assert.Equal(t, 1, st.OutgoingCount)
	assert.Equal(t, 0, st.IncomingCount)
	assert.Equal(t, StateNeedsReview, st.State)

	st = StatusOf(recs, day(2025, 2, 10))
	assert.Equal(t, StateReconciled, st.State, "as_of is inclusive")
}

func TestStatusOf_IgnoresNonTransfers(t *testing.T) {
	fee := transfer("f1", day(2025, 1, 10), "-99", "")
	fee.Class.IsInternalTransfer = false
	fee.Class.Category = model.CategoryBankFee
	unclassified := model.TransactionRecord{ID: "u1", Amount: decimal.RequireFromString("-5"), Date: day(2025, 1, 1)}

	st := StatusOf([]model.TransactionRecord{fee, unclassified}, time.Time{})
	assert.Equal(t, 0, st.OutgoingCount)
	assert.Equal(t, "100", st.Ratio.String())
}

func TestRatio_Bounds(t *testing.T) {
	amounts := []string{"0", "0.01", "1", "99.99", "100", "5000", "123456.78"}
	for _, a := range amounts {
		for _, b := range amounts {
			t.Run(fmt.Sprintf("%s/%s", a, b), func(t *testing.T) {
				r := Ratio(decimal.RequireFromString(a), decimal.RequireFromString(b))
				assert.False(t, r.IsNegative())
				assert.False(t, r.GreaterThan(hundred))
				if a == b {
					assert.True(t, r.Equal(hundred))
				}
			})
		}
	}
}

func TestPairs(t *testing.T) {
	recs := []model.TransactionRecord{
		transfer("o1", day(2025, 1, 10), "-500", "tok-b0000001"),
		transfer("o2", day(2025, 1, 10), "-500", "tok-b0000001"),
		transfer("i1", day(2025, 1, 11), "500", "tok-b0000001"),
		transfer("o3", day(2025, 1, 12), "-70", "tok-a0000001"),
		transfer("i3", day(2025, 1, 12), "75", "tok-a0000001"),
		transfer("o4", day(2025, 1, 13), "-10", ""),
		transfer("i4", day(2025, 1, 13), "10", ""),
	}
	pairs := Pairs(recs)
	require.Len(t, pairs, 1)
	assert.Equal(t, "tok-b0000001", pairs[0].Token)
	assert.Equal(t, "o1", pairs[0].Outgoing.ID)
	assert.Equal(t, "i1", pairs[0].Incoming.ID)
}
