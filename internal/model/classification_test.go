package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_SetsClassificationWithoutTouchingSource(t *testing.T) {
	rec := TransactionRecord{
		ID:          "r1",
		AccountName: "Bill Pay 5285",
		Date:        time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("-2400.00"),
	}
	res := ClassificationResult{
		RecordID: "r1",
		Class: &Classification{
			Category:   CategoryOperatingExpense,
			Subtype:    SubtypeVendorPayment,
			LedgerCode: "6000",
			Confidence: decimal.RequireFromString("0.85"),
			Method:     MethodRuleBased,
		},
	}

	got := res.Apply(rec)
	require.True(t, got.IsClassified())
	assert.Equal(t, CategoryOperatingExpense, got.Category())
	assert.True(t, got.Amount.Equal(rec.Amount))
	assert.False(t, rec.IsClassified(), "input record must not be mutated")

	// The applied classification is a copy.
	res.Class.Category = CategoryBankFee
	assert.Equal(t, CategoryOperatingExpense, got.Category())
}

func TestApply_ReviewOnly(t *testing.T) {
	rec := TransactionRecord{ID: "r2", AccountName: "Mystery 0000"}
	res := ClassificationResult{RecordID: "r2", NeedsReview: true, ReviewNote: "unknown account"}

	got := res.Apply(rec)
	assert.False(t, got.IsClassified())
	assert.True(t, got.NeedsReview)
	assert.Equal(t, "unknown account", got.ReviewNote)
	assert.Equal(t, Category(""), got.Category())
}

func TestClassificationComplete(t *testing.T) {
	var nilClass *Classification
	assert.False(t, nilClass.Complete())
	assert.False(t, (&Classification{Category: CategoryRevenue}).Complete())
	assert.True(t, (&Classification{
		Category:   CategoryRevenue,
		Subtype:    SubtypeDeposit,
		LedgerCode: "4000",
		Method:     MethodRuleBased,
	}).Complete())
}

func TestObligationIsPending(t *testing.T) {
	assert.True(t, Obligation{Status: StatusPending}.IsPending())
	assert.False(t, Obligation{Status: StatusPaid}.IsPending())
}
