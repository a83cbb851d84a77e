package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/cashflow/internal/classify"
	"github.com/cleared-dev/cashflow/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

func classified(id, account string, date time.Time, amount, code string, cat model.Category) model.TransactionRecord {
	return model.TransactionRecord{
		ID:          id,
		AccountName: account,
		Date:        date,
		Description: "line " + id,
		Amount:      dec(amount),
		Class: &model.Classification{
			Category:   cat,
			LedgerCode: code,
			Confidence: dec("0.95"),
			Method:     model.MethodRuleBased,
		},
	}
}

func balancedEntry(seq string, amount string) []Leg {
	return []Leg{
		{EntryID: "2025-01-" + seq + "a", Date: day(1, 15), Code: "6000", Debit: dec(amount)},
		{EntryID: "2025-01-" + seq + "b", Date: day(1, 15), Code: CashCode, Credit: dec(amount)},
	}
}

func TestEntryFor(t *testing.T) {
	out, err := EntryFor(classified("r1", "Bill Pay 5285", day(1, 10), "-2400.00", classify.LedgerOperating, model.CategoryOperatingExpense), 3)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "2025-01-003a", out[0].EntryID)
	assert.Equal(t, classify.LedgerOperating, out[0].Code)
	assert.Equal(t, "2400", out[0].Debit.String())
	assert.Equal(t, CashCode, out[1].Code)
	assert.Equal(t, "2400", out[1].Credit.String())
	assert.Equal(t, "Bill Pay 5285", out[1].BankAccount)

	in, err := EntryFor(classified("r2", "Revenue 4717", day(1, 5), "15000", classify.LedgerRevenue, model.CategoryRevenue), 1)
	require.NoError(t, err)
	assert.Equal(t, CashCode, in[0].Code)
	assert.Equal(t, classify.LedgerRevenue, in[1].Code)
}

func TestEntryFor_Errors(t *testing.T) {
	_, err := EntryFor(model.TransactionRecord{ID: "r1", Amount: dec("5")}, 1)
	assert.Error(t, err)

	_, err = EntryFor(classified("r2", "A", day(1, 1), "0", "6000", model.CategoryBankFee), 1)
	assert.Error(t, err)
}

func TestWriteAndReadLegs(t *testing.T) {
	legs := balancedEntry("001", "4.5")
	legs[0].Description = `Payment to "Office, Supplies" Co`
	legs[0].Confidence = dec("0.9")

	var buf bytes.Buffer
	require.NoError(t, WriteLegs(&buf, legs))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.Contains(t, buf.String(), "4.50")

	got, err := ReadLegs(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, legs[0].Description, got[0].Description)
	assert.True(t, got[0].Debit.Equal(dec("4.5")))
	assert.True(t, got[0].Credit.IsZero())
	assert.True(t, got[1].Credit.Equal(dec("4.5")))
	assert.Equal(t, "0.9", got[0].Confidence.String())
}

func TestReadLegs_Errors(t *testing.T) {
	legs, err := ReadLegs(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, legs)

	_, err = ReadLegs(strings.NewReader(Header + "\n2025-01-001a,not-a-date,6000,,x,1.00,,,,,\n"))
	assert.Error(t, err)
}

func TestValidate_Balanced(t *testing.T) {
	legs := append(balancedEntry("001", "10"), balancedEntry("002", "20.25")...)
	assert.Empty(t, ValidateLegs(legs, 2025, time.January))
}

func TestValidate_Violations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func([]Leg) []Leg
		invariant int
	}{
		{"unbalanced", func(l []Leg) []Leg { l[1].Credit = dec("9"); return l }, 1},
		{"both sides", func(l []Leg) []Leg { l[0].Credit = dec("10"); return l }, 2},
		{"missing code", func(l []Leg) []Leg { l[0].Code = ""; return l }, 3},
		{"wrong month", func(l []Leg) []Leg { l[0].Date = day(2, 1); return l }, 4},
		{"sequence gap", func(l []Leg) []Leg { l[0].EntryID, l[1].EntryID = "2025-01-002a", "2025-01-002b"; return l }, 5},
		{"sub-cent amount", func(l []Leg) []Leg { l[0].Debit, l[1].Credit = dec("10.001"), dec("10.001"); return l }, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateLegs(tt.mutate(balancedEntry("001", "10")), 2025, time.January)
			require.NotEmpty(t, errs)
			found := false
			for _, e := range errs {
				if e.Invariant == tt.invariant {
					found = true
				}
			}
			assert.True(t, found, "expected invariant %d in %v", tt.invariant, errs)
		})
	}
}

func TestExport(t *testing.T) {
	root := t.TempDir()
	recs := []model.TransactionRecord{
		classified("b", "Bill Pay 5285", day(1, 6), "5000", classify.LedgerTransfer, model.CategoryInternalTransfer),
		classified("a", "Revenue 4717", day(1, 6), "-5000", classify.LedgerTransfer, model.CategoryInternalTransfer),
		classified("c", "Revenue 4717", day(1, 5), "15000", classify.LedgerRevenue, model.CategoryRevenue),
		classified("d", "Capital One", day(2, 3), "-120.50", classify.LedgerOperating, model.CategoryOperatingExpense),
		{ID: "e", AccountName: "Savings 9999", Date: day(2, 7), Amount: dec("1")},
	}

	files, err := Export(root, recs)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "2025-01", files[0].Month)
	assert.Equal(t, 3, files[0].Entries)
	assert.True(t, files[0].ClearingBalance.IsZero(), "matched transfers net to zero")
	assert.Equal(t, "2025-02", files[1].Month)
	assert.Equal(t, 1, files[1].Entries)
	assert.Equal(t, 1, files[1].Skipped)

	legs, err := ReadMonth(root, 2025, time.January)
	require.NoError(t, err)
	require.Len(t, legs, 6)
	assert.Equal(t, "c", legs[0].RecordID, "entries are numbered by date")
	assert.Equal(t, "2025-01-001a", legs[0].EntryID)
	assert.Equal(t, "a", legs[2].RecordID, "same-day records are ordered by ID")
	assert.Empty(t, ValidateLegs(legs, 2025, time.January))

	_, err = os.Stat(filepath.Join(root, Dir, "2025", "02", "journal.csv"))
	require.NoError(t, err)
}

func TestExport_UnmatchedTransfer(t *testing.T) {
	files, err := Export(t.TempDir(), []model.TransactionRecord{
		classified("a", "Revenue 4717", day(3, 6), "-5000", classify.LedgerTransfer, model.CategoryInternalTransfer),
	})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "5000", files[0].ClearingBalance.String())
}

func TestReadMonth_NonExistent(t *testing.T) {
	legs, err := ReadMonth(t.TempDir(), 2025, time.May)
	require.NoError(t, err)
	assert.Nil(t, legs)
}
