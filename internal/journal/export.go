package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/classify"
	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
)

// CashCode is the ledger code every statement account posts against. The
// bank_account column tells the accounts apart.
const CashCode = "1000"

// Dir is the workspace subdirectory holding exported journals.
const Dir = "journal"

// MonthFile summarises one exported month.
type MonthFile struct {
	Month   string `json:"month"`
	Path    string `json:"path"`
	Entries int    `json:"entries"`
	Skipped int    `json:"skipped"` // unclassified or zero-amount records
	// ClearingBalance is the net of the internal-transfer code. It is zero
	// when every transfer leaving one account arrived in another.
	ClearingBalance decimal.Decimal `json:"clearing_balance"`
}

// EntryFor turns one classified record into a balanced two-leg entry.
// Inflows debit cash and credit the classified code; outflows the reverse.
func EntryFor(rec model.TransactionRecord, seq int) ([]Leg, error) {
	if rec.Class == nil {
		return nil, fmt.Errorf("record %s is not classified", rec.ID)
	}
	if rec.Amount.IsZero() {
		return nil, fmt.Errorf("record %s has a zero amount", rec.ID)
	}

	entryID := id.FormatEntryID(rec.Date.Year(), rec.Date.Month(), seq)
	base := Leg{
		Date:         rec.Date,
		BankAccount:  rec.AccountName,
		Description:  rec.Description,
		Counterparty: rec.Class.Merchant,
		RecordID:     rec.ID,
		Category:     rec.Class.Category,
		Confidence:   rec.Class.Confidence,
	}
	amount := rec.Amount.Abs()

	debit, credit := base, base
	debit.EntryID, credit.EntryID = id.FormatLegID(entryID, 0), id.FormatLegID(entryID, 1)
	debit.Debit, credit.Credit = amount, amount
	if rec.Amount.IsPositive() {
		debit.Code, credit.Code = CashCode, rec.Class.LedgerCode
	} else {
		debit.Code, credit.Code = rec.Class.LedgerCode, CashCode
	}
	return []Leg{debit, credit}, nil
}

// ClearingBalance returns debits minus credits on the internal-transfer code.
func ClearingBalance(legs []Leg) decimal.Decimal {
	bal := decimal.Zero
	for _, l := range legs {
		if l.Code == classify.LedgerTransfer {
			bal = bal.Add(l.Debit).Sub(l.Credit)
		}
	}
	return bal
}

// Export rewrites <root>/journal/YYYY/MM/journal.csv for every month that
// has records. Entries are numbered by date then record ID. Nothing is
// written if any month fails validation.
func Export(root string, recs []model.TransactionRecord) ([]MonthFile, error) {
	sorted := make([]model.TransactionRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})

	months := map[string][]Leg{}
	skipped := map[string]int{}
	var order []string
	for _, rec := range sorted {
		key := id.MonthOf(rec.Date)
		if _, seen := months[key]; !seen {
			months[key] = nil
			order = append(order, key)
		}
		if rec.Class == nil || rec.Amount.IsZero() {
			skipped[key]++
			continue
		}
		legs, err := EntryFor(rec, len(months[key])/2+1)
		if err != nil {
			return nil, err
		}
		months[key] = append(months[key], legs...)
	}

	for _, key := range order {
		year, month, err := id.ParseMonth(key)
		if err != nil {
			return nil, err
		}
		if verrs := ValidateLegs(months[key], year, month); len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, ve := range verrs {
				msgs[i] = ve.Error()
			}
			return nil, fmt.Errorf("journal %s failed validation: %s", key, strings.Join(msgs, "; "))
		}
	}

	out := make([]MonthFile, 0, len(order))
	for _, key := range order {
		year, month, _ := id.ParseMonth(key)
		path := monthPath(root, year, month)
		if err := writeMonth(path, months[key]); err != nil {
			return nil, err
		}
		out = append(out, MonthFile{
			Month:           key,
			Path:            path,
			Entries:         len(months[key]) / 2,
			Skipped:         skipped[key],
			ClearingBalance: ClearingBalance(months[key]),
		})
	}
	return out, nil
}

// ReadMonth reads all legs for a given year/month.
func ReadMonth(root string, year int, month time.Month) ([]Leg, error) {
	path := monthPath(root, year, month)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	defer f.Close()

	legs, err := ReadLegs(f)
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}
	return legs, nil
}

func writeMonth(path string, legs []Leg) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	if err := WriteLegs(f, legs); err != nil {
		f.Close()
		return fmt.Errorf("writing journal %s: %w", path, err)
	}
	return f.Close()
}

func monthPath(root string, year int, month time.Month) string {
	return filepath.Join(root, Dir, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", int(month)), "journal.csv")
}
