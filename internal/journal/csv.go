// Package journal exports the classified ledger as balanced double-entry
// journals, one CSV per month.
package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
)

// Header is the CSV header for journal.csv.
const Header = "entry_id,date,code,bank_account,description,debit,credit,counterparty,record_id,category,confidence"

const (
	numFields  = 11
	dateFormat = "2006-01-02"
	colEntryID = 0
	colDate    = 1
	colCode    = 2
	colBank    = 3
	colDesc    = 4
	colDebit   = 5
	colCredit  = 6
	colCparty  = 7
	colRecord  = 8
	colCat     = 9
	colConf    = 10
)

// Leg is one side of a journal entry.
type Leg struct {
	EntryID      string // "2025-01-001a"
	Date         time.Time
	Code         string // ledger code, e.g. "6000"
	BankAccount  string // statement account the cash moved through
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Counterparty string
	RecordID     string
	Category     model.Category
	Confidence   decimal.Decimal
}

// EntryGroup returns the entry ID without the leg suffix.
func (l Leg) EntryGroup() string {
	return id.EntryGroup(l.EntryID)
}

// ReadLegs reads all legs from a journal.csv reader.
func ReadLegs(r io.Reader) ([]Leg, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var legs []Leg
	for i, rec := range records[1:] {
		leg, err := UnmarshalLeg(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// WriteLegs writes legs to a journal.csv writer (including header).
func WriteLegs(w io.Writer, legs []Leg) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, leg := range legs {
		if err := cw.Write(MarshalLeg(leg)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalLeg converts a Leg to a CSV row.
func MarshalLeg(leg Leg) []string {
	row := make([]string, numFields)
	row[colEntryID] = leg.EntryID
	row[colDate] = leg.Date.Format(dateFormat)
	row[colCode] = leg.Code
	row[colBank] = leg.BankAccount
	row[colDesc] = leg.Description
	if !leg.Debit.IsZero() {
		row[colDebit] = leg.Debit.StringFixed(2)
	}
	if !leg.Credit.IsZero() {
		row[colCredit] = leg.Credit.StringFixed(2)
	}
	row[colCparty] = leg.Counterparty
	row[colRecord] = leg.RecordID
	row[colCat] = string(leg.Category)
	if !leg.Confidence.IsZero() {
		row[colConf] = leg.Confidence.String()
	}
	return row
}

// UnmarshalLeg converts a CSV row to a Leg.
func UnmarshalLeg(record []string) (Leg, error) {
	if len(record) != numFields {
		return Leg{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return Leg{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amounts := make([]decimal.Decimal, 3)
	for i, col := range []int{colDebit, colCredit, colConf} {
		if record[col] == "" {
			continue
		}
		if amounts[i], err = decimal.NewFromString(record[col]); err != nil {
			return Leg{}, fmt.Errorf("parsing %q: %w", record[col], err)
		}
	}

	return Leg{
		EntryID:      record[colEntryID],
		Date:         date,
		Code:         record[colCode],
		BankAccount:  record[colBank],
		Description:  record[colDesc],
		Debit:        amounts[0],
		Credit:       amounts[1],
		Counterparty: record[colCparty],
		RecordID:     record[colRecord],
		Category:     model.Category(record[colCat]),
		Confidence:   amounts[2],
	}, nil
}
