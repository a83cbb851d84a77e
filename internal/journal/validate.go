package journal

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/id"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	EntryID     string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %d [%s]: %s", e.Invariant, e.EntryID, e.Description)
}

// ValidateLegs enforces 6 invariants on one month's legs before Export
// writes them. Records in the store are never checked this way:
//
//  1. each entry balances
//  2. each leg has exactly one of debit or credit
//  3. each leg carries a ledger code
//  4. each leg is dated inside the month
//  5. entry sequence numbers run 1..N without gaps
//  6. amounts have at most 2 decimal places
func ValidateLegs(legs []Leg, year int, month time.Month) []ValidationError {
	var errs []ValidationError

	groups := make(map[string][]Leg)
	var groupOrder []string
	for _, leg := range legs {
		g := leg.EntryGroup()
		if _, seen := groups[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		groups[g] = append(groups[g], leg)
	}

	for _, g := range groupOrder {
		totalDebit := decimal.Zero
		totalCredit := decimal.Zero
		for _, leg := range groups[g] {
			totalDebit = totalDebit.Add(leg.Debit)
			totalCredit = totalCredit.Add(leg.Credit)
		}
		if !totalDebit.Equal(totalCredit) {
			errs = append(errs, ValidationError{
				Invariant:   1,
				EntryID:     g,
				Description: fmt.Sprintf("debits (%s) != credits (%s)", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
			})
		}
	}

	for _, leg := range legs {
		if leg.Debit.IsZero() == leg.Credit.IsZero() {
			errs = append(errs, ValidationError{
				Invariant:   2,
				EntryID:     leg.EntryID,
				Description: "leg must have exactly one of debit or credit",
			})
		}

		if leg.Code == "" {
			errs = append(errs, ValidationError{
				Invariant:   3,
				EntryID:     leg.EntryID,
				Description: "missing ledger code",
			})
		}

		if leg.Date.Year() != year || leg.Date.Month() != month {
			errs = append(errs, ValidationError{
				Invariant:   4,
				EntryID:     leg.EntryID,
				Description: fmt.Sprintf("date %s not in %s", leg.Date.Format(dateFormat), id.FormatMonth(year, month)),
			})
		}

		for _, amt := range []decimal.Decimal{leg.Debit, leg.Credit} {
			if !amt.Equal(amt.Round(2)) {
				errs = append(errs, ValidationError{
					Invariant:   6,
					EntryID:     leg.EntryID,
					Description: fmt.Sprintf("amount %s has more than 2 decimal places", amt),
				})
			}
		}
	}

	seqSeen := make(map[int]bool)
	for _, g := range groupOrder {
		_, _, seq, err := id.ParseEntryID(g)
		if err != nil {
			errs = append(errs, ValidationError{
				Invariant:   5,
				EntryID:     g,
				Description: fmt.Sprintf("invalid entry ID: %v", err),
			})
			continue
		}
		seqSeen[seq] = true
	}
	for i := 1; i <= len(seqSeen); i++ {
		if !seqSeen[i] {
			errs = append(errs, ValidationError{
				Invariant:   5,
				EntryID:     fmt.Sprintf("seq %d", i),
				Description: fmt.Sprintf("missing sequence %d in 1..%d", i, len(seqSeen)),
			})
		}
	}

	return errs
}
