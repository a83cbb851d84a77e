package classify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/model"
)

// Record invariants checked by ValidateRecord.
const (
	RuleComplete        = "complete"
	RuleConfidence      = "confidence"
	RuleTransfer        = "transfer"
	RuleCardCycle       = "card_cycle"
	RuleReceipt         = "receipt"
	RuleAmountPrecision = "amount_precision"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Rule        string
	RecordID    string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", e.Rule, e.RecordID, e.Description)
}

// AccountChecker reports whether an account name is configured.
type AccountChecker interface {
	Get(name string) (model.Account, bool)
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ValidateRecord checks the classification invariants of one record. An
// unclassified record is always valid.
func ValidateRecord(rec model.TransactionRecord, accounts AccountChecker) []ValidationError {
	var errs []ValidationError
	add := func(rule, format string, args ...any) {
		errs = append(errs, ValidationError{Rule: rule, RecordID: rec.ID, Description: fmt.Sprintf(format, args...)})
	}

	cents := rec.Amount.Mul(hundred)
	if !cents.Equal(cents.Truncate(0)) {
		add(RuleAmountPrecision, "amount %s has more than 2 decimal places", rec.Amount)
	}

	c := rec.Class
	if c == nil {
		return errs
	}

	if !c.Complete() {
		add(RuleComplete, "classification missing category, subtype, ledger code or method")
	}
	if c.Confidence.IsNegative() || c.Confidence.GreaterThan(one) {
		add(RuleConfidence, "confidence %s outside [0,1]", c.Confidence)
	}

	if c.IsInternalTransfer {
		if c.SourceAccount == c.TargetAccount {
			add(RuleTransfer, "source and target are both %q", c.SourceAccount)
		}
		if _, ok := accounts.Get(c.SourceAccount); !ok {
			add(RuleTransfer, "unknown source account %q", c.SourceAccount)
		}
		if _, ok := accounts.Get(c.TargetAccount); !ok {
			add(RuleTransfer, "unknown target account %q", c.TargetAccount)
		}
	}

	if c.IsCreditCardTransaction && (c.CycleCutDate.IsZero() || c.DueDate.IsZero()) {
		add(RuleCardCycle, "credit card transaction without cycle dates")
	}

	if c.RequiresReceipt && c.ReceiptStatus == model.ReceiptNone {
		add(RuleReceipt, "receipt required but no receipt status")
	}

	return errs
}

// ValidateRecords checks every record and collects all violations.
func ValidateRecords(recs []model.TransactionRecord, accounts AccountChecker) []ValidationError {
	var errs []ValidationError
	for _, r := range recs {
		errs = append(errs, ValidateRecord(r, accounts)...)
	}
	return errs
}
