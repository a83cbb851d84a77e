package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
)

// ParseObligations reads receivables and payables in the layout
// Type,Counterparty,Amount,Due_Date,Status,Invoice_Number,Description.
// Type is receivable or payable; Status defaults to pending.
func ParseObligations(r io.Reader) ([]model.Obligation, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading obligations CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols, err := columns(rows[0], "type", "counterparty", "amount", "due_date")
	if err != nil {
		return nil, nil, err
	}

	var (
		out  []model.Obligation
		errs []RowError
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		o, err := parseObligation(cols, row)
		if err != nil {
			errs = append(errs, RowError{Row: i + 2, Err: err})
			continue
		}
		out = append(out, o)
	}
	return out, errs, nil
}

func parseObligation(cols header, row []string) (model.Obligation, error) {
	kind := model.ObligationKind(strings.ToLower(cols.get(row, "type")))
	if kind != model.KindReceivable && kind != model.KindPayable {
		return model.Obligation{}, fmt.Errorf("unknown obligation type %q", cols.get(row, "type"))
	}

	party := cols.get(row, "counterparty")
	if party == "" {
		return model.Obligation{}, fmt.Errorf("missing counterparty")
	}

	amount, err := parseAmount(cols.get(row, "amount"))
	if err != nil {
		return model.Obligation{}, err
	}
	if !amount.IsPositive() {
		return model.Obligation{}, fmt.Errorf("amount %s must be positive", amount)
	}

	due, err := parseDate(cols.get(row, "due_date"))
	if err != nil {
		return model.Obligation{}, err
	}

	status := model.ObligationStatus(strings.ToLower(cols.get(row, "status")))
	switch status {
	case "":
		status = model.StatusPending
	case model.StatusPending, model.StatusPaid, model.StatusCancelled:
	default:
		return model.Obligation{}, fmt.Errorf("unknown obligation status %q", cols.get(row, "status"))
	}

	return model.Obligation{
		ID:            id.NewObligationID(),
		Kind:          kind,
		Counterparty:  party,
		Amount:        amount,
		DueDate:       due,
		Status:        status,
		InvoiceNumber: cols.get(row, "invoice_number"),
		Description:   cols.get(row, "description"),
	}, nil
}
