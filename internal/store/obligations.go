package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/model"
)

// ObligationFilter selects obligations. Zero values do not filter.
type ObligationFilter struct {
	Kind   model.ObligationKind
	Status model.ObligationStatus
}

// InsertObligations stores obligations in one transaction, skipping
// duplicates. It returns the number of rows inserted.
func (s *Store) InsertObligations(ctx context.Context, obs []model.Obligation) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO obligations
			(id, kind, counterparty, amount, due_date, status, invoice_number, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range obs {
			res, err := stmt.ExecContext(ctx,
				o.ID, string(o.Kind), o.Counterparty, o.Amount.String(),
				o.DueDate.Format(dateLayout), string(o.Status), o.InvoiceNumber, o.Description)
			if err != nil {
				return fmt.Errorf("inserting obligation %s: %w", o.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("inserting obligation %s: %w", o.ID, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Obligations returns obligations matching f ordered by due date.
func (s *Store) Obligations(ctx context.Context, f ObligationFilter) ([]model.Obligation, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	q := `SELECT id, kind, counterparty, amount, due_date, status, invoice_number, description FROM obligations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY due_date, id"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying obligations: %w", err)
	}
	defer rows.Close()

	var out []model.Obligation
	for rows.Next() {
		var o model.Obligation
		var kind, status, amount, due string
		if err := rows.Scan(&o.ID, &kind, &o.Counterparty, &amount, &due, &status, &o.InvoiceNumber, &o.Description); err != nil {
			return nil, fmt.Errorf("scanning obligation: %w", err)
		}
		o.Kind = model.ObligationKind(kind)
		o.Status = model.ObligationStatus(status)
		if o.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("obligation %s: parsing amount %q: %w", o.ID, amount, err)
		}
		if o.DueDate, err = time.Parse(dateLayout, due); err != nil {
			return nil, fmt.Errorf("obligation %s: parsing due date %q: %w", o.ID, due, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading obligations: %w", err)
	}
	return out, nil
}

// SetObligationStatus updates the settlement state of one obligation.
func (s *Store) SetObligationStatus(ctx context.Context, id string, status model.ObligationStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE obligations SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating obligation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating obligation %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("obligation %s: %w", id, ErrNotFound)
	}
	return nil
}
