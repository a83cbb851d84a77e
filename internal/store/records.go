package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/model"
)

const dateLayout = "2006-01-02"

const recordColumns = `id, account_name, account_role, account_type, txn_date, description, amount,
	kind, source_category, accounting_class, reference, import_batch_id,
	is_classified, category, subtype, ledger_code, is_internal_transfer, source_account,
	target_account, transfer_token, is_credit_card_transaction, cycle_cut_date, due_date,
	is_credit_card_payment, merchant, is_tax_deductible, tax_category, requires_receipt,
	receipt_status, confidence, method, needs_review, review_note`

// Filter selects transaction records. Zero values do not filter.
type Filter struct {
	Account      string
	Start        time.Time // inclusive
	End          time.Time // inclusive
	Unclassified bool
	Limit        int
}

// InsertRecords stores imported records in one transaction. Records already
// present (same account, date, description, amount and reference) are
// skipped. It returns the number of rows inserted.
func (s *Store) InsertRecords(ctx context.Context, recs []model.TransactionRecord) (int, error) {
	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO transactions
			(id, account_name, account_role, account_type, txn_date, description, amount,
			 kind, source_category, accounting_class, reference, import_batch_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range recs {
			res, err := stmt.ExecContext(ctx,
				r.ID, r.AccountName, string(r.AccountRole), string(r.AccountType),
				r.Date.Format(dateLayout), r.Description, r.Amount.String(),
				r.Kind, r.SourceCategory, r.AccountingClass, r.Reference, r.ImportBatchID)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", r.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", r.ID, err)
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("records inserted", zap.Int("inserted", inserted), zap.Int("skipped", len(recs)-inserted))
	return inserted, nil
}

// Records returns records matching f ordered by date then ID.
func (s *Store) Records(ctx context.Context, f Filter) ([]model.TransactionRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Account != "" {
		where = append(where, "account_name = ?")
		args = append(args, f.Account)
	}
	if !f.Start.IsZero() {
		where = append(where, "txn_date >= ?")
		args = append(args, f.Start.Format(dateLayout))
	}
	if !f.End.IsZero() {
		where = append(where, "txn_date <= ?")
		args = append(args, f.End.Format(dateLayout))
	}
	if f.Unclassified {
		where = append(where, "is_classified = 0")
	}

	q := "SELECT " + recordColumns + " FROM transactions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY txn_date, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []model.TransactionRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return out, nil
}

// Record returns one record by ID.
func (s *Store) Record(ctx context.Context, id string) (model.TransactionRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM transactions WHERE id = ?", id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TransactionRecord{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ApplyResults writes classification results in a single transaction.
// Either every result is stored or, on any failure, none is. A receipt
// already marked received stays received while the new class still requires one.
func (s *Store) ApplyResults(ctx context.Context, results []model.ClassificationResult) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		classify, err := tx.PrepareContext(ctx, `UPDATE transactions SET
			is_classified = 1, category = ?, subtype = ?, ledger_code = ?,
			is_internal_transfer = ?, source_account = ?, target_account = ?, transfer_token = ?,
			is_credit_card_transaction = ?, cycle_cut_date = ?, due_date = ?, is_credit_card_payment = ?,
			merchant = ?, is_tax_deductible = ?, tax_category = ?, requires_receipt = ?,
			receipt_status = CASE WHEN receipt_status = 'RECEIVED' AND ? = 1 THEN receipt_status ELSE ? END,
			confidence = ?, method = ?, needs_review = ?, review_note = ?
			WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("preparing classification update: %w", err)
		}
		defer classify.Close()

		review, err := tx.PrepareContext(ctx, `UPDATE transactions SET needs_review = ?, review_note = ? WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("preparing review update: %w", err)
		}
		defer review.Close()

		for _, r := range results {
			var res sql.Result
			if c := r.Class; c != nil {
				res, err = classify.ExecContext(ctx,
					string(c.Category), string(c.Subtype), c.LedgerCode,
					boolInt(c.IsInternalTransfer), c.SourceAccount, c.TargetAccount, c.TransferToken,
					boolInt(c.IsCreditCardTransaction), formatDate(c.CycleCutDate), formatDate(c.DueDate), boolInt(c.IsCreditCardPayment),
					c.Merchant, boolInt(c.IsTaxDeductible), c.TaxCategory, boolInt(c.RequiresReceipt),
					boolInt(c.RequiresReceipt), string(c.ReceiptStatus),
					c.Confidence.String(), c.Method, boolInt(r.NeedsReview), r.ReviewNote,
					r.RecordID)
			} else {
				res, err = review.ExecContext(ctx, boolInt(r.NeedsReview), r.ReviewNote, r.RecordID)
			}
			if err != nil {
				return fmt.Errorf("updating record %s: %w", r.RecordID, err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("updating record %s: %w", r.RecordID, err)
			} else if n == 0 {
				return fmt.Errorf("updating record %s: %w", r.RecordID, ErrNotFound)
			}
		}
		return nil
	})
}

// MarkReceiptReceived records that the receipt for a classified record has
// been collected.
func (s *Store) MarkReceiptReceived(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET receipt_status = ? WHERE id = ? AND requires_receipt = 1`,
		string(model.ReceiptReceived), id)
	if err != nil {
		return fmt.Errorf("updating receipt for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating receipt for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record %s with a required receipt: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (model.TransactionRecord, error) {
	var r model.TransactionRecord
	var c model.Classification
	var role, typ, date, amount string
	var category, subtype, cutDate, dueDate, receiptStatus, confidence string
	var classified, transfer, card, cardPay, deductible, receipt, needsReview int
	err := sc.Scan(
		&r.ID, &r.AccountName, &role, &typ, &date, &r.Description, &amount,
		&r.Kind, &r.SourceCategory, &r.AccountingClass, &r.Reference, &r.ImportBatchID,
		&classified, &category, &subtype, &c.LedgerCode, &transfer, &c.SourceAccount,
		&c.TargetAccount, &c.TransferToken, &card, &cutDate, &dueDate,
		&cardPay, &c.Merchant, &deductible, &c.TaxCategory, &receipt,
		&receiptStatus, &confidence, &c.Method, &needsReview, &r.ReviewNote,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning record: %w", err)
	}

	r.AccountRole = model.AccountRole(role)
	r.AccountType = model.AccountType(typ)
	r.NeedsReview = needsReview == 1
	if r.Date, err = time.Parse(dateLayout, date); err != nil {
		return r, fmt.Errorf("record %s: parsing date %q: %w", r.ID, date, err)
	}
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return r, fmt.Errorf("record %s: parsing amount %q: %w", r.ID, amount, err)
	}

	if classified == 0 {
		return r, nil
	}

	c.Category = model.Category(category)
	c.Subtype = model.Subtype(subtype)
	c.IsInternalTransfer = transfer == 1
	c.IsCreditCardTransaction = card == 1
	c.IsCreditCardPayment = cardPay == 1
	c.IsTaxDeductible = deductible == 1
	c.RequiresReceipt = receipt == 1
	c.ReceiptStatus = model.ReceiptStatus(receiptStatus)
	if c.CycleCutDate, err = parseDate(cutDate); err != nil {
		return r, fmt.Errorf("record %s: parsing cycle cut date: %w", r.ID, err)
	}
	if c.DueDate, err = parseDate(dueDate); err != nil {
		return r, fmt.Errorf("record %s: parsing due date: %w", r.ID, err)
	}
	if c.Confidence, err = decimal.NewFromString(confidence); err != nil {
		return r, fmt.Errorf("record %s: parsing confidence %q: %w", r.ID, confidence, err)
	}
	r.Class = &c
	return r, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}
