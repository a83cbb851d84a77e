package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationKind separates money owed to us from money we owe.
type ObligationKind string

const (
	KindReceivable ObligationKind = "receivable"
	KindPayable    ObligationKind = "payable"
)

// ObligationStatus is the settlement state of an obligation.
type ObligationStatus string

const (
	StatusPending   ObligationStatus = "pending"
	StatusPaid      ObligationStatus = "paid"
	StatusCancelled ObligationStatus = "cancelled"
)

// Obligation is an open invoice or bill: a future cash movement that has not
// hit a bank statement yet.
type Obligation struct {
	ID            string
	Kind          ObligationKind
	Counterparty  string
	Amount        decimal.Decimal // always positive
	DueDate       time.Time
	Status        ObligationStatus
	InvoiceNumber string
	Description   string
}

// IsPending reports whether the obligation is still open.
func (o Obligation) IsPending() bool {
	return o.Status == StatusPending
}
