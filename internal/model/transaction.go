package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the top-level ledger bucket assigned by classification.
type Category string

const (
	CategoryRevenue           Category = "REVENUE"
	CategoryOperatingExpense  Category = "OPERATING_EXPENSE"
	CategoryPayrollExpense    Category = "PAYROLL_EXPENSE"
	CategoryTaxPayment        Category = "TAX_PAYMENT"
	CategoryBankFee           Category = "BANK_FEE"
	CategoryInternalTransfer  Category = "INTERNAL_TRANSFER"
	CategoryCreditCardPayment Category = "CREDIT_CARD_PAYMENT"
)

// Subtype refines a Category.
type Subtype string

const (
	SubtypeDeposit       Subtype = "DEPOSIT"
	SubtypeTransferIn    Subtype = "TRANSFER_IN"
	SubtypeTransferOut   Subtype = "TRANSFER_OUT"
	SubtypeTax           Subtype = "TAX"
	SubtypeFee           Subtype = "FEE"
	SubtypeVendorPayment Subtype = "VENDOR_PAYMENT"
	SubtypePayroll       Subtype = "PAYROLL"
	SubtypePayment       Subtype = "PAYMENT"
	SubtypePurchase      Subtype = "PURCHASE"
)

// ReceiptStatus tracks receipt collection for deductible spending.
type ReceiptStatus string

const (
	ReceiptNone     ReceiptStatus = ""
	ReceiptRequired ReceiptStatus = "REQUIRED"
	ReceiptReceived ReceiptStatus = "RECEIVED"
)

// MethodRuleBased tags classifications produced by the rule engine.
const MethodRuleBased = "RULE_BASED"

// TransactionRecord is one bank statement line.
type TransactionRecord struct {
	ID string

	// Source attributes, fixed at import.
	AccountName     string
	AccountRole     AccountRole
	AccountType     AccountType
	Date            time.Time
	Description     string
	Amount          decimal.Decimal // negative = outflow, positive = inflow
	Kind            string          // CREDIT or DEBIT as reported by the bank
	SourceCategory  string
	AccountingClass string
	Reference       string
	ImportBatchID   string

	// Class is nil until a classification run assigns a category.
	Class *Classification

	NeedsReview bool
	ReviewNote  string
}

// IsClassified reports whether the record carries a complete classification.
func (r TransactionRecord) IsClassified() bool {
	return r.Class != nil
}

// Category returns the assigned category, or "" when unclassified.
func (r TransactionRecord) Category() Category {
	if r.Class == nil {
		return ""
	}
	return r.Class.Category
}

// Classification holds every field owned by the classifier. A record either
// has all of them (non-nil Class) or none.
type Classification struct {
	Category   Category
	Subtype    Subtype
	LedgerCode string

	IsInternalTransfer bool
	SourceAccount      string
	TargetAccount      string
	TransferToken      string

	IsCreditCardTransaction bool
	CycleCutDate            time.Time
	DueDate                 time.Time
	IsCreditCardPayment     bool

	Merchant string

	IsTaxDeductible bool
	TaxCategory     string
	RequiresReceipt bool
	ReceiptStatus   ReceiptStatus

	Confidence decimal.Decimal
	Method     string
}

// Complete reports whether the mandatory classification fields are set.
func (c *Classification) Complete() bool {
	return c != nil && c.Category != "" && c.Subtype != "" && c.LedgerCode != "" && c.Method != ""
}
