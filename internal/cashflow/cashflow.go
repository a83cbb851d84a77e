// Package cashflow derives KPIs and summaries from classified transaction
// records. Every function is a pure computation over the records it is
// given; only records with a complete classification count toward totals.
package cashflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/accounts"
	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/cycle"
	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
	"github.com/cleared-dev/cashflow/internal/reconcile"
)

// ErrUnknownAccount is returned for an account name that is not configured.
var ErrUnknownAccount = errors.New("unknown account")

const (
	recentLimit       = 10
	descriptionLength = 60
	uncategorizedTax  = "UNCATEGORIZED"
)

var hundred = decimal.NewFromInt(100)

// Calculator computes cash-flow summaries.
type Calculator struct {
	Accounts *accounts.Service
	Cycle    cycle.Calculator
	Clock    clock.Clock
}

// New creates a Calculator. A nil clock uses the system time.
func New(dir *accounts.Service, cal cycle.Calculator, clk clock.Clock) *Calculator {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Calculator{Accounts: dir, Cycle: cal, Clock: clk}
}

// Window resolves an optional date range against the calculator's clock.
func (c *Calculator) Window(start, end time.Time) (Window, error) {
	return DefaultWindow(c.Clock, start, end)
}

// KPIs are the headline figures for a window. Expense figures are absolute
// values.
type KPIs struct {
	Revenue           decimal.Decimal `json:"revenue_total"`
	OperatingExpenses decimal.Decimal `json:"operating_expenses"`
	PayrollExpenses   decimal.Decimal `json:"payroll_expenses"`
	TaxPayments       decimal.Decimal `json:"tax_payments"`
	BankFees          decimal.Decimal `json:"bank_fees"`
	TotalExpenses     decimal.Decimal `json:"total_expenses"`
	NetCashFlow       decimal.Decimal `json:"net_cash_flow"`
	ExpenseRatio      decimal.Decimal `json:"expense_ratio"`
	ProfitMargin      decimal.Decimal `json:"profit_margin"`
}

// Dashboard is the overview of one window.
type Dashboard struct {
	Period         Period               `json:"period"`
	KPIs           KPIs                 `json:"kpis"`
	Accounts       []AccountSummary     `json:"account_summaries"`
	Reconciliation reconcile.Status     `json:"transfer_reconciliation"`
	Classification ClassificationStatus `json:"classification_status"`
	CreditCard     CreditCardSummary    `json:"credit_card_summary"`
	LastUpdated    time.Time            `json:"last_updated"`
}

// Totals are inflow and outflow sums over a set of records.
type Totals struct {
	Positive decimal.Decimal `json:"positive_total"`
	Negative decimal.Decimal `json:"negative_total"` // absolute value
	Net      decimal.Decimal `json:"net_total"`
	Count    int             `json:"transaction_count"`
}

// CategoryTotal is one business category within an account summary.
type CategoryTotal struct {
	Category model.Category  `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	Average  decimal.Decimal `json:"average"`
}

// MonthTotal is one calendar month of an account summary.
type MonthTotal struct {
	Month string `json:"month"` // "2025-01"
	Label string `json:"label"` // "January 2025"
	Totals
}

// RecentRecord is a condensed record for display.
type RecentRecord struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Category    model.Category  `json:"category"`
	Confidence  decimal.Decimal `json:"confidence"`
	Merchant    string          `json:"merchant"`
}

// AccountSummary describes one account over a window.
type AccountSummary struct {
	AccountName string            `json:"account_name"`
	Role        model.AccountRole `json:"account_role"`
	Type        model.AccountType `json:"account_type"`
	LedgerBase  string            `json:"ledger_base"`
	Period      Period            `json:"period"`
	Totals      Totals            `json:"totals"`
	Categories  []CategoryTotal   `json:"category_breakdown"`
	Months      []MonthTotal      `json:"monthly_data"`
	Recent      []RecentRecord    `json:"recent_transactions"`
}

// TaxCategoryTotal is the deductible spending in one tax category.
type TaxCategoryTotal struct {
	TaxCategory      string          `json:"tax_category"`
	Total            decimal.Decimal `json:"total"`
	Count            int             `json:"count"`
	ReceiptsRequired int             `json:"receipts_required"`
	ReceiptsReceived int             `json:"receipts_received"`
}

// ReceiptCompliance counts receipt collection for deductible records.
type ReceiptCompliance struct {
	Required int `json:"total_requiring_receipts"`
	Received int `json:"receipts_received"`
	Pending  int `json:"receipts_pending"`
}

// TaxSummary reports tax-deductible spending over a window.
type TaxSummary struct {
	Period          Period             `json:"period"`
	TotalDeductible decimal.Decimal    `json:"total_deductible"`
	Count           int                `json:"transaction_count"`
	Categories      []TaxCategoryTotal `json:"category_breakdown"`
	Receipts        ReceiptCompliance  `json:"receipt_compliance"`
}

// CurrentCycle summarises card activity since the latest statement cut.
type CurrentCycle struct {
	CutDate      string          `json:"cycle_cut_date"`
	DueDate      string          `json:"due_date"`
	NextCutDate  string          `json:"next_cycle_cut"`
	DaysUntilDue int             `json:"days_until_due"`
	Purchases    decimal.Decimal `json:"purchases_this_cycle"`
	Transactions int             `json:"transactions_this_cycle"`
}

// CardReceipts tracks receipt collection for card purchases.
type CardReceipts struct {
	Required       int             `json:"required"`
	Received       int             `json:"received"`
	Pending        int             `json:"pending"`
	CompletionRate decimal.Decimal `json:"completion_rate"`
}

// CreditCardSummary reports card purchases and payments up to a date.
type CreditCardSummary struct {
	AsOf              string          `json:"as_of"`
	TotalTransactions int             `json:"total_transactions"`
	TotalPurchases    decimal.Decimal `json:"total_purchases"`
	TotalPayments     decimal.Decimal `json:"total_payments"`
	NetBalanceChange  decimal.Decimal `json:"net_balance_change"`
	PurchaseCount     int             `json:"purchase_count"`
	PaymentCount      int             `json:"payment_count"`
	CurrentCycle      CurrentCycle    `json:"current_cycle"`
	Receipts          CardReceipts    `json:"receipts"`
}

// ClassificationStatus measures how much of the ledger is classified.
type ClassificationStatus struct {
	Total             int                    `json:"total_transactions"`
	Classified        int                    `json:"classified"`
	Unclassified      int                    `json:"unclassified"`
	NeedsReview       int                    `json:"needs_review"`
	PercentClassified decimal.Decimal        `json:"classification_percentage"`
	ByMethod          map[string]int         `json:"by_method"`
	ByCategory        map[model.Category]int `json:"by_category"`
}

// Dashboard computes the overview for w. Reconciliation and the card
// summary are evaluated as of the window's end over every record given.
func (c *Calculator) Dashboard(recs []model.TransactionRecord, w Window) Dashboard {
	in := classifiedIn(recs, w)

	var k KPIs
	k.Revenue = sumWhere(in, model.CategoryRevenue, false)
	k.OperatingExpenses = sumWhere(in, model.CategoryOperatingExpense, true)
	k.PayrollExpenses = sumWhere(in, model.CategoryPayrollExpense, true)
	k.TaxPayments = sumWhere(in, model.CategoryTaxPayment, true)
	k.BankFees = sumWhere(in, model.CategoryBankFee, true)
	k.TotalExpenses = k.OperatingExpenses.Add(k.PayrollExpenses).Add(k.TaxPayments).Add(k.BankFees)
	k.NetCashFlow = k.Revenue.Sub(k.TotalExpenses)
	k.ExpenseRatio = percentOf(k.TotalExpenses, k.Revenue)
	k.ProfitMargin = percentOf(k.NetCashFlow, k.Revenue)

	d := Dashboard{
		Period:         w.Period(),
		KPIs:           k,
		Accounts:       []AccountSummary{},
		Reconciliation: reconcile.StatusOf(recs, w.End),
		Classification: ClassificationStatusOf(recs),
		CreditCard:     c.CreditCard(recs, w.End),
		LastUpdated:    c.Clock.Now().UTC(),
	}
	for _, a := range c.Accounts.All() {
		d.Accounts = append(d.Accounts, c.summarize(a, recs, w))
	}
	return d
}

// Account summarises one configured account over w.
func (c *Calculator) Account(name string, recs []model.TransactionRecord, w Window) (AccountSummary, error) {
	a, ok := c.Accounts.Get(name)
	if !ok {
		return AccountSummary{}, fmt.Errorf("%w: %q", ErrUnknownAccount, name)
	}
	return c.summarize(a, recs, w), nil
}

func (c *Calculator) summarize(a model.Account, recs []model.TransactionRecord, w Window) AccountSummary {
	var mine []model.TransactionRecord
	for _, r := range classifiedIn(recs, w) {
		if r.AccountName == a.Name {
			mine = append(mine, r)
		}
	}

	s := AccountSummary{
		AccountName: a.Name,
		Role:        a.Role,
		Type:        a.Type,
		LedgerBase:  a.LedgerBase,
		Period:      w.Period(),
		Totals:      totalsOf(mine),
		Categories:  categoryBreakdown(mine),
		Months:      []MonthTotal{},
		Recent:      recent(mine, recentLimit),
	}
	for _, m := range w.Months() {
		var month []model.TransactionRecord
		for _, r := range mine {
			if m.Contains(r.Date) {
				month = append(month, r)
			}
		}
		s.Months = append(s.Months, MonthTotal{
			Month:  id.MonthOf(m.Start),
			Label:  m.Start.Format("January 2006"),
			Totals: totalsOf(month),
		})
	}
	return s
}

// Tax summarises deductible spending over w. Receipts.Pending equals
// Receipts.Required.
func (c *Calculator) Tax(recs []model.TransactionRecord, w Window) TaxSummary {
	s := TaxSummary{
		Period:          w.Period(),
		TotalDeductible: decimal.Zero,
		Categories:      []TaxCategoryTotal{},
	}
	idx := map[string]int{}
	for _, r := range classifiedIn(recs, w) {
		if !r.Class.IsTaxDeductible {
			continue
		}
		cat := r.Class.TaxCategory
		if cat == "" {
			cat = uncategorizedTax
		}
		i, ok := idx[cat]
		if !ok {
			i = len(s.Categories)
			idx[cat] = i
			s.Categories = append(s.Categories, TaxCategoryTotal{TaxCategory: cat, Total: decimal.Zero})
		}
		tc := &s.Categories[i]
		abs := r.Amount.Abs()
		tc.Total = tc.Total.Add(abs)
		tc.Count++
		s.TotalDeductible = s.TotalDeductible.Add(abs)
		s.Count++

		switch r.Class.ReceiptStatus {
		case model.ReceiptRequired:
			tc.ReceiptsRequired++
			s.Receipts.Required++
		case model.ReceiptReceived:
			tc.ReceiptsReceived++
			s.Receipts.Received++
		}
	}
	s.Receipts.Pending = s.Receipts.Required
	sort.Slice(s.Categories, func(i, j int) bool {
		return s.Categories[i].TaxCategory < s.Categories[j].TaxCategory
	})
	return s
}

// CreditCard summarises classified card activity dated on or before asOf.
// Receipts count every purchase that needs one; pending is what is still
// outstanding.
func (c *Calculator) CreditCard(recs []model.TransactionRecord, asOf time.Time) CreditCardSummary {
	asOf = clock.Date(asOf)
	info := c.Cycle.For(asOf)
	s := CreditCardSummary{
		AsOf:             asOf.Format(DateLayout),
		TotalPurchases:   decimal.Zero,
		TotalPayments:    decimal.Zero,
		NetBalanceChange: decimal.Zero,
		CurrentCycle: CurrentCycle{
			CutDate:      info.CutDate.Format(DateLayout),
			DueDate:      info.DueDate.Format(DateLayout),
			NextCutDate:  info.NextCutDate.Format(DateLayout),
			DaysUntilDue: info.DaysUntilDue,
			Purchases:    decimal.Zero,
		},
	}

	for _, r := range recs {
		if r.Class == nil || !r.Class.IsCreditCardTransaction || clock.Date(r.Date).After(asOf) {
			continue
		}
		s.TotalTransactions++
		inCycle := !clock.Date(r.Date).Before(info.CutDate)
		if inCycle {
			s.CurrentCycle.Transactions++
		}

		switch r.Amount.Sign() {
		case -1:
			abs := r.Amount.Abs()
			s.TotalPurchases = s.TotalPurchases.Add(abs)
			s.PurchaseCount++
			if inCycle {
				s.CurrentCycle.Purchases = s.CurrentCycle.Purchases.Add(abs)
			}
			if r.Class.RequiresReceipt {
				s.Receipts.Required++
				if r.Class.ReceiptStatus == model.ReceiptReceived {
					s.Receipts.Received++
				}
			}
		case 1:
			s.TotalPayments = s.TotalPayments.Add(r.Amount)
			s.PaymentCount++
		}
	}

	s.NetBalanceChange = s.TotalPayments.Sub(s.TotalPurchases)
	s.Receipts.Pending = s.Receipts.Required - s.Receipts.Received
	s.Receipts.CompletionRate = hundred
	if s.Receipts.Required > 0 {
		s.Receipts.CompletionRate = decimal.NewFromInt(int64(s.Receipts.Received)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(s.Receipts.Required))).
			Round(1)
	}
	return s
}

// ClassificationStatusOf counts classified, unclassified and flagged records.
func ClassificationStatusOf(recs []model.TransactionRecord) ClassificationStatus {
	s := ClassificationStatus{
		PercentClassified: decimal.Zero,
		ByMethod:          map[string]int{},
		ByCategory:        map[model.Category]int{},
	}
	for _, r := range recs {
		s.Total++
		if r.NeedsReview {
			s.NeedsReview++
		}
		if !r.Class.Complete() {
			s.Unclassified++
			continue
		}
		s.Classified++
		s.ByMethod[r.Class.Method]++
		s.ByCategory[r.Class.Category]++
	}
	if s.Total > 0 {
		s.PercentClassified = decimal.NewFromInt(int64(s.Classified)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(s.Total))).
			Round(1)
	}
	return s
}

func classifiedIn(recs []model.TransactionRecord, w Window) []model.TransactionRecord {
	var out []model.TransactionRecord
	for _, r := range recs {
		if r.Class.Complete() && w.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

func sumWhere(recs []model.TransactionRecord, cat model.Category, abs bool) decimal.Decimal {
	total := decimal.Zero
	for _, r := range recs {
		if r.Class.Category != cat {
			continue
		}
		if abs {
			total = total.Add(r.Amount.Abs())
		} else {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// percentOf returns part/whole*100 rounded to one decimal, or 0 when whole
// is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(1)
}

func totalsOf(recs []model.TransactionRecord) Totals {
	t := Totals{Positive: decimal.Zero, Negative: decimal.Zero}
	for _, r := range recs {
		switch r.Amount.Sign() {
		case 1:
			t.Positive = t.Positive.Add(r.Amount)
		case -1:
			t.Negative = t.Negative.Add(r.Amount.Abs())
		}
		t.Count++
	}
	t.Net = t.Positive.Sub(t.Negative)
	return t
}

func categoryBreakdown(recs []model.TransactionRecord) []CategoryTotal {
	idx := map[model.Category]int{}
	out := []CategoryTotal{}
	for _, r := range recs {
		i, ok := idx[r.Class.Category]
		if !ok {
			i = len(out)
			idx[r.Class.Category] = i
			out = append(out, CategoryTotal{Category: r.Class.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(r.Amount)
		out[i].Count++
	}
	for i := range out {
		out[i].Average = out[i].Total.Div(decimal.NewFromInt(int64(out[i].Count))).Round(2)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func recent(recs []model.TransactionRecord, n int) []RecentRecord {
	sorted := make([]model.TransactionRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.After(sorted[j].Date)
		}
		return sorted[i].ID > sorted[j].ID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]RecentRecord, 0, len(sorted))
	for _, r := range sorted {
		desc := r.Description
		if runes := []rune(desc); len(runes) > descriptionLength {
			desc = string(runes[:descriptionLength]) + "..."
		}
		out = append(out, RecentRecord{
			ID:          r.ID,
			Date:        r.Date.Format(DateLayout),
			Description: desc,
			Amount:      r.Amount,
			Category:    r.Class.Category,
			Confidence:  r.Class.Confidence,
			Merchant:    r.Class.Merchant,
		})
	}
	return out
}
