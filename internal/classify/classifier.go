// Package classify assigns business categories to bank statement records.
//
// A Classifier is built once from immutable rule tables and an account
// directory. Classify is a pure function of the record, so running it twice
// over the same record yields the same result.
package classify

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/cashflow/internal/accounts"
	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/cycle"
	"github.com/cleared-dev/cashflow/internal/model"
)

// ErrMalformedRecord marks a record the classifier cannot interpret.
var ErrMalformedRecord = errors.New("malformed record")

// Ledger codes.
const (
	LedgerRevenue     = "4000"
	LedgerTransfer    = "1100"
	LedgerTax         = "6300"
	LedgerBankFee     = "6100"
	LedgerOperating   = "6000"
	LedgerPayroll     = "6200"
	LedgerCardPayment = "2100"
)

// Tax categories.
const (
	TaxCategoryTaxPayment = "TAX_PAYMENT"
	TaxCategoryPayroll    = "PAYROLL"
)

// Fixed per-rule confidence scores.
var (
	confRevenue        = decimal.RequireFromString("0.95")
	confToBillPay      = decimal.RequireFromString("0.92")
	confToPayroll      = decimal.RequireFromString("0.90")
	confTransferIn     = decimal.RequireFromString("0.90")
	confTax            = decimal.RequireFromString("0.88")
	confBankFee        = decimal.RequireFromString("0.70")
	confVendorPayment  = decimal.RequireFromString("0.85")
	confPayroll        = decimal.RequireFromString("0.88")
	confCardPayment    = decimal.RequireFromString("0.92")
	confCardPurchase   = decimal.RequireFromString("0.80")
	confUnknownAccount = decimal.RequireFromString("0.1")
)

const minMerchantName = 3

// Rules are the pattern tables driving classification. Patterns are
// regular expressions matched case-insensitively; tax keywords are plain
// substrings.
type Rules struct {
	TransferToBillPay    []string
	TransferToPayroll    []string
	TaxKeywords          []string
	MerchantPatterns     []string
	TransferTokenPattern string
}

// RulesFromConfig copies the rules section of cashflow.yaml.
func RulesFromConfig(c config.RulesConfig) Rules {
	return Rules{
		TransferToBillPay:    c.TransferToBillPay,
		TransferToPayroll:    c.TransferToPayroll,
		TaxKeywords:          c.TaxKeywords,
		MerchantPatterns:     c.MerchantPatterns,
		TransferTokenPattern: c.TransferTokenPattern,
	}
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() Rules {
	return RulesFromConfig(config.DefaultRules())
}

// Classifier applies the per-account rules. It holds no mutable state.
type Classifier struct {
	accounts *accounts.Service
	cycle    cycle.Calculator

	toBillPay []*regexp.Regexp
	toPayroll []*regexp.Regexp
	merchant  []*regexp.Regexp
	token     *regexp.Regexp
	taxWords  []string
}

// New compiles rules into a Classifier.
func New(rules Rules, dir *accounts.Service, cal cycle.Calculator) (*Classifier, error) {
	if dir == nil {
		return nil, errors.New("classifier needs an account directory")
	}
	c := &Classifier{accounts: dir, cycle: cal}

	var err error
	if c.toBillPay, err = compileAll(rules.TransferToBillPay); err != nil {
		return nil, fmt.Errorf("transfer_to_bill_pay: %w", err)
	}
	if c.toPayroll, err = compileAll(rules.TransferToPayroll); err != nil {
		return nil, fmt.Errorf("transfer_to_payroll: %w", err)
	}
	if c.merchant, err = compileAll(rules.MerchantPatterns); err != nil {
		return nil, fmt.Errorf("merchant_patterns: %w", err)
	}
	if rules.TransferTokenPattern != "" {
		if c.token, err = compile(rules.TransferTokenPattern); err != nil {
			return nil, fmt.Errorf("transfer_token_pattern: %w", err)
		}
		if c.token.NumSubexp() < 1 {
			return nil, fmt.Errorf("transfer_token_pattern %q: needs a capture group", rules.TransferTokenPattern)
		}
	}
	for _, w := range rules.TaxKeywords {
		if w = strings.TrimSpace(w); w != "" {
			c.taxWords = append(c.taxWords, strings.ToUpper(w))
		}
	}
	return c, nil
}

func compile(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", p, err)
	}
	return re, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Classify computes the classification for one record. The record itself is
// not modified; callers apply the result with ClassificationResult.Apply.
//
// A record on an unknown account is not an error: the result carries no
// category, a 0.1 confidence and a review flag.
func (c *Classifier) Classify(rec model.TransactionRecord) (model.ClassificationResult, error) {
	if rec.Date.IsZero() {
		return model.ClassificationResult{}, fmt.Errorf("%w: record %s: missing transaction date", ErrMalformedRecord, rec.ID)
	}
	if strings.TrimSpace(rec.AccountName) == "" {
		return model.ClassificationResult{}, fmt.Errorf("%w: record %s: missing account name", ErrMalformedRecord, rec.ID)
	}

	res := model.ClassificationResult{RecordID: rec.ID, Method: model.MethodRuleBased}

	role := rec.AccountRole
	if role == "" {
		role = c.accounts.Role(rec.AccountName)
	}

	var class *model.Classification
	switch role {
	case model.RoleRevenue:
		class = c.revenue(rec, &res)
	case model.RoleBillPay:
		class = c.billPay(rec, &res)
	case model.RolePayroll:
		class = c.payroll(rec, &res)
	case model.RoleCreditCard:
		class = c.creditCard(rec, &res)
	default:
		res.NeedsReview = true
		res.ReviewNote = "unknown account: " + rec.AccountName
		res.Confidence = confUnknownAccount
		res.Notes = append(res.Notes, res.ReviewNote)
		return res, nil
	}

	class.Method = model.MethodRuleBased
	class.Confidence = res.Confidence
	if tok := c.transferToken(rec.Description); tok != "" {
		class.TransferToken = tok
		res.Notes = append(res.Notes, "transfer reference "+tok)
	}
	res.Class = class

	if errs := ValidateRecord(res.Apply(rec), c.accounts); len(errs) > 0 {
		return model.ClassificationResult{}, errs[0]
	}
	return res, nil
}

func (c *Classifier) revenue(rec model.TransactionRecord, res *model.ClassificationResult) *model.Classification {
	if rec.Amount.IsPositive() {
		res.Confidence = confRevenue
		res.Notes = append(res.Notes, "revenue account income")
		cl := &model.Classification{
			Category:   model.CategoryRevenue,
			Subtype:    model.SubtypeDeposit,
			LedgerCode: LedgerRevenue,
			Merchant:   c.ExtractMerchant(rec.Description),
		}
		if cl.Merchant != "" {
			res.Notes = append(res.Notes, "customer identified: "+cl.Merchant)
		}
		return cl
	}

	source := c.accountName(rec.AccountName)
	switch {
	case matchAny(c.toBillPay, rec.Description):
		res.Confidence = confToBillPay
		res.Notes = append(res.Notes, "internal transfer to bill pay account")
		return c.transferOut(source, c.firstOfRole(model.RoleBillPay))
	case matchAny(c.toPayroll, rec.Description):
		res.Confidence = confToPayroll
		res.Notes = append(res.Notes, "internal transfer to payroll account")
		return c.transferOut(source, c.firstOfRole(model.RolePayroll))
	case c.isTax(rec.Description):
		res.Confidence = confTax
		res.Notes = append(res.Notes, "tax payment")
		return &model.Classification{
			Category:        model.CategoryTaxPayment,
			Subtype:         model.SubtypeTax,
			LedgerCode:      LedgerTax,
			TaxCategory:     TaxCategoryTaxPayment,
			IsTaxDeductible: true,
		}
	default:
		res.Confidence = confBankFee
		res.NeedsReview = true
		res.ReviewNote = "possible bank fee"
		res.Notes = append(res.Notes, "possible bank fee, needs review")
		return &model.Classification{
			Category:   model.CategoryBankFee,
			Subtype:    model.SubtypeFee,
			LedgerCode: LedgerBankFee,
		}
	}
}

func (c *Classifier) transferOut(source, target string) *model.Classification {
	return &model.Classification{
		Category:           model.CategoryInternalTransfer,
		Subtype:            model.SubtypeTransferOut,
		LedgerCode:         LedgerTransfer,
		IsInternalTransfer: true,
		SourceAccount:      source,
		TargetAccount:      target,
	}
}

func (c *Classifier) transferIn(target string) *model.Classification {
	return &model.Classification{
		Category:           model.CategoryInternalTransfer,
		Subtype:            model.SubtypeTransferIn,
		LedgerCode:         LedgerTransfer,
		IsInternalTransfer: true,
		SourceAccount:      c.firstOfRole(model.RoleRevenue),
		TargetAccount:      target,
	}
}

func (c *Classifier) billPay(rec model.TransactionRecord, res *model.ClassificationResult) *model.Classification {
	if rec.Amount.IsPositive() {
		res.Confidence = confTransferIn
		res.Notes = append(res.Notes, "transfer in from revenue account")
		return c.transferIn(c.accountName(rec.AccountName))
	}

	res.Confidence = confVendorPayment
	res.Notes = append(res.Notes, "vendor payment, receipt required")
	cl := &model.Classification{
		Category:        model.CategoryOperatingExpense,
		Subtype:         model.SubtypeVendorPayment,
		LedgerCode:      LedgerOperating,
		IsTaxDeductible: true,
		RequiresReceipt: true,
		ReceiptStatus:   model.ReceiptRequired,
		Merchant:        c.ExtractMerchant(rec.Description),
	}
	if cl.Merchant != "" {
		res.Notes = append(res.Notes, "vendor identified: "+cl.Merchant)
	}
	return cl
}

func (c *Classifier) payroll(rec model.TransactionRecord, res *model.ClassificationResult) *model.Classification {
	if rec.Amount.IsPositive() {
		res.Confidence = confTransferIn
		res.Notes = append(res.Notes, "transfer in from revenue account")
		return c.transferIn(c.accountName(rec.AccountName))
	}

	res.Confidence = confPayroll
	res.Notes = append(res.Notes, "payroll expense")
	return &model.Classification{
		Category:        model.CategoryPayrollExpense,
		Subtype:         model.SubtypePayroll,
		LedgerCode:      LedgerPayroll,
		TaxCategory:     TaxCategoryPayroll,
		IsTaxDeductible: true,
	}
}

func (c *Classifier) creditCard(rec model.TransactionRecord, res *model.ClassificationResult) *model.Classification {
	info := c.cycle.For(rec.Date)
	cl := &model.Classification{
		IsCreditCardTransaction: true,
		CycleCutDate:            info.CutDate,
		DueDate:                 info.DueDate,
	}

	if rec.Amount.IsPositive() {
		res.Confidence = confCardPayment
		res.Notes = append(res.Notes, "credit card payment received")
		cl.Category = model.CategoryCreditCardPayment
		cl.Subtype = model.SubtypePayment
		cl.LedgerCode = LedgerCardPayment
		cl.IsCreditCardPayment = true
		return cl
	}

	res.Confidence = confCardPurchase
	res.Notes = append(res.Notes, "card purchase, receipt required")
	cl.Category = model.CategoryOperatingExpense
	cl.Subtype = model.SubtypePurchase
	cl.LedgerCode = LedgerOperating
	cl.IsTaxDeductible = true
	cl.RequiresReceipt = true
	cl.ReceiptStatus = model.ReceiptRequired
	cl.Merchant = c.ExtractMerchant(rec.Description)
	return cl
}

// ExtractMerchant returns the first usable merchant or vendor name found by
// the merchant patterns, or "" when none qualifies.
func (c *Classifier) ExtractMerchant(desc string) string {
	for _, re := range c.merchant {
		m := re.FindStringSubmatch(desc)
		if len(m) < 2 {
			continue
		}
		name := normalizeName(m[1])
		if len([]rune(name)) >= minMerchantName && !allDigits(name) {
			return name
		}
	}
	return ""
}

func (c *Classifier) transferToken(desc string) string {
	if c.token == nil {
		return ""
	}
	m := c.token.FindStringSubmatch(desc)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func (c *Classifier) isTax(desc string) bool {
	upper := strings.ToUpper(desc)
	for _, w := range c.taxWords {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}

// accountName maps a statement account name to its configured name.
func (c *Classifier) accountName(name string) string {
	if a, ok := c.accounts.Resolve(name); ok {
		return a.Name
	}
	return name
}

func (c *Classifier) firstOfRole(role model.AccountRole) string {
	if accts := c.accounts.ByRole(role); len(accts) > 0 {
		return accts[0].Name
	}
	return ""
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func normalizeName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " .,-'&*#")
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != ' ' {
			return false
		}
	}
	return true
}
