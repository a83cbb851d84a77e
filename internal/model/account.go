package model

// AccountRole is the business role of a bank account. It is resolved once,
// when a statement is imported, and drives which classification rules apply.
type AccountRole string

const (
	RoleRevenue    AccountRole = "revenue"
	RoleBillPay    AccountRole = "bill_pay"
	RolePayroll    AccountRole = "payroll"
	RoleCreditCard AccountRole = "credit_card"
	RoleUnknown    AccountRole = "unknown"
)

// AccountType is the bank product behind an account.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeSavings    AccountType = "savings"
)

// Account describes one configured bank account.
type Account struct {
	Name       string
	Role       AccountRole
	Type       AccountType
	LastFour   string
	LedgerBase string   // ledger code family, e.g. "4000"
	Match      []string // substrings identifying statement lines for this account
}
