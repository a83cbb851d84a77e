package accounts

import (
	"fmt"

	"github.com/cleared-dev/cashflow/internal/config"
	"github.com/cleared-dev/cashflow/internal/model"
)

// FromConfig converts the accounts section of cashflow.yaml.
func FromConfig(cfgs []config.AccountConfig) ([]model.Account, error) {
	seen := make(map[string]bool, len(cfgs))
	out := make([]model.Account, 0, len(cfgs))
	for i, c := range cfgs {
		if c.Name == "" {
			return nil, fmt.Errorf("account %d: missing name", i+1)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("account %q: duplicate name", c.Name)
		}
		seen[c.Name] = true

		role := model.AccountRole(c.Role)
		switch role {
		case model.RoleRevenue, model.RoleBillPay, model.RolePayroll, model.RoleCreditCard:
		default:
			return nil, fmt.Errorf("account %q: unknown role %q", c.Name, c.Role)
		}

		typ := model.AccountType(c.Type)
		if typ == "" {
			typ = model.AccountTypeChecking
			if role == model.RoleCreditCard {
				typ = model.AccountTypeCreditCard
			}
		}

		match := c.Match
		if len(match) == 0 {
			match = []string{c.Name}
		}
		out = append(out, model.Account{
			Name:       c.Name,
			Role:       role,
			Type:       typ,
			LastFour:   c.LastFour,
			LedgerBase: c.LedgerBase,
			Match:      match,
		})
	}
	return out, nil
}

// Default returns the standard four-account setup.
func Default() *Service {
	accts, err := FromConfig(config.Default("").Accounts)
	if err != nil {
		panic(err)
	}
	return NewService(accts)
}
