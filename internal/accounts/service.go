package accounts

import (
	"strings"

	"github.com/cleared-dev/cashflow/internal/model"
)

// Service resolves statement account names to configured accounts.
// It is built once and never mutated, so lookups are safe from any goroutine.
type Service struct {
	accounts []model.Account
	byName   map[string]model.Account
}

// NewService creates a Service from a slice of accounts. Order matters:
// Resolve tries match substrings in account order.
func NewService(accounts []model.Account) *Service {
	byName := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byName[strings.ToLower(a.Name)] = a
	}
	return &Service{accounts: accounts, byName: byName}
}

// All returns all accounts.
func (s *Service) All() []model.Account {
	return s.accounts
}

// Get returns an account by its exact configured name (case-insensitive).
func (s *Service) Get(name string) (model.Account, bool) {
	a, ok := s.byName[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Resolve finds the account a statement name refers to. An exact name wins;
// otherwise the first account with a match substring contained in name.
func (s *Service) Resolve(name string) (model.Account, bool) {
	if a, ok := s.Get(name); ok {
		return a, true
	}
	lower := strings.ToLower(name)
	for _, a := range s.accounts {
		for _, m := range a.Match {
			if m != "" && strings.Contains(lower, strings.ToLower(m)) {
				return a, true
			}
		}
	}
	return model.Account{}, false
}

// Role returns the role for a statement account name, or RoleUnknown.
func (s *Service) Role(name string) model.AccountRole {
	if a, ok := s.Resolve(name); ok {
		return a.Role
	}
	return model.RoleUnknown
}

// ByRole returns all accounts with the given role.
func (s *Service) ByRole(role model.AccountRole) []model.Account {
	var result []model.Account
	for _, a := range s.accounts {
		if a.Role == role {
			result = append(result, a)
		}
	}
	return result
}
