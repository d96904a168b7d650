package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/shared"
)

// Account models a chart of accounts node. The running balance is integer
// cents and only the ledger posting service moves it.
type Account struct {
	ID        uuid.UUID
	Code      string
	Name      string
	Type      money.AccountType
	CompanyID uuid.UUID
	ParentID  *uuid.UUID
	IsActive  bool
	Balance   money.Cents
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New builds an account from code and company. The account type, and with
// it the normal balance, is fixed by the code at creation and never
// changes afterwards.
func New(code, name string, companyID uuid.UUID) (Account, error) {
	code = strings.TrimSpace(code)
	accountType, err := money.AccountTypeFromCode(code)
	if err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(name) == "" {
		return Account{}, shared.E(shared.KindValidationFailed, "accounts: name required")
	}
	if companyID == uuid.Nil {
		return Account{}, shared.E(shared.KindValidationFailed, "accounts: company required")
	}
	return Account{
		ID:        uuid.New(),
		Code:      code,
		Name:      name,
		Type:      accountType,
		CompanyID: companyID,
		IsActive:  true,
	}, nil
}

// NormalBalance returns the side on which this account naturally
// increases.
func (a Account) NormalBalance() money.NormalBalance {
	return money.NormalBalanceFor(a.Type)
}

// Activate marks the account usable for posting.
func (a *Account) Activate() { a.IsActive = true }

// Deactivate blocks the account from new postings. Accounts are never
// physically deleted.
func (a *Account) Deactivate() { a.IsActive = false }

// Rename changes the display name.
func (a *Account) Rename(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.E(shared.KindValidationFailed, "accounts: name required")
	}
	a.Name = name
	return nil
}

// Snapshot captures the mutable state for activity-log diffing.
func (a Account) Snapshot() map[string]any {
	return map[string]any{
		"code":      a.Code,
		"name":      a.Name,
		"type":      string(a.Type),
		"is_active": a.IsActive,
		"balance":   int64(a.Balance),
	}
}
