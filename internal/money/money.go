// Package money defines the monetary primitives of the posting core. All
// amounts are integer cents; no floating point enters the posting path.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/meridian-books/meridian/internal/shared"
)

// Cents is a signed monetary amount in the smallest currency unit.
type Cents int64

// Decimal renders the amount as a two-place decimal value.
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount as a plain decimal string, e.g. "1234.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Abs returns the magnitude of the amount.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// ParseCents converts a decimal string such as "1234.50" into cents.
// Sub-cent precision is rejected rather than truncated.
func ParseCents(s string) (Cents, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, shared.Wrap(shared.KindValidationFailed, "money: invalid amount", err)
	}
	scaled := d.Shift(2)
	if !scaled.IsInteger() {
		return 0, shared.Ef(shared.KindValidationFailed, "money: amount %s has sub-cent precision", s)
	}
	return Cents(scaled.IntPart()), nil
}

// ValidateCurrency checks that the tag is a well-formed ISO 4217 code.
// The core carries the tag opaquely and never converts between currencies.
func ValidateCurrency(tag string) error {
	if _, err := currency.ParseISO(tag); err != nil {
		return shared.Ef(shared.KindValidationFailed, "money: unknown currency %q", tag)
	}
	return nil
}

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the account type is one of the five categories.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Side is the debit/credit axis shared by normal balances and lines.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalBalance is the side on which an account type naturally increases.
type NormalBalance = Side

// LineType is whether a transaction line is a debit or a credit entry.
type LineType = Side

// NormalBalanceFor maps an account type to its normal balance. The mapping
// is an accounting axiom, total and static, never read from config.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return SideCredit
	}
	panic(fmt.Sprintf("money: unknown account type %q", t))
}

// AccountTypeFromCode derives the account type from the leading digit of
// an account code: 1 asset, 2 liability, 3 equity, 4 revenue, 5 expense.
func AccountTypeFromCode(code string) (AccountType, error) {
	if code == "" {
		return "", shared.E(shared.KindValidationFailed, "money: account code required")
	}
	switch code[0] {
	case '1':
		return AccountTypeAsset, nil
	case '2':
		return AccountTypeLiability, nil
	case '3':
		return AccountTypeEquity, nil
	case '4':
		return AccountTypeRevenue, nil
	case '5':
		return AccountTypeExpense, nil
	}
	return "", shared.Ef(shared.KindValidationFailed, "money: account code %q has no type prefix", code)
}
