package balance

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/money"
)

// EquationTolerance absorbs legitimate rounding from per-line cent
// truncation. Nothing larger passes.
const EquationTolerance = money.Cents(1)

// Summary aggregates account totals by type for a company at a point in
// time. It is derived, never persisted independently.
type Summary struct {
	CompanyID   uuid.UUID
	Assets      money.Cents
	Liabilities money.Cents
	Equity      money.Cents
	Revenue     money.Cents
	Expenses    money.Cents
	AsOf        time.Time
}

// NetIncome returns revenue minus expenses, signed.
func (s Summary) NetIncome() money.Cents {
	return s.Revenue - s.Expenses
}

// IsBalanced reports whether the accounting equation holds within the
// 1-cent tolerance.
func (s Summary) IsBalanced() bool {
	return Validate(s).Balanced
}

// Result is the outcome of an equation check.
type Result struct {
	Balanced       bool
	ImbalanceCents money.Cents
	NetIncomeCents money.Cents
}

// Validate checks Assets = Liabilities + Equity + netIncome. A net loss is
// clamped to zero for equation purposes; the raw signed value is reported
// separately as NetIncomeCents.
func Validate(s Summary) Result {
	net := s.NetIncome()
	clamped := net
	if clamped < 0 {
		clamped = 0
	}
	imbalance := s.Assets - (s.Liabilities + s.Equity + clamped)
	return Result{
		Balanced:       imbalance.Abs() <= EquationTolerance,
		ImbalanceCents: imbalance,
		NetIncomeCents: net,
	}
}

// ValidateWithChanges re-runs the equation check against the summary plus
// proposed per-type deltas, without mutating persisted state. Used
// pre-posting to predict whether a transaction would unbalance the books.
func ValidateWithChanges(s Summary, changes map[money.AccountType]money.Cents) Result {
	projected := s
	projected.Assets += changes[money.AccountTypeAsset]
	projected.Liabilities += changes[money.AccountTypeLiability]
	projected.Equity += changes[money.AccountTypeEquity]
	projected.Revenue += changes[money.AccountTypeRevenue]
	projected.Expenses += changes[money.AccountTypeExpense]
	return Validate(projected)
}
