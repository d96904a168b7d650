package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/accounts"
	"github.com/meridian-books/meridian/internal/shared"
)

// Check names reported in the validation fact.
const (
	CheckMinLines        = "min_lines"
	CheckPositiveAmounts = "positive_amounts"
	CheckBalancedSides   = "balanced_sides"
	CheckAccountsValid   = "accounts_valid"
	CheckBackdating      = "backdating"
	CheckCurrency        = "currency"
)

// CheckResult is the outcome of one validation check.
type CheckResult struct {
	Passed bool
	Detail string
}

// Validated is the fact produced by validation: per-check results, the
// overall verdict and whether posting must route through approval.
type Validated struct {
	TransactionID    uuid.UUID
	Valid            bool
	RequiresApproval bool
	BackdatedDays    int
	Checks           map[string]CheckResult
}

// CompanyStore resolves company posting policy owned outside this core.
type CompanyStore interface {
	FunctionalCurrency(ctx context.Context, companyID uuid.UUID) (string, error)
}

// Validator runs the ordered business checks on a proposed transaction.
type Validator struct {
	accounts         accounts.Repository
	companies        CompanyStore
	clock            shared.Clock
	dispatcher       shared.Dispatcher
	backdateLimitDay int
}

// NewValidator constructs a Validator. backdateLimitDays is the number of
// days a transaction may be dated in the past before requiring approval.
func NewValidator(accountRepo accounts.Repository, companies CompanyStore, clock shared.Clock, dispatcher shared.Dispatcher, backdateLimitDays int) *Validator {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Validator{
		accounts:         accountRepo,
		companies:        companies,
		clock:            clock,
		dispatcher:       dispatcher,
		backdateLimitDay: backdateLimitDays,
	}
}

// Validate runs checks in order. A failed fatal check short-circuits and
// renders the transaction invalid; a breached backdating limit does not
// reject, it routes the transaction to approval.
func (v *Validator) Validate(ctx context.Context, tx Transaction) (Validated, error) {
	result := Validated{
		TransactionID: tx.ID,
		Checks:        make(map[string]CheckResult),
	}

	fail := func(check, detail string) (Validated, error) {
		result.Checks[check] = CheckResult{Passed: false, Detail: detail}
		v.emit(ctx, tx, result)
		return result, shared.E(shared.KindValidationFailed, "transactions: "+detail)
	}
	pass := func(check string) {
		result.Checks[check] = CheckResult{Passed: true}
	}

	if len(tx.Lines) < 2 {
		return fail(CheckMinLines, "at least two lines required")
	}
	pass(CheckMinLines)

	for idx, line := range tx.Lines {
		if line.Amount <= 0 {
			return fail(CheckPositiveAmounts, fmt.Sprintf("line %d amount must be positive", idx))
		}
	}
	pass(CheckPositiveAmounts)

	if tx.DebitTotal() != tx.CreditTotal() {
		return fail(CheckBalancedSides, fmt.Sprintf(
			"debits %s do not equal credits %s", tx.DebitTotal(), tx.CreditTotal()))
	}
	pass(CheckBalancedSides)

	found, err := v.accounts.FindByIDs(ctx, tx.AccountIDs())
	if err != nil {
		return result, err
	}
	for _, id := range tx.AccountIDs() {
		account, ok := found[id]
		if !ok {
			return fail(CheckAccountsValid, fmt.Sprintf("account %s not found", id))
		}
		if account.CompanyID != tx.CompanyID {
			return fail(CheckAccountsValid, fmt.Sprintf("account %s belongs to another company", id))
		}
		if !account.IsActive {
			return fail(CheckAccountsValid, fmt.Sprintf("account %s is inactive", id))
		}
	}
	pass(CheckAccountsValid)

	if days := v.backdatedDays(tx); days > v.backdateLimitDay {
		result.BackdatedDays = days
		result.RequiresApproval = true
		result.Checks[CheckBackdating] = CheckResult{
			Passed: false,
			Detail: fmt.Sprintf("dated %d days back, limit %d; approval required", days, v.backdateLimitDay),
		}
	} else {
		pass(CheckBackdating)
	}

	functional, err := v.companies.FunctionalCurrency(ctx, tx.CompanyID)
	if err != nil {
		return result, err
	}
	if tx.Currency != functional {
		return fail(CheckCurrency, fmt.Sprintf(
			"currency %s does not match functional currency %s", tx.Currency, functional))
	}
	pass(CheckCurrency)

	result.Valid = true
	v.emit(ctx, tx, result)
	return result, nil
}

func (v *Validator) backdatedDays(tx Transaction) int {
	today := v.clock.Now().UTC().Truncate(24 * time.Hour)
	date := tx.Date.UTC().Truncate(24 * time.Hour)
	if !date.Before(today) {
		return 0
	}
	return int(today.Sub(date).Hours() / 24)
}

func (v *Validator) emit(ctx context.Context, tx Transaction, result Validated) {
	if v.dispatcher == nil {
		return
	}
	checks := make(map[string]any, len(result.Checks))
	for name, check := range result.Checks {
		checks[name] = check.Passed
	}
	v.dispatcher.Dispatch(ctx, shared.Event{
		Name:       shared.EventTransactionValidated,
		CompanyID:  tx.CompanyID,
		ActorID:    tx.CreatedBy,
		EntityType: "transaction",
		EntityID:   tx.ID.String(),
		At:         v.clock.Now(),
		Payload: map[string]any{
			"valid":             result.Valid,
			"requires_approval": result.RequiresApproval,
			"checks":            checks,
		},
	})
}
