package approvals

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/transactions"
)

// ProjectedBalance is one account's predicted posting effect, computed by
// the ledger service before any state changes.
type ProjectedBalance struct {
	AccountID uuid.UUID
	Type      money.AccountType
	Current   money.Cents
	Delta     money.Cents
	Projected money.Cents
}

// Requirement is the outcome of evaluating whether a transaction needs
// sign-off: at most one, the highest-priority match.
type Requirement struct {
	Type   Type
	Reason Reason
}

// EngineConfig is the company posting policy the engine evaluates against.
type EngineConfig struct {
	// HighValueThreshold in cents; transactions at or above it need
	// approval.
	HighValueThreshold money.Cents
	// BackdateLimitDays is the number of days a transaction may be dated
	// in the past without approval.
	BackdateLimitDays int
	// AllowNegative lists account classifications permitted to go
	// negative without triggering approval. Credit-normal types routinely
	// swing negative on interim balances; contra-account handling is
	// enabled per company by extending this set.
	AllowNegative map[money.AccountType]bool
}

// DefaultAllowNegative permits credit-normal classifications to carry
// negative balances without review.
func DefaultAllowNegative() map[money.AccountType]bool {
	return map[money.AccountType]bool{
		money.AccountTypeLiability: true,
		money.AccountTypeEquity:    true,
		money.AccountTypeRevenue:   true,
	}
}

// RequirementEngine decides whether a transaction requires approval, and
// for what reason.
type RequirementEngine struct {
	cfg EngineConfig
}

// NewRequirementEngine constructs the engine.
func NewRequirementEngine(cfg EngineConfig) *RequirementEngine {
	if cfg.AllowNegative == nil {
		cfg.AllowNegative = DefaultAllowNegative()
	}
	return &RequirementEngine{cfg: cfg}
}

// Evaluate applies the rules in priority order; the first match governs
// and every match is recorded in the reason details as context.
//
//	1. NegativeEquity: a projected balance goes negative where negative
//	   is not valid for the account type.
//	2. HighValue: amount at or above the configured threshold.
//	3. Backdated: dated further back than the configured window.
//
// A nil requirement means the transaction proceeds straight to posting.
func (e *RequirementEngine) Evaluate(tx transactions.Transaction, projections []ProjectedBalance, backdatedDays int) *Requirement {
	var matches []Type

	var negative []ProjectedBalance
	for _, p := range projections {
		if p.Projected < 0 && !e.cfg.AllowNegative[p.Type] {
			negative = append(negative, p)
		}
	}
	if len(negative) > 0 {
		matches = append(matches, TypeNegativeEquity)
	}
	highValue := e.cfg.HighValueThreshold > 0 && tx.Amount() >= e.cfg.HighValueThreshold
	if highValue {
		matches = append(matches, TypeHighValue)
	}
	backdated := backdatedDays > e.cfg.BackdateLimitDays
	if backdated {
		matches = append(matches, TypeBackdated)
	}

	if len(matches) == 0 {
		return nil
	}

	details := map[string]any{"matched_rules": typeNames(matches)}
	switch matches[0] {
	case TypeNegativeEquity:
		projected := make([]map[string]any, 0, len(negative))
		for _, p := range negative {
			projected = append(projected, map[string]any{
				"account_id":        p.AccountID.String(),
				"account_type":      string(p.Type),
				"current_balance":   int64(p.Current),
				"projected_balance": int64(p.Projected),
			})
		}
		details["accounts"] = projected
		return &Requirement{
			Type: TypeNegativeEquity,
			Reason: Reason{
				Text: fmt.Sprintf("posting would drive %d account(s) negative where negative balances are not valid",
					len(negative)),
				Details: details,
			},
		}
	case TypeHighValue:
		details["amount_cents"] = int64(tx.Amount())
		details["threshold_cents"] = int64(e.cfg.HighValueThreshold)
		return &Requirement{
			Type: TypeHighValue,
			Reason: Reason{
				Text: fmt.Sprintf("transaction amount %s meets the high-value threshold %s",
					tx.Amount(), e.cfg.HighValueThreshold),
				Details: details,
			},
		}
	default:
		details["backdated_days"] = backdatedDays
		details["limit_days"] = e.cfg.BackdateLimitDays
		return &Requirement{
			Type: TypeBackdated,
			Reason: Reason{
				Text: fmt.Sprintf("transaction dated %d days back exceeds the %d-day window",
					backdatedDays, e.cfg.BackdateLimitDays),
				Details: details,
			},
		}
	}
}

// VoidRequirement builds the requirement for reversing a posted
// transaction. Voids always require approval regardless of amount.
func VoidRequirement(tx transactions.Transaction, reason string) Requirement {
	return Requirement{
		Type: TypeVoid,
		Reason: Reason{
			Text: fmt.Sprintf("void of posted transaction %s requires approval: %s", tx.Reference, reason),
			Details: map[string]any{
				"transaction_id": tx.ID.String(),
				"amount_cents":   int64(tx.Amount()),
			},
		},
	}
}

func typeNames(types []Type) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}
