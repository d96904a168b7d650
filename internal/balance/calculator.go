// Package balance holds the pure calculation pieces of the posting core:
// signed delta computation from normal-balance semantics and the
// accounting-equation check.
package balance

import "github.com/meridian-books/meridian/internal/money"

// Calculate maps (normal balance, line type, amount) to a signed delta.
// The amount is pre-validated non-negative by the caller.
//
//	normal=DEBIT  line=DEBIT   +amount
//	normal=DEBIT  line=CREDIT  -amount
//	normal=CREDIT line=CREDIT  +amount
//	normal=CREDIT line=DEBIT   -amount
func Calculate(normal money.NormalBalance, line money.LineType, amount money.Cents) money.Cents {
	if normal == line {
		return amount
	}
	return -amount
}

// ProjectBalance applies a delta to a previous balance.
func ProjectBalance(previous, delta money.Cents) money.Cents {
	return previous + delta
}
