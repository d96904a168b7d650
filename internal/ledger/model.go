package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/approvals"
	"github.com/meridian-books/meridian/internal/money"
)

// BalanceChange is an immutable ledger fact: one account's balance delta
// from one transaction line. Created only by the posting service, one row
// per line plus one compensating row per original row on reversal.
type BalanceChange struct {
	ID              uuid.UUID
	AccountID       uuid.UUID
	TransactionID   uuid.UUID
	LineID          uuid.UUID
	LineType        money.LineType
	Amount          money.Cents
	PreviousBalance money.Cents
	NormalBalance   money.NormalBalance
	Delta           money.Cents
	ResultingBalance money.Cents
	Reversal        bool
	CreatedAt       time.Time
}

// Outcome distinguishes the control outcomes of Post and Reverse.
type Outcome string

const (
	// OutcomePosted means balance changes were persisted.
	OutcomePosted Outcome = "POSTED"
	// OutcomeReversed means compensating changes were persisted.
	OutcomeReversed Outcome = "REVERSED"
	// OutcomeApprovalPending means the operation was deliberately
	// suspended and an approval reference handed back. Not a failure.
	OutcomeApprovalPending Outcome = "APPROVAL_PENDING"
)

// PostingResult is the success payload of Post.
type PostingResult struct {
	Outcome       Outcome
	TransactionID uuid.UUID
	Changes       []BalanceChange
	Approval      *approvals.Approval
}

// ReversalResult is the success payload of Reverse.
type ReversalResult struct {
	Outcome       Outcome
	TransactionID uuid.UUID
	Changes       []BalanceChange
	Approval      *approvals.Approval
}
