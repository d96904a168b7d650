package transactions

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/money"
)

// Status enumerates transaction lifecycle values.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
	StatusVoided Status = "VOIDED"
)

// Line is one debit or credit entry belonging to exactly one transaction.
// Amounts are positive cents; the sign comes from the line type at
// posting time.
type Line struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	AccountID     uuid.UUID
	Type          money.LineType
	Amount        money.Cents
	Description   string
}

// Transaction is the aggregate root owning its lines exclusively.
type Transaction struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	CreatedBy   uuid.UUID
	Currency    string
	Description string
	Date        time.Time
	Status      Status
	Reference   string
	Lines       []Line
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DebitTotal sums the debit lines.
func (t Transaction) DebitTotal() money.Cents {
	return t.sideTotal(money.SideDebit)
}

// CreditTotal sums the credit lines.
func (t Transaction) CreditTotal() money.Cents {
	return t.sideTotal(money.SideCredit)
}

func (t Transaction) sideTotal(side money.Side) money.Cents {
	var total money.Cents
	for _, line := range t.Lines {
		if line.Type == side {
			total += line.Amount
		}
	}
	return total
}

// Amount is the transaction value: the total on either side of a balanced
// transaction.
func (t Transaction) Amount() money.Cents {
	return t.DebitTotal()
}

// AccountIDs returns the distinct accounts touched by the lines.
func (t Transaction) AccountIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(t.Lines))
	ids := make([]uuid.UUID, 0, len(t.Lines))
	for _, line := range t.Lines {
		if _, ok := seen[line.AccountID]; ok {
			continue
		}
		seen[line.AccountID] = struct{}{}
		ids = append(ids, line.AccountID)
	}
	return ids
}

// ContentSnapshot captures the immutable business content used for
// approval proofs. Lifecycle status is excluded: it legitimately moves
// from Draft to Posted after approval and must not read as tampering.
func (t Transaction) ContentSnapshot() map[string]any {
	lines := make([]map[string]any, 0, len(t.Lines))
	for _, line := range t.Lines {
		lines = append(lines, map[string]any{
			"account_id": line.AccountID.String(),
			"type":       string(line.Type),
			"amount":     int64(line.Amount),
		})
	}
	return map[string]any{
		"company_id":  t.CompanyID.String(),
		"currency":    t.Currency,
		"description": t.Description,
		"date":        t.Date.UTC().Format(time.RFC3339),
		"reference":   t.Reference,
		"lines":       lines,
	}
}

// Snapshot captures the full state for activity-log diffing.
func (t Transaction) Snapshot() map[string]any {
	snap := t.ContentSnapshot()
	snap["status"] = string(t.Status)
	return snap
}
