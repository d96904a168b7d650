package transactions

import (
	"context"
)

// Drafter assembles new draft transactions. Each draft gets a reference
// number allocated from the company's sequence before it is saved, so
// references stay gapless per company even under concurrent drafting.
type Drafter struct {
	repo Repository
}

// NewDrafter constructs the drafting service.
func NewDrafter(repo Repository) *Drafter {
	return &Drafter{repo: repo}
}

// Draft validates the input, allocates the next reference, and persists
// the transaction in Draft status. Business checks beyond field shape run
// later, at posting time.
func (d *Drafter) Draft(ctx context.Context, in CreateInput) (Transaction, error) {
	if err := in.Validate(); err != nil {
		return Transaction{}, err
	}
	reference, err := d.repo.NextReference(ctx, in.CompanyID)
	if err != nil {
		return Transaction{}, err
	}
	tx := in.ToTransaction(reference)
	if err := d.repo.Save(ctx, tx); err != nil {
		return Transaction{}, err
	}
	return tx, nil
}
