package transactions

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/hashchain"
	"github.com/meridian-books/meridian/internal/shared"
)

// EntityTypeTransaction names transactions in proofs and activity logs.
const EntityTypeTransaction = "transaction"

// Hasher digests a transaction's current persisted state, binding
// approval proofs to exactly what was reviewed.
type Hasher struct {
	Repo Repository
}

// EntityHash implements the approval hasher contract for transactions.
func (h Hasher) EntityHash(ctx context.Context, entityType, entityID string) (hashchain.ContentHash, error) {
	if entityType != EntityTypeTransaction {
		return hashchain.ContentHash{}, shared.Ef(shared.KindValidationFailed,
			"transactions: cannot hash entity type %q", entityType)
	}
	id, err := uuid.Parse(entityID)
	if err != nil {
		return hashchain.ContentHash{}, shared.Wrap(shared.KindValidationFailed,
			"transactions: invalid entity id", err)
	}
	tx, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		return hashchain.ContentHash{}, err
	}
	return hashchain.FromState(tx.ContentSnapshot())
}
