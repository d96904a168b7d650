package hashchain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Proof is a cryptographic receipt binding one approval decision to the
// exact state of the entity it approved.
type Proof struct {
	ID           uuid.UUID
	EntityType   string
	EntityID     string
	ApprovalType string
	ApproverID   uuid.UUID
	EntityHash   ContentHash
	ApprovedAt   time.Time
	Notes        string
	ProofHash    ContentHash
}

// NewProof builds a proof and seals it with its computed hash.
func NewProof(entityType, entityID, approvalType string, approverID uuid.UUID, entityHash ContentHash, approvedAt time.Time, notes string) Proof {
	p := Proof{
		ID:           uuid.New(),
		EntityType:   entityType,
		EntityID:     entityID,
		ApprovalType: approvalType,
		ApproverID:   approverID,
		EntityHash:   entityHash,
		ApprovedAt:   approvedAt.UTC().Truncate(time.Microsecond),
		Notes:        notes,
	}
	p.ProofHash = p.ComputeProofHash()
	return p
}

// ComputeProofHash is a pure function of the proof's fields: recomputing
// it always reproduces the same digest.
func (p Proof) ComputeProofHash() ContentHash {
	material := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s",
		p.EntityType,
		p.EntityID,
		p.ApprovalType,
		p.ApproverID,
		p.EntityHash.String(),
		p.ApprovedAt.UTC().Format(TimestampLayout),
		p.Notes,
	)
	return FromString(material)
}

// Verify reports whether the entity is unchanged since approval: true iff
// the current content hash equals the one captured at approval time.
func (p Proof) Verify(currentEntityHash ContentHash) bool {
	return p.EntityHash.Equal(currentEntityHash)
}

// Sealed reports whether the stored proof hash still matches the fields.
func (p Proof) Sealed() bool {
	return p.ProofHash.Equal(p.ComputeProofHash())
}
