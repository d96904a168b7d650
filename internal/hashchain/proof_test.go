package hashchain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProofHashDeterministic(t *testing.T) {
	entityHash := FromString(`{"amount":100000}`)
	at := time.Date(2026, 2, 1, 10, 30, 0, 123456000, time.UTC)
	proof := NewProof("transaction", "tx-1", "HIGH_VALUE", uuid.New(), entityHash, at, "reviewed by CFO")

	first := proof.ComputeProofHash()
	second := proof.ComputeProofHash()
	assert.True(t, first.Equal(second), "recomputation must reproduce the same digest")
	assert.True(t, proof.ProofHash.Equal(first))
	assert.True(t, proof.Sealed())
}

func TestProofHashCoversEveryField(t *testing.T) {
	entityHash := FromString("state")
	at := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	base := NewProof("transaction", "tx-1", "HIGH_VALUE", uuid.New(), entityHash, at, "ok")

	mutations := []func(p *Proof){
		func(p *Proof) { p.EntityType = "account" },
		func(p *Proof) { p.EntityID = "tx-2" },
		func(p *Proof) { p.ApprovalType = "BACKDATED_TRANSACTION" },
		func(p *Proof) { p.ApproverID = uuid.New() },
		func(p *Proof) { p.EntityHash = FromString("other state") },
		func(p *Proof) { p.ApprovedAt = at.Add(time.Microsecond) },
		func(p *Proof) { p.Notes = "changed" },
	}
	for i, mutate := range mutations {
		p := base
		mutate(&p)
		assert.False(t, p.ComputeProofHash().Equal(base.ProofHash), "mutation %d must change the proof hash", i)
		assert.False(t, p.Sealed(), "mutation %d must unseal the proof", i)
	}
}

func TestProofVerify(t *testing.T) {
	entityHash := FromString("original entity state")
	proof := NewProof("transaction", "tx-9", "VOID_TRANSACTION", uuid.New(), entityHash, time.Now(), "")

	assert.True(t, proof.Verify(FromString("original entity state")))
	assert.False(t, proof.Verify(FromString("tampered entity state")))
}
