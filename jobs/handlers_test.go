package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/approvals"
	"github.com/meridian-books/meridian/internal/hashchain"
	"github.com/meridian-books/meridian/internal/shared"
)

type stubLinkStore struct {
	links  []hashchain.ChainLink
	proofs map[string]hashchain.Proof
}

func (s *stubLinkStore) AppendLink(_ context.Context, _ string, link hashchain.ChainLink) error {
	s.links = append(s.links, link)
	return nil
}

func (s *stubLinkStore) TailHash(_ context.Context, _ string) (hashchain.ContentHash, error) {
	if len(s.links) == 0 {
		return hashchain.ContentHash{}, nil
	}
	return s.links[len(s.links)-1].ComputeHash(), nil
}

func (s *stubLinkStore) ListLinks(_ context.Context, _ string) ([]hashchain.ChainLink, error) {
	return s.links, nil
}

func (s *stubLinkStore) SaveProof(_ context.Context, proof hashchain.Proof) error {
	if s.proofs == nil {
		s.proofs = make(map[string]hashchain.Proof)
	}
	s.proofs[proof.EntityType+"/"+proof.EntityID] = proof
	return nil
}

func (s *stubLinkStore) FindProof(_ context.Context, entityType, entityID string) (hashchain.Proof, error) {
	proof, ok := s.proofs[entityType+"/"+entityID]
	if !ok {
		return hashchain.Proof{}, shared.E(shared.KindNotFound, "hashchain: proof not found")
	}
	return proof, nil
}

type stubApprovalRepo struct {
	rows map[uuid.UUID]approvals.Approval
}

func (s *stubApprovalRepo) Save(_ context.Context, approval approvals.Approval) error {
	s.rows[approval.ID] = approval
	return nil
}

func (s *stubApprovalRepo) Update(_ context.Context, approval approvals.Approval, expected approvals.Status) error {
	current, ok := s.rows[approval.ID]
	if !ok {
		return shared.Ef(shared.KindNotFound, "approvals: %s not found", approval.ID)
	}
	if current.Status != expected {
		return shared.Ef(shared.KindConflictDetected, "approvals: %s is no longer %s", approval.ID, expected)
	}
	s.rows[approval.ID] = approval
	return nil
}

func (s *stubApprovalRepo) FindByID(_ context.Context, id uuid.UUID) (approvals.Approval, error) {
	approval, ok := s.rows[id]
	if !ok {
		return approvals.Approval{}, shared.Ef(shared.KindNotFound, "approvals: %s not found", id)
	}
	return approval, nil
}

func (s *stubApprovalRepo) FindPendingFor(_ context.Context, _, _ string, _ approvals.Type) (approvals.Approval, error) {
	return approvals.Approval{}, shared.E(shared.KindNotFound, "approvals: none pending")
}

func (s *stubApprovalRepo) FindApprovedFor(_ context.Context, _, _ string, _ approvals.Type) (approvals.Approval, error) {
	return approvals.Approval{}, shared.E(shared.KindNotFound, "approvals: none approved")
}

func (s *stubApprovalRepo) FindExpiredPending(_ context.Context, asOf time.Time, _ int) ([]approvals.Approval, error) {
	var out []approvals.Approval
	for _, approval := range s.rows {
		if approval.Status == approvals.StatusPending && !approval.ExpiresAt.After(asOf) {
			out = append(out, approval)
		}
	}
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type capturingDispatcher struct {
	events []shared.Event
}

func (d *capturingDispatcher) Dispatch(_ context.Context, event shared.Event) {
	d.events = append(d.events, event)
}

func TestHandleApprovalExpirySweepsOverdue(t *testing.T) {
	repo := &stubApprovalRepo{rows: make(map[uuid.UUID]approvals.Approval)}
	clock := fixedClock{t: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)}
	overdue := approvals.Approval{
		ID:        uuid.New(),
		Status:    approvals.StatusPending,
		ExpiresAt: clock.t.Add(-time.Hour),
	}
	repo.rows[overdue.ID] = overdue

	svc := approvals.NewService(repo, hashchain.NewService(&stubLinkStore{}, nil, clock, slog.Default()),
		nil, nil, nil, clock, slog.Default(), 72*time.Hour)
	h := &Handlers{Approvals: svc, Logger: slog.Default()}

	payload, err := json.Marshal(ApprovalExpiryPayload{Limit: 10})
	require.NoError(t, err)
	require.NoError(t, h.HandleApprovalExpiry(context.Background(), asynq.NewTask(TaskApprovalExpiry, payload)))
	assert.Equal(t, approvals.StatusExpired, repo.rows[overdue.ID].Status)

	// Re-delivery finds nothing left.
	require.NoError(t, h.HandleApprovalExpiry(context.Background(), asynq.NewTask(TaskApprovalExpiry, payload)))
}

func TestHandleChainIntegrityRaisesAlertOnBrokenChain(t *testing.T) {
	store := &stubLinkStore{}
	clock := fixedClock{t: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)}
	chain := hashchain.NewService(store, nil, clock, slog.Default())

	_, err := chain.Append(context.Background(), "ledger", hashchain.FromString("entry one"))
	require.NoError(t, err)
	_, err = chain.Append(context.Background(), "ledger", hashchain.FromString("entry two"))
	require.NoError(t, err)

	// Rewrite history.
	store.links[0].ContentHash = hashchain.FromString("forged entry")

	events := &capturingDispatcher{}
	h := &Handlers{Chain: chain, Dispatcher: events, Logger: slog.Default()}
	payload, err := json.Marshal(ChainIntegrityPayload{Chains: []string{"ledger"}})
	require.NoError(t, err)

	err = h.HandleChainIntegrity(context.Background(), asynq.NewTask(TaskChainIntegrity, payload))
	require.Error(t, err)
	assert.Equal(t, shared.KindIntegrityViolation, shared.KindOf(err))
	require.Len(t, events.events, 1)
	assert.Equal(t, shared.EventSecurityAlertTriggered, events.events[0].Name)
}

func TestHandleChainIntegrityPassesOnIntactChain(t *testing.T) {
	store := &stubLinkStore{}
	clock := fixedClock{t: time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC)}
	chain := hashchain.NewService(store, nil, clock, slog.Default())
	_, err := chain.Append(context.Background(), "approvals", hashchain.FromString("decision"))
	require.NoError(t, err)

	h := &Handlers{Chain: chain, Logger: slog.Default()}
	err = h.HandleChainIntegrity(context.Background(), asynq.NewTask(TaskChainIntegrity, nil))
	require.NoError(t, err)
}
