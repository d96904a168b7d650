package approvals

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/hashchain"
	"github.com/meridian-books/meridian/internal/shared"
)

// ChainName is the hash chain carrying approval decisions.
const ChainName = "approvals"

// EntityHasher produces the content hash of an entity's current state, so
// approval decisions can be bound to the exact state they approved.
type EntityHasher interface {
	EntityHash(ctx context.Context, entityType, entityID string) (hashchain.ContentHash, error)
}

// Repository is the approval store contract.
type Repository interface {
	Save(ctx context.Context, approval Approval) error
	// Update persists a transition only while the stored row is still in
	// the expected status; a lost race surfaces as ConflictDetected.
	Update(ctx context.Context, approval Approval, expected Status) error
	FindByID(ctx context.Context, id uuid.UUID) (Approval, error)
	FindPendingFor(ctx context.Context, entityType, entityID string, approvalType Type) (Approval, error)
	FindApprovedFor(ctx context.Context, entityType, entityID string, approvalType Type) (Approval, error)
	FindExpiredPending(ctx context.Context, asOf time.Time, limit int) ([]Approval, error)
}

// Service runs the approval workflow: request, review transitions, proofs
// and the expiry sweep.
type Service struct {
	repo       Repository
	chain      *hashchain.Service
	hasher     EntityHasher
	dispatcher shared.Dispatcher
	sink       shared.ActivitySink
	clock      shared.Clock
	logger     *slog.Logger
	ttl        time.Duration
}

// NewService constructs the approval service. ttl bounds how long a
// request may stay Pending before the sweep expires it.
func NewService(repo Repository, chain *hashchain.Service, hasher EntityHasher, dispatcher shared.Dispatcher, sink shared.ActivitySink, clock shared.Clock, logger *slog.Logger, ttl time.Duration) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{
		repo:       repo,
		chain:      chain,
		hasher:     hasher,
		dispatcher: dispatcher,
		sink:       sink,
		clock:      clock,
		logger:     logger,
		ttl:        ttl,
	}
}

// Request opens a Pending approval for the entity, reusing an existing
// Pending request of the same type instead of stacking duplicates.
func (s *Service) Request(ctx context.Context, companyID uuid.UUID, entityType, entityID string, requirement Requirement, requestedBy uuid.UUID) (Approval, error) {
	existing, err := s.repo.FindPendingFor(ctx, entityType, entityID, requirement.Type)
	if err == nil {
		return existing, nil
	}
	if !shared.IsKind(err, shared.KindNotFound) {
		return Approval{}, err
	}

	approval := NewApproval(companyID, entityType, entityID, requirement.Type, requirement.Reason, requestedBy, s.clock.Now(), s.ttl)
	if err := s.repo.Save(ctx, approval); err != nil {
		return Approval{}, err
	}
	s.emit(ctx, approval, shared.EventApprovalRequested, nil)
	return approval, nil
}

// Approve grants a Pending approval and seals the decision with a proof
// over the entity's state at approval time.
func (s *Service) Approve(ctx context.Context, id, approverID uuid.UUID, notes string) (Approval, hashchain.Proof, error) {
	approval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Approval{}, hashchain.Proof{}, err
	}
	before := approval.Snapshot()
	now := s.clock.Now()
	if err := approval.Approve(approverID, notes, now); err != nil {
		return Approval{}, hashchain.Proof{}, err
	}
	if err := s.repo.Update(ctx, approval, StatusPending); err != nil {
		return Approval{}, hashchain.Proof{}, err
	}

	entityHash, err := s.hasher.EntityHash(ctx, approval.EntityType, approval.EntityID)
	if err != nil {
		return Approval{}, hashchain.Proof{}, err
	}
	proof := hashchain.NewProof(approval.EntityType, approval.EntityID, string(approval.Type), approverID, entityHash, now, notes)
	proof, err = s.chain.RecordProof(ctx, ChainName, proof)
	if err != nil {
		return Approval{}, hashchain.Proof{}, err
	}

	s.emit(ctx, approval, shared.EventApprovalGranted, before)
	return approval, proof, nil
}

// ApprovedFor returns the latest terminal Approved decision for the
// entity, or NotFound when the entity has none.
func (s *Service) ApprovedFor(ctx context.Context, entityType, entityID string, approvalType Type) (Approval, error) {
	return s.repo.FindApprovedFor(ctx, entityType, entityID, approvalType)
}

// VerifyDecision checks that the entity is unchanged since its approval
// was granted, using the recorded proof.
func (s *Service) VerifyDecision(ctx context.Context, entityType, entityID string) error {
	current, err := s.hasher.EntityHash(ctx, entityType, entityID)
	if err != nil {
		return err
	}
	return s.chain.VerifyProof(ctx, entityType, entityID, current)
}

// Reject declines a Pending approval with a mandatory reason. Posting
// never occurs for a rejected request.
func (s *Service) Reject(ctx context.Context, id, reviewerID uuid.UUID, reason string) (Approval, error) {
	return s.transition(ctx, id, shared.EventApprovalRejected, func(a *Approval, now time.Time) error {
		return a.Reject(reviewerID, reason, now)
	})
}

// Cancel withdraws a Pending approval; only the requester may do so.
func (s *Service) Cancel(ctx context.Context, id, requesterID uuid.UUID, reason string) (Approval, error) {
	return s.transition(ctx, id, shared.EventApprovalCancelled, func(a *Approval, now time.Time) error {
		return a.Cancel(requesterID, reason, now)
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, event string, fn func(*Approval, time.Time) error) (Approval, error) {
	approval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Approval{}, err
	}
	before := approval.Snapshot()
	if err := fn(&approval, s.clock.Now()); err != nil {
		return Approval{}, err
	}
	if err := s.repo.Update(ctx, approval, StatusPending); err != nil {
		return Approval{}, err
	}
	s.emit(ctx, approval, event, before)
	return approval, nil
}

// ExpireDue sweeps Pending approvals whose deadline passed and returns
// how many were expired. Running the sweep twice is a no-op the second
// time: expired rows no longer match the Pending precondition.
func (s *Service) ExpireDue(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	due, err := s.repo.FindExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, approval := range due {
		before := approval.Snapshot()
		if err := approval.Expire(now); err != nil {
			continue
		}
		if err := s.repo.Update(ctx, approval, StatusPending); err != nil {
			if shared.IsKind(err, shared.KindConflictDetected) {
				continue
			}
			return expired, err
		}
		expired++
		s.emit(ctx, approval, shared.EventApprovalExpired, before)
	}
	if s.logger != nil && expired > 0 {
		s.logger.Info("approval sweep expired requests", slog.Int("count", expired))
	}
	return expired, nil
}

func (s *Service) emit(ctx context.Context, approval Approval, event string, before map[string]any) {
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, shared.Event{
			Name:       event,
			CompanyID:  approval.CompanyID,
			ActorID:    approval.RequestedBy,
			EntityType: "approval",
			EntityID:   approval.ID.String(),
			At:         s.clock.Now(),
			Payload: map[string]any{
				"approval_type": string(approval.Type),
				"status":        string(approval.Status),
				"target_type":   approval.EntityType,
				"target_id":     approval.EntityID,
			},
		})
	}
	if s.sink != nil {
		_ = s.sink.Record(ctx, shared.ActivityLog{
			CompanyID:     approval.CompanyID,
			ActorID:       approval.RequestedBy,
			ActivityType:  event,
			EntityType:    "approval",
			EntityID:      approval.ID.String(),
			Action:        event,
			PreviousState: before,
			NewState:      approval.Snapshot(),
			RequestID:     shared.RequestIDFromContext(ctx),
			At:            s.clock.Now(),
		})
	}
}
