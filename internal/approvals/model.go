package approvals

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/shared"
)

// Type enumerates why a transaction needs human sign-off.
type Type string

const (
	TypeNegativeEquity Type = "NEGATIVE_EQUITY"
	TypeHighValue      Type = "HIGH_VALUE"
	TypeBackdated      Type = "BACKDATED_TRANSACTION"
	TypeVoid           Type = "VOID_TRANSACTION"
)

// Status enumerates the approval lifecycle. Pending is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Reason is the typed explanation behind a requirement, carrying
// human-readable text plus structured numeric details.
type Reason struct {
	Text    string
	Details map[string]any
}

// Approval tracks one sign-off request from Pending to exactly one
// terminal state. Once terminal it is immutable.
type Approval struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	EntityType  string
	EntityID    string
	Type        Type
	Reason      Reason
	Status      Status
	RequestedBy uuid.UUID
	ReviewedBy  *uuid.UUID
	RequestedAt time.Time
	ReviewedAt  *time.Time
	ExpiresAt   time.Time
	ReviewNotes string
}

// NewApproval creates a Pending approval request.
func NewApproval(companyID uuid.UUID, entityType, entityID string, approvalType Type, reason Reason, requestedBy uuid.UUID, requestedAt time.Time, ttl time.Duration) Approval {
	return Approval{
		ID:          uuid.New(),
		CompanyID:   companyID,
		EntityType:  entityType,
		EntityID:    entityID,
		Type:        approvalType,
		Reason:      reason,
		Status:      StatusPending,
		RequestedBy: requestedBy,
		RequestedAt: requestedAt,
		ExpiresAt:   requestedAt.Add(ttl),
	}
}

func (a *Approval) guardPending() error {
	if a.Status.Terminal() {
		return shared.Ef(shared.KindPreconditionFailed, "approvals: %s already %s", a.ID, a.Status)
	}
	return nil
}

// Approve records the reviewer decision. Self-approval is forbidden: the
// identity that requested the approval can never grant it.
func (a *Approval) Approve(approverID uuid.UUID, notes string, at time.Time) error {
	if err := a.guardPending(); err != nil {
		return err
	}
	if approverID == a.RequestedBy {
		return shared.Ef(shared.KindPreconditionFailed, "approvals: %s cannot be approved by its requester", a.ID)
	}
	a.Status = StatusApproved
	a.ReviewedBy = &approverID
	a.ReviewedAt = &at
	a.ReviewNotes = notes
	return nil
}

// Reject records a rejection; the reason is mandatory.
func (a *Approval) Reject(reviewerID uuid.UUID, reason string, at time.Time) error {
	if err := a.guardPending(); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return shared.E(shared.KindValidationFailed, "approvals: rejection reason required")
	}
	a.Status = StatusRejected
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &at
	a.ReviewNotes = reason
	return nil
}

// Cancel withdraws the request; only the original requester may cancel.
func (a *Approval) Cancel(requesterID uuid.UUID, reason string, at time.Time) error {
	if err := a.guardPending(); err != nil {
		return err
	}
	if requesterID != a.RequestedBy {
		return shared.Ef(shared.KindPreconditionFailed, "approvals: only the requester may cancel %s", a.ID)
	}
	a.Status = StatusCancelled
	a.ReviewedBy = &requesterID
	a.ReviewedAt = &at
	a.ReviewNotes = reason
	return nil
}

// Expire transitions a Pending approval whose deadline passed.
func (a *Approval) Expire(at time.Time) error {
	if err := a.guardPending(); err != nil {
		return err
	}
	if at.Before(a.ExpiresAt) {
		return shared.Ef(shared.KindPreconditionFailed, "approvals: %s has not expired yet", a.ID)
	}
	a.Status = StatusExpired
	a.ReviewedAt = &at
	return nil
}

// Snapshot captures state for activity-log diffing.
func (a Approval) Snapshot() map[string]any {
	snap := map[string]any{
		"entity_type": a.EntityType,
		"entity_id":   a.EntityID,
		"type":        string(a.Type),
		"status":      string(a.Status),
		"reason":      a.Reason.Text,
	}
	if a.ReviewedBy != nil {
		snap["reviewed_by"] = a.ReviewedBy.String()
	}
	return snap
}
