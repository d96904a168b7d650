package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Severity grades activity log entries.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ActivityLog is one append-only row per significant domain event,
// carrying before/after snapshots for diffing.
type ActivityLog struct {
	ID            uuid.UUID
	CompanyID     uuid.UUID
	ActorID       uuid.UUID
	ActivityType  string
	EntityType    string
	EntityID      string
	Action        string
	PreviousState map[string]any
	NewState      map[string]any
	Severity      Severity
	RequestID     string
	At            time.Time
}

// SeverityFor derives the severity from the activity type. Approval and
// security activities escalate; everything else is informational.
func SeverityFor(activityType string) Severity {
	switch activityType {
	case EventSecurityAlertTriggered:
		return SeverityCritical
	case EventApprovalRejected, EventApprovalExpired, EventNegativeBalanceDetected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// ActivitySink receives structured before/after diffs for every mutating
// operation in the posting core.
type ActivitySink interface {
	Record(ctx context.Context, log ActivityLog) error
}

// EventingSink wraps another sink and announces each recorded row on the
// dispatcher, so downstream consumers can react to new audit entries.
type EventingSink struct {
	Sink       ActivitySink
	Dispatcher Dispatcher
}

// Record persists the entry via the wrapped sink, then emits
// EventAuditLogCreated.
func (s EventingSink) Record(ctx context.Context, log ActivityLog) error {
	if err := s.Sink.Record(ctx, log); err != nil {
		return err
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Dispatch(ctx, Event{
			Name:       EventAuditLogCreated,
			CompanyID:  log.CompanyID,
			ActorID:    log.ActorID,
			EntityType: log.EntityType,
			EntityID:   log.EntityID,
			At:         log.At,
			Payload:    map[string]any{"action": log.Action, "severity": string(log.Severity)},
		})
	}
	return nil
}

// ActivityLogger persists activity rows into activity_logs.
type ActivityLogger struct {
	pool *pgxpool.Pool
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool) *ActivityLogger {
	return &ActivityLogger{pool: pool}
}

// Record persists the log entry. Rows are never updated or deleted.
func (l *ActivityLogger) Record(ctx context.Context, log ActivityLog) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if log.Action == "" || log.EntityType == "" || log.EntityID == "" {
		return errors.New("activity log requires action/entity/entity_id")
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.Severity == "" {
		log.Severity = SeverityFor(log.ActivityType)
	}
	prevJSON, err := json.Marshal(log.PreviousState)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(log.NewState)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO activity_logs
(id, company_id, actor_id, activity_type, entity_type, entity_id, action, previous_state, new_state, severity, request_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, COALESCE($12, NOW()))`,
		log.ID, log.CompanyID, log.ActorID, log.ActivityType, log.EntityType, log.EntityID,
		log.Action, prevJSON, newJSON, string(log.Severity), log.RequestID, log.At)
	return err
}
