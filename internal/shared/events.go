package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event names emitted by the posting core.
const (
	EventTransactionValidated    = "transaction.validated"
	EventTransactionPosted       = "transaction.posted"
	EventTransactionReversed     = "transaction.reversed"
	EventLedgerUpdated           = "ledger.updated"
	EventNegativeBalanceDetected = "ledger.negative_balance_detected"
	EventApprovalRequested       = "approval.requested"
	EventApprovalGranted         = "approval.granted"
	EventApprovalRejected        = "approval.rejected"
	EventApprovalCancelled       = "approval.cancelled"
	EventApprovalExpired         = "approval.expired"
	EventAuditLogCreated         = "audit.log_created"
	EventSecurityAlertTriggered  = "security.alert_triggered"
)

// Event is a typed domain fact. Delivery is at-least-once after the state
// change it describes; consumers must be idempotent.
type Event struct {
	Name       string
	CompanyID  uuid.UUID
	ActorID    uuid.UUID
	EntityType string
	EntityID   string
	At         time.Time
	Payload    map[string]any
}

// Dispatcher publishes domain facts to interested consumers. The core
// never assumes synchronous subscriber execution.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// LogDispatcher writes events to the structured log. It is the default
// sink when no broker is wired.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Dispatch logs the event.
func (d LogDispatcher) Dispatch(_ context.Context, event Event) {
	if d.Logger == nil {
		return
	}
	d.Logger.Info("domain event",
		slog.String("event", event.Name),
		slog.String("entity", event.EntityType),
		slog.String("entity_id", event.EntityID),
		slog.Time("at", event.At),
	)
}

// MultiDispatcher fans one event out to several dispatchers.
type MultiDispatcher []Dispatcher

// Dispatch forwards the event to every dispatcher in order.
func (m MultiDispatcher) Dispatch(ctx context.Context, event Event) {
	for _, d := range m {
		if d != nil {
			d.Dispatch(ctx, event)
		}
	}
}
