package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-books/meridian/internal/approvals"
	"github.com/meridian-books/meridian/internal/hashchain"
	jobmetrics "github.com/meridian-books/meridian/internal/jobs"
	"github.com/meridian-books/meridian/internal/ledger"
	"github.com/meridian-books/meridian/internal/shared"
)

// DefaultExpiryBatch caps one expiry sweep when the payload gives no limit.
const DefaultExpiryBatch = 200

// Handlers processes maintenance tasks against the domain services.
type Handlers struct {
	Approvals  *approvals.Service
	Chain      *hashchain.Service
	Dispatcher shared.Dispatcher
	Metrics    *jobmetrics.Metrics
	Logger     *slog.Logger
}

// HandleApprovalExpiry expires overdue Pending approvals. The sweep is
// idempotent: a re-delivered task finds nothing left to expire.
func (h *Handlers) HandleApprovalExpiry(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("approval_expiry")
	var payload ApprovalExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = DefaultExpiryBatch
	}
	count, err := h.Approvals.ExpireDue(ctx, payload.Limit)
	if err != nil {
		return tracker.End(err)
	}
	h.Metrics.AddExpired(count)
	if count > 0 && h.Logger != nil {
		h.Logger.Info("expired pending approvals", slog.Int("count", count))
	}
	return tracker.End(nil)
}

// HandleChainIntegrity walks each configured chain from genesis. A broken
// link is fatal: the job fails loudly and raises a security alert, it
// never attempts repair.
func (h *Handlers) HandleChainIntegrity(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("chain_integrity")
	var payload ChainIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Chains) == 0 {
		payload.Chains = []string{approvals.ChainName, ledger.ChainName}
	}
	for _, chain := range payload.Chains {
		if err := h.Chain.VerifyAll(ctx, chain); err != nil {
			if shared.IsKind(err, shared.KindIntegrityViolation) && h.Dispatcher != nil {
				h.Dispatcher.Dispatch(ctx, shared.Event{
					Name:       shared.EventSecurityAlertTriggered,
					EntityType: "hashchain",
					EntityID:   chain,
					Payload:    map[string]any{"error": err.Error()},
				})
			}
			return tracker.End(err)
		}
	}
	return tracker.End(nil)
}
