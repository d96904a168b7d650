package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskApprovalExpiry sweeps Pending approvals past their deadline.
	TaskApprovalExpiry = "approvals:expire"
	// TaskChainIntegrity re-verifies hash chains from genesis.
	TaskChainIntegrity = "hashchain:verify"
)

// ApprovalExpiryPayload bounds one sweep batch.
type ApprovalExpiryPayload struct {
	Limit int `json:"limit"`
}

// ChainIntegrityPayload names the chains to walk.
type ChainIntegrityPayload struct {
	Chains []string `json:"chains"`
}

// NewApprovalExpiryTask constructs the expiry sweep task.
func NewApprovalExpiryTask(payload ApprovalExpiryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskApprovalExpiry, data), nil
}

// NewChainIntegrityTask constructs the chain verification task.
func NewChainIntegrityTask(payload ChainIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskChainIntegrity, data), nil
}
