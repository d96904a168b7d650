package ledger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/accounts"
	"github.com/meridian-books/meridian/internal/approvals"
	"github.com/meridian-books/meridian/internal/balance"
	"github.com/meridian-books/meridian/internal/hashchain"
	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/shared"
	"github.com/meridian-books/meridian/internal/transactions"
)

// ChainName is the hash chain anchoring posting and reversal facts.
const ChainName = "ledger"

// Metrics is the slice of instrumentation the posting service reports to.
type Metrics interface {
	PostingCommitted()
	ReversalCommitted()
	ApprovalSuspended(approvalType string)
}

// Service converts validated transactions into persisted balance changes.
type Service struct {
	repo         Repository
	txStore      transactions.Repository
	accountStore accounts.Repository
	validator    *transactions.Validator
	engine       *approvals.RequirementEngine
	approvalSvc  *approvals.Service
	chain        *hashchain.Service
	locker       *cache.Locker
	dispatcher   shared.Dispatcher
	sink         shared.ActivitySink
	clock        shared.Clock
	logger       *slog.Logger
	metrics      Metrics
}

// Config groups the service dependencies.
type Config struct {
	Repo         Repository
	Transactions transactions.Repository
	Accounts     accounts.Repository
	Validator    *transactions.Validator
	Engine       *approvals.RequirementEngine
	Approvals    *approvals.Service
	Chain        *hashchain.Service
	Locker       *cache.Locker
	Dispatcher   shared.Dispatcher
	Sink         shared.ActivitySink
	Clock        shared.Clock
	Logger       *slog.Logger
	Metrics      Metrics
}

// NewService constructs the posting service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{
		repo:         cfg.Repo,
		txStore:      cfg.Transactions,
		accountStore: cfg.Accounts,
		validator:    cfg.Validator,
		engine:       cfg.Engine,
		approvalSvc:  cfg.Approvals,
		chain:        cfg.Chain,
		locker:       cfg.Locker,
		dispatcher:   cfg.Dispatcher,
		sink:         cfg.Sink,
		clock:        clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}
}

// Post atomically turns a draft transaction into persisted balance
// changes. When the approval engine demands sign-off and none has been
// granted, posting is suspended and the approval reference handed back.
func (s *Service) Post(ctx context.Context, txID, actorID uuid.UUID) (PostingResult, error) {
	tx, err := s.txStore.FindByID(ctx, txID)
	if err != nil {
		return PostingResult{}, err
	}
	if tx.Status != transactions.StatusDraft {
		return PostingResult{}, shared.Ef(shared.KindPreconditionFailed,
			"ledger: transaction %s is %s, only drafts post", txID, tx.Status)
	}

	validated, err := s.validator.Validate(ctx, tx)
	if err != nil {
		return PostingResult{}, err
	}

	projections, err := s.project(ctx, tx)
	if err != nil {
		return PostingResult{}, err
	}

	if requirement := s.engine.Evaluate(tx, projections, validated.BackdatedDays); requirement != nil {
		approval, suspended, err := s.ensureApproved(ctx, tx, *requirement, actorID)
		if err != nil {
			return PostingResult{}, err
		}
		if suspended {
			return PostingResult{
				Outcome:       OutcomeApprovalPending,
				TransactionID: txID,
				Approval:      &approval,
			}, nil
		}
	}

	// Second line of defense: a balanced transaction with correctly
	// classified accounts cannot unbalance the equation.
	summary, err := s.accountStore.SummaryFor(ctx, tx.CompanyID)
	if err != nil {
		return PostingResult{}, err
	}
	if check := balance.ValidateWithChanges(summary, typeDeltas(projections)); !check.Balanced {
		return PostingResult{}, shared.Ef(shared.KindValidationFailed,
			"ledger: posting %s would leave the equation off by %s", txID, check.ImbalanceCents)
	}

	leases, err := s.lockAccounts(ctx, tx)
	if err != nil {
		return PostingResult{}, err
	}
	defer cache.ReleaseAll(ctx, leases)

	now := s.clock.Now()
	var changes []BalanceChange
	err = s.repo.WithTx(ctx, func(ctx context.Context, txRepo TxRepository) error {
		balances := make(map[uuid.UUID]accounts.Account)
		for _, line := range tx.Lines {
			account, ok := balances[line.AccountID]
			if !ok {
				account, err = txRepo.GetAccountForUpdate(ctx, line.AccountID)
				if err != nil {
					return err
				}
			}
			normal := account.NormalBalance()
			delta := balance.Calculate(normal, line.Type, line.Amount)
			change := BalanceChange{
				ID:               uuid.New(),
				AccountID:        account.ID,
				TransactionID:    tx.ID,
				LineID:           line.ID,
				LineType:         line.Type,
				Amount:           line.Amount,
				PreviousBalance:  account.Balance,
				NormalBalance:    normal,
				Delta:            delta,
				ResultingBalance: balance.ProjectBalance(account.Balance, delta),
				CreatedAt:        now,
			}
			if err := txRepo.InsertChange(ctx, change); err != nil {
				return err
			}
			if err := txRepo.UpdateAccountBalance(ctx, account.ID, change.ResultingBalance); err != nil {
				return err
			}
			account.Balance = change.ResultingBalance
			balances[line.AccountID] = account
			changes = append(changes, change)
		}
		return txRepo.UpdateTransactionStatus(ctx, tx.ID, transactions.StatusDraft, transactions.StatusPosted)
	})
	if err != nil {
		return PostingResult{}, err
	}

	before := tx.Snapshot()
	tx.Status = transactions.StatusPosted
	s.finalize(ctx, tx, actorID, changes, shared.EventTransactionPosted, "ledger.post", before)
	if s.metrics != nil {
		s.metrics.PostingCommitted()
	}
	return PostingResult{Outcome: OutcomePosted, TransactionID: txID, Changes: changes}, nil
}

// Reverse creates compensating balance changes for a posted transaction.
// Reversal always routes through a VoidTransaction approval and is
// at-most-once: the dedicated reversal lookup, not balance history, is
// the authority for "already reversed".
func (s *Service) Reverse(ctx context.Context, txID, reversedBy uuid.UUID, reason string) (ReversalResult, error) {
	tx, err := s.txStore.FindByID(ctx, txID)
	if err != nil {
		return ReversalResult{}, err
	}
	if tx.Status != transactions.StatusPosted {
		return ReversalResult{}, shared.Ef(shared.KindPreconditionFailed,
			"ledger: transaction %s is %s, only posted transactions reverse", txID, tx.Status)
	}
	reversed, err := s.repo.IsReversed(ctx, txID)
	if err != nil {
		return ReversalResult{}, err
	}
	if reversed {
		return ReversalResult{}, shared.Ef(shared.KindPreconditionFailed,
			"ledger: transaction %s already reversed", txID)
	}

	requirement := approvals.VoidRequirement(tx, reason)
	approval, suspended, err := s.ensureApproved(ctx, tx, requirement, reversedBy)
	if err != nil {
		return ReversalResult{}, err
	}
	if suspended {
		return ReversalResult{
			Outcome:       OutcomeApprovalPending,
			TransactionID: txID,
			Approval:      &approval,
		}, nil
	}

	leases, err := s.lockAccounts(ctx, tx)
	if err != nil {
		return ReversalResult{}, err
	}
	defer cache.ReleaseAll(ctx, leases)

	now := s.clock.Now()
	var compensations []BalanceChange
	err = s.repo.WithTx(ctx, func(ctx context.Context, txRepo TxRepository) error {
		originals, err := txRepo.ListChanges(ctx, txID)
		if err != nil {
			return err
		}
		if len(originals) == 0 {
			return shared.Ef(shared.KindPreconditionFailed, "ledger: no balance changes recorded for %s", txID)
		}
		// The unique reversal marker is the race guard: a concurrent
		// reversal loses here with a conflict, not a double posting.
		if err := txRepo.MarkReversed(ctx, txID, txID, reversedBy, reason, now); err != nil {
			return err
		}
		balances := make(map[uuid.UUID]accounts.Account)
		for _, original := range originals {
			account, ok := balances[original.AccountID]
			if !ok {
				account, err = txRepo.GetAccountForUpdate(ctx, original.AccountID)
				if err != nil {
					return err
				}
			}
			compensation := BalanceChange{
				ID:               uuid.New(),
				AccountID:        original.AccountID,
				TransactionID:    txID,
				LineID:           original.LineID,
				LineType:         opposite(original.LineType),
				Amount:           original.Amount,
				PreviousBalance:  account.Balance,
				NormalBalance:    original.NormalBalance,
				Delta:            -original.Delta,
				ResultingBalance: balance.ProjectBalance(account.Balance, -original.Delta),
				Reversal:         true,
				CreatedAt:        now,
			}
			if err := txRepo.InsertChange(ctx, compensation); err != nil {
				return err
			}
			if err := txRepo.UpdateAccountBalance(ctx, account.ID, compensation.ResultingBalance); err != nil {
				return err
			}
			account.Balance = compensation.ResultingBalance
			balances[original.AccountID] = account
			compensations = append(compensations, compensation)
		}
		return txRepo.UpdateTransactionStatus(ctx, txID, transactions.StatusPosted, transactions.StatusVoided)
	})
	if err != nil {
		return ReversalResult{}, err
	}

	before := tx.Snapshot()
	tx.Status = transactions.StatusVoided
	s.finalize(ctx, tx, reversedBy, compensations, shared.EventTransactionReversed, "ledger.reverse", before)
	if s.metrics != nil {
		s.metrics.ReversalCommitted()
	}
	return ReversalResult{Outcome: OutcomeReversed, TransactionID: txID, Changes: compensations}, nil
}

// ensureApproved resolves the approval gate for a requirement: reuse a
// granted decision after verifying its proof, or open a request and
// suspend.
func (s *Service) ensureApproved(ctx context.Context, tx transactions.Transaction, requirement approvals.Requirement, actorID uuid.UUID) (approvals.Approval, bool, error) {
	entityID := tx.ID.String()
	granted, err := s.approvalSvc.ApprovedFor(ctx, transactions.EntityTypeTransaction, entityID, requirement.Type)
	if err == nil {
		if err := s.approvalSvc.VerifyDecision(ctx, transactions.EntityTypeTransaction, entityID); err != nil {
			return approvals.Approval{}, false, err
		}
		return granted, false, nil
	}
	if !shared.IsKind(err, shared.KindNotFound) {
		return approvals.Approval{}, false, err
	}

	approval, err := s.approvalSvc.Request(ctx, tx.CompanyID, transactions.EntityTypeTransaction, entityID, requirement, actorID)
	if err != nil {
		return approvals.Approval{}, false, err
	}
	if s.metrics != nil {
		s.metrics.ApprovalSuspended(string(requirement.Type))
	}
	return approval, true, nil
}

func (s *Service) lockAccounts(ctx context.Context, tx transactions.Transaction) ([]*cache.Lease, error) {
	if s.locker == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(tx.Lines))
	for _, id := range tx.AccountIDs() {
		keys = append(keys, cache.AccountLockKey(id.String()))
	}
	return s.locker.AcquireAll(ctx, keys)
}

// project predicts per-account posting effects without touching state.
func (s *Service) project(ctx context.Context, tx transactions.Transaction) ([]approvals.ProjectedBalance, error) {
	found, err := s.accountStore.FindByIDs(ctx, tx.AccountIDs())
	if err != nil {
		return nil, err
	}
	deltas := make(map[uuid.UUID]money.Cents, len(found))
	for _, line := range tx.Lines {
		account, ok := found[line.AccountID]
		if !ok {
			return nil, shared.Ef(shared.KindNotFound, "ledger: account %s not found", line.AccountID)
		}
		deltas[line.AccountID] += balance.Calculate(account.NormalBalance(), line.Type, line.Amount)
	}
	out := make([]approvals.ProjectedBalance, 0, len(deltas))
	for _, id := range tx.AccountIDs() {
		account := found[id]
		out = append(out, approvals.ProjectedBalance{
			AccountID: id,
			Type:      account.Type,
			Current:   account.Balance,
			Delta:     deltas[id],
			Projected: balance.ProjectBalance(account.Balance, deltas[id]),
		})
	}
	return out, nil
}

func typeDeltas(projections []approvals.ProjectedBalance) map[money.AccountType]money.Cents {
	out := make(map[money.AccountType]money.Cents)
	for _, p := range projections {
		out[p.Type] += p.Delta
	}
	return out
}

func opposite(side money.Side) money.Side {
	if side == money.SideDebit {
		return money.SideCredit
	}
	return money.SideDebit
}

// finalize anchors the committed fact into the ledger chain and emits the
// activity log and domain events. Failures here are logged, not fatal:
// the atomic unit already committed.
func (s *Service) finalize(ctx context.Context, tx transactions.Transaction, actorID uuid.UUID, changes []BalanceChange, event, action string, before map[string]any) {
	if s.chain != nil {
		contentHash, err := hashchain.FromState(tx.Snapshot())
		if err == nil {
			_, err = s.chain.Append(ctx, ChainName, contentHash)
		}
		if err != nil && s.logger != nil {
			s.logger.Error("anchor posting fact", slog.Any("error", err),
				slog.String("transaction_id", tx.ID.String()))
		}
	}

	now := s.clock.Now()
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, shared.Event{
			Name:       event,
			CompanyID:  tx.CompanyID,
			ActorID:    actorID,
			EntityType: transactions.EntityTypeTransaction,
			EntityID:   tx.ID.String(),
			At:         now,
			Payload:    map[string]any{"reference": tx.Reference, "lines": len(changes)},
		})
		s.dispatcher.Dispatch(ctx, shared.Event{
			Name:       shared.EventLedgerUpdated,
			CompanyID:  tx.CompanyID,
			ActorID:    actorID,
			EntityType: transactions.EntityTypeTransaction,
			EntityID:   tx.ID.String(),
			At:         now,
			Payload:    map[string]any{"changes": len(changes)},
		})
		for _, change := range changes {
			if change.ResultingBalance < 0 {
				s.dispatcher.Dispatch(ctx, shared.Event{
					Name:       shared.EventNegativeBalanceDetected,
					CompanyID:  tx.CompanyID,
					ActorID:    actorID,
					EntityType: "account",
					EntityID:   change.AccountID.String(),
					At:         now,
					Payload: map[string]any{
						"transaction_id":    tx.ID.String(),
						"resulting_balance": int64(change.ResultingBalance),
					},
				})
			}
		}
	}

	if s.sink != nil {
		_ = s.sink.Record(ctx, shared.ActivityLog{
			CompanyID:     tx.CompanyID,
			ActorID:       actorID,
			ActivityType:  event,
			EntityType:    transactions.EntityTypeTransaction,
			EntityID:      tx.ID.String(),
			Action:        action,
			PreviousState: before,
			NewState:      tx.Snapshot(),
			RequestID:     shared.RequestIDFromContext(ctx),
			At:            now,
		})
	}
}
