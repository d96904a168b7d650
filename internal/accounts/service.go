package accounts

import (
	"context"

	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/shared"
)

// Service covers account lifecycle outside of posting: creation,
// activation and renames. Balance movement belongs to the ledger service.
type Service struct {
	repo  Repository
	sink  shared.ActivitySink
	clock shared.Clock
}

// NewService constructs the account service.
func NewService(repo Repository, sink shared.ActivitySink, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &Service{repo: repo, sink: sink, clock: clock}
}

// Create registers a new account with a company-unique code.
func (s *Service) Create(ctx context.Context, code, name string, companyID, actorID uuid.UUID) (Account, error) {
	account, err := New(code, name, companyID)
	if err != nil {
		return Account{}, err
	}
	exists, err := s.repo.ExistsByCode(ctx, companyID, account.Code)
	if err != nil {
		return Account{}, err
	}
	if exists {
		return Account{}, shared.Ef(shared.KindValidationFailed, "accounts: code %s already in use", account.Code)
	}
	if err := s.repo.Save(ctx, account); err != nil {
		return Account{}, err
	}
	s.record(ctx, account, actorID, "account.create", nil)
	return account, nil
}

// Rename updates the account display name.
func (s *Service) Rename(ctx context.Context, id uuid.UUID, name string, actorID uuid.UUID) (Account, error) {
	return s.mutate(ctx, id, actorID, "account.rename", func(a *Account) error {
		return a.Rename(name)
	})
}

// Activate marks the account usable for posting.
func (s *Service) Activate(ctx context.Context, id, actorID uuid.UUID) (Account, error) {
	return s.mutate(ctx, id, actorID, "account.activate", func(a *Account) error {
		a.Activate()
		return nil
	})
}

// Deactivate blocks the account from new postings.
func (s *Service) Deactivate(ctx context.Context, id, actorID uuid.UUID) (Account, error) {
	return s.mutate(ctx, id, actorID, "account.deactivate", func(a *Account) error {
		a.Deactivate()
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id, actorID uuid.UUID, action string, fn func(*Account) error) (Account, error) {
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	before := account.Snapshot()
	if err := fn(&account); err != nil {
		return Account{}, err
	}
	account.Version++
	if err := s.repo.Save(ctx, account); err != nil {
		return Account{}, err
	}
	s.record(ctx, account, actorID, action, before)
	return account, nil
}

func (s *Service) record(ctx context.Context, account Account, actorID uuid.UUID, action string, before map[string]any) {
	if s.sink == nil {
		return
	}
	_ = s.sink.Record(ctx, shared.ActivityLog{
		CompanyID:     account.CompanyID,
		ActorID:       actorID,
		ActivityType:  action,
		EntityType:    "account",
		EntityID:      account.ID.String(),
		Action:        action,
		PreviousState: before,
		NewState:      account.Snapshot(),
		RequestID:     shared.RequestIDFromContext(ctx),
		At:            s.clock.Now(),
	})
}
