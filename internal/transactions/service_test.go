package transactions

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/shared"
)

type draftStore struct {
	seq   int64
	saved []Transaction
}

func (s *draftStore) Save(_ context.Context, tx Transaction) error {
	s.saved = append(s.saved, tx)
	return nil
}

func (s *draftStore) FindByID(_ context.Context, id uuid.UUID) (Transaction, error) {
	for _, tx := range s.saved {
		if tx.ID == id {
			return tx, nil
		}
	}
	return Transaction{}, shared.Ef(shared.KindNotFound, "transactions: %s not found", id)
}

func (s *draftStore) UpdateStatus(_ context.Context, _ uuid.UUID, _, _ Status) error {
	return nil
}

func (s *draftStore) ReplaceLines(_ context.Context, _ uuid.UUID, _ []Line) error {
	return nil
}

func (s *draftStore) NextReference(_ context.Context, _ uuid.UUID) (string, error) {
	s.seq++
	return fmt.Sprintf("TXN-%06d", s.seq), nil
}

func draftInput() CreateInput {
	return CreateInput{
		CompanyID:   uuid.New(),
		CreatedBy:   uuid.New(),
		Currency:    "USD",
		Description: "office chair purchase",
		Date:        time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineInput{
			{AccountID: uuid.New(), Type: money.SideDebit, Amount: 25_000},
			{AccountID: uuid.New(), Type: money.SideCredit, Amount: 25_000},
		},
	}
}

func TestDrafterAssignsSequentialReferences(t *testing.T) {
	store := &draftStore{}
	drafter := NewDrafter(store)

	first, err := drafter.Draft(context.Background(), draftInput())
	require.NoError(t, err)
	second, err := drafter.Draft(context.Background(), draftInput())
	require.NoError(t, err)

	assert.Equal(t, "TXN-000001", first.Reference)
	assert.Equal(t, "TXN-000002", second.Reference)
	assert.Equal(t, StatusDraft, first.Status)
	require.Len(t, store.saved, 2)
	assert.Equal(t, first.Reference, store.saved[0].Reference)
}

func TestDrafterRejectsInvalidInputBeforeAllocating(t *testing.T) {
	store := &draftStore{}
	drafter := NewDrafter(store)

	in := draftInput()
	in.Lines = in.Lines[:1]

	_, err := drafter.Draft(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, shared.KindValidationFailed, shared.KindOf(err))
	assert.Zero(t, store.seq, "no reference is burned on invalid input")
	assert.Empty(t, store.saved)
}
