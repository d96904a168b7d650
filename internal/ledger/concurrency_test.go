package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-books/meridian/internal/money"
	"github.com/meridian-books/meridian/internal/platform/cache"
	"github.com/meridian-books/meridian/internal/transactions"
)

func lockedFixture(t *testing.T) (*fixture, *cache.Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := cache.NewLocker(client, time.Minute)
	return newFixtureWithLocker(t, permissiveEngine(), locker), locker
}

func TestPostingProceedsOnDisjointAccountsWhileAnotherIsLocked(t *testing.T) {
	f, locker := lockedFixture(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, cache.AccountLockKey(f.cash.String()))
	require.NoError(t, err)

	disjoint := f.draft(10_000, f.expense, f.equity)
	result, err := f.svc.Post(ctx, disjoint.ID, uuid.New())
	require.NoError(t, err, "a posting that never touches the locked account must not wait on it")
	assert.Equal(t, OutcomePosted, result.Outcome)

	lease.Release(ctx)

	contended := f.draft(5_000, f.cash, f.revenue)
	result, err = f.svc.Post(ctx, contended.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, result.Outcome)
}

func TestConcurrentSameAccountPostingsLoseNoUpdates(t *testing.T) {
	f, _ := lockedFixture(t)

	const workers = 8
	const amount = money.Cents(1_000)
	drafts := make([]transactions.Transaction, workers)
	for i := range drafts {
		drafts[i] = f.draft(amount, f.cash, f.revenue)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, tx := range drafts {
		g.Go(func() error {
			_, err := f.svc.Post(ctx, tx.ID, uuid.New())
			return err
		})
	}
	require.NoError(t, g.Wait())

	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	assert.Equal(t, money.Cents(100_000)+workers*amount, f.store.accounts[f.cash].Balance)
	assert.Equal(t, workers*amount, f.store.accounts[f.revenue].Balance)
	assert.Len(t, f.store.changes, 2*workers, "one change per line, no duplicates")
	for _, tx := range drafts {
		assert.Equal(t, transactions.StatusPosted, f.store.txs[tx.ID].Status)
	}
}
