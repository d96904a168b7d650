package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-books/meridian/internal/shared"
)

func newTestLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client, time.Minute), mr
}

func TestLockerAcquireRelease(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, AccountLockKey("acc-1"))
	require.NoError(t, err)
	assert.True(t, mr.Exists(AccountLockKey("acc-1")))

	lease.Release(ctx)
	assert.False(t, mr.Exists(AccountLockKey("acc-1")))
}

func TestLockerConflictWhenHeld(t *testing.T) {
	locker, _ := newTestLocker(t)
	locker.timeout = 50 * time.Millisecond
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = locker.Acquire(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, shared.KindConflictDetected, shared.KindOf(err))
}

func TestLockerAcquireAllOrdersAndRollsBack(t *testing.T) {
	locker, mr := newTestLocker(t)
	locker.timeout = 50 * time.Millisecond
	ctx := context.Background()

	held, err := locker.Acquire(ctx, AccountLockKey("b"))
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = locker.AcquireAll(ctx, []string{AccountLockKey("c"), AccountLockKey("b"), AccountLockKey("a")})
	require.Error(t, err)
	// Locks taken before the failure must have been released.
	assert.False(t, mr.Exists(AccountLockKey("a")))
	assert.False(t, mr.Exists(AccountLockKey("c")))

	leases, err := locker.AcquireAll(ctx, []string{AccountLockKey("y"), AccountLockKey("x")})
	require.NoError(t, err)
	assert.Len(t, leases, 2)
	ReleaseAll(ctx, leases)
	assert.False(t, mr.Exists(AccountLockKey("x")))
	assert.False(t, mr.Exists(AccountLockKey("y")))
}

func TestLeaseReleaseOnlyOwnToken(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	// Simulate expiry plus reacquisition by another holder.
	mr.Set("k", "other-token")
	lease.Release(ctx)
	val, _ := mr.Get("k")
	assert.Equal(t, "other-token", val)
}
