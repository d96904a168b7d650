package cache

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-books/meridian/internal/shared"
)

// releaseScript deletes the lock key only when it still holds our token,
// so an expired-and-reacquired lock is never released by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker acquires short-lived exclusive locks backed by Redis SET NX PX.
type Locker struct {
	client  *redis.Client
	ttl     time.Duration
	retry   time.Duration
	timeout time.Duration
}

// NewLocker constructs a Locker with the given lease TTL.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	return &Locker{
		client:  client,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		timeout: 5 * time.Second,
	}
}

// Lease is one held lock.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

// Acquire blocks until the key is locked or the acquisition window runs
// out, in which case it reports a conflict.
func (l *Locker) Acquire(ctx context.Context, key string) (*Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, shared.Wrap(shared.KindConflictDetected, "cache: acquire lock "+key, err)
		}
		if ok {
			return &Lease{locker: l, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, shared.Ef(shared.KindConflictDetected, "cache: lock %s held by another operation", key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// AcquireAll locks every key in a canonical order to avoid deadlocks
// between postings that touch overlapping account sets. On failure every
// lock taken so far is released.
func (l *Locker) AcquireAll(ctx context.Context, keys []string) ([]*Lease, error) {
	ordered := append([]string(nil), keys...)
	sort.Strings(ordered)
	leases := make([]*Lease, 0, len(ordered))
	for _, key := range ordered {
		lease, err := l.Acquire(ctx, key)
		if err != nil {
			ReleaseAll(ctx, leases)
			return nil, err
		}
		leases = append(leases, lease)
	}
	return leases, nil
}

// Release frees the lock if it is still held by this lease.
func (le *Lease) Release(ctx context.Context) {
	if le == nil {
		return
	}
	_ = releaseScript.Run(ctx, le.locker.client, []string{le.key}, le.token).Err()
}

// ReleaseAll frees a set of leases in reverse acquisition order.
func ReleaseAll(ctx context.Context, leases []*Lease) {
	for i := len(leases) - 1; i >= 0; i-- {
		leases[i].Release(ctx)
	}
}
