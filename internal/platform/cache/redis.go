// Package cache provides the Redis client and the locks that serialize
// posting and hash-chain appends.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client and verifies connectivity. The client is
// returned even when the ping fails: redis may come up after us, and the
// caller decides whether a failed ping is fatal.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// AccountLockKey builds the key serializing balance updates per account.
func AccountLockKey(accountID string) string {
	return fmt.Sprintf("ledger:account:%s:lock", accountID)
}

// ChainTailLockKey is the key serializing hash-chain appends. Appends must
// be globally ordered so each link references the true current tail.
func ChainTailLockKey(chain string) string {
	return fmt.Sprintf("hashchain:%s:tail:lock", chain)
}
