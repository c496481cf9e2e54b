package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "sercha-tube:lock:"

// Lock implements DistributedLock using Redis SET NX with a TTL.
// Ingestion takes "ingest:{video_id}" so two processes never write the
// same namespace at once. Each hold stores a token made of the instance's
// owner id and a fresh uuid; a lock is only released or extended with the
// token that took it.
type Lock struct {
	client  redis.UniversalClient
	ownerID string
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client redis.UniversalClient) *Lock {
	return &Lock{
		client:  client,
		ownerID: generateOwnerID(),
	}
}

// generateOwnerID returns hostname:pid:uuid
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), uuid.NewString())
}

// Acquire attempts to take the named lock. It reports false when another
// holder has it. Locks are not reentrant.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := l.ownerID + ":" + uuid.NewString()
	result, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !result {
		return "", false, nil
	}
	return token, true, nil
}

// releaseScript deletes the key only if the token still holds it
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases the named lock if token still holds it.
// Releasing an expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, name, token string) error {
	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// extendScript resets the TTL only if the token still holds the key
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend pushes out the TTL of a lock held under token.
func (l *Lock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	result, err := extendScript.Run(ctx, l.client, []string{lockPrefix + name}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if result == 0 {
		return fmt.Errorf("lock %s not held under this token", name)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the prefix of every token this instance writes.
func (l *Lock) OwnerID() string {
	return l.ownerID
}
