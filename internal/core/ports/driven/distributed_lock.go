package driven

import (
	"context"
	"time"
)

// DistributedLock provides named locks for coordinating work across instances.
// Ingestion holds "ingest:{video_id}" so two runs never write one namespace at once.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// acquired is false if another holder has it. On success token
	// identifies this hold; Release and Extend only act on the current token,
	// so a holder whose lock expired cannot free its successor's.
	// The lock will automatically expire after TTL (implementation dependent).
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, acquired bool, err error)

	// Release releases a named lock held under token.
	// Safe to call even if the lock is not held, has expired or was taken over.
	Release(ctx context.Context, name, token string) error

	// Extend extends the TTL of a lock held under token.
	// Returns error if the lock is not held under that token.
	// Note: Not all implementations support TTL extension (e.g., PostgreSQL advisory locks).
	Extend(ctx context.Context, name, token string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
