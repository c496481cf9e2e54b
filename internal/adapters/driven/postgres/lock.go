package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
//
// Advisory locks belong to a session, so each held lock pins one pooled
// connection until it is released. If that connection drops, PostgreSQL
// releases the lock. The TTL is ignored and Extend only checks the token.
type AdvisoryLock struct {
	db *DB

	mu   sync.Mutex
	held map[string]advisoryHold
}

type advisoryHold struct {
	conn  *sql.Conn
	token string
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:   db,
		held: make(map[string]advisoryHold),
	}
}

// hashLockName converts a lock name to the 64-bit key PostgreSQL expects.
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("sercha-tube:lock:" + name))
	return int64(h.Sum64())
}

// Acquire tries pg_try_advisory_lock on a dedicated connection and
// returns immediately. A name already held by this process reports false.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.held[name]; held {
		return "", false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", hashLockName(name)).Scan(&acquired); err != nil {
		conn.Close()
		return "", false, err
	}
	if !acquired {
		conn.Close()
		return "", false, nil
	}

	token := uuid.NewString()
	l.held[name] = advisoryHold{conn: conn, token: token}
	return token, true, nil
}

// Release unlocks on the connection that acquired the lock and returns
// it to the pool. Safe to call when the lock is not held or the token is
// not the current one.
func (l *AdvisoryLock) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	hold, ok := l.held[name]
	if !ok || hold.token != token {
		l.mu.Unlock()
		return nil
	}
	delete(l.held, name)
	l.mu.Unlock()

	defer hold.conn.Close()

	var released bool
	if err := hold.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", hashLockName(name)).Scan(&released); err != nil {
		// closing the session below releases it anyway
		return err
	}
	return nil
}

// Extend only verifies the hold: advisory locks are held until released
// or the session ends.
func (l *AdvisoryLock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hold, ok := l.held[name]; !ok || hold.token != token {
		return fmt.Errorf("lock %s not held", name)
	}
	return nil
}

// Ping checks if the PostgreSQL backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
