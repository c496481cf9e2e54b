package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local DistributedLock with TTL expiry. It only
// coordinates goroutines of one process. Every hold gets its own token, so
// a holder whose TTL ran out cannot release or extend its successor's hold.
type Lock struct {
	mu    sync.Mutex
	held  map[string]hold
	clock func() time.Time
}

type hold struct {
	token   string
	expires time.Time
}

// NewLock creates an empty lock table
func NewLock() *Lock {
	return &Lock{
		held:  make(map[string]hold),
		clock: time.Now,
	}
}

func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[name]; ok && now.Before(h.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[name] = hold{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *Lock) Release(ctx context.Context, name, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.held[name]; ok && h.token == token {
		delete(l.held, name)
	}
	return nil
}

func (l *Lock) Extend(ctx context.Context, name, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	h, ok := l.held[name]
	if !ok || h.token != token || !now.Before(h.expires) {
		return fmt.Errorf("lock %s not held", name)
	}
	h.expires = now.Add(ttl)
	l.held[name] = h
	return nil
}

func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
