package driven

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// SparseModelStore persists fitted lexical encoder state per namespace so
// sparse matching survives a restart.
type SparseModelStore interface {
	// Load returns the stats for the namespace, or nil, nil if none exist.
	Load(ctx context.Context, namespace string) (*domain.SparseStats, error)

	// Version returns the stored stats' version without loading them. ok is
	// false when the namespace has no stats.
	Version(ctx context.Context, namespace string) (version int64, ok bool, err error)

	// Save replaces the stats for stats.Namespace.
	Save(ctx context.Context, stats *domain.SparseStats) error

	// Delete removes the namespace's stats. Missing is not an error.
	Delete(ctx context.Context, namespace string) error
}
