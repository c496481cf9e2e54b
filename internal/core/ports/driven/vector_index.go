package driven

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// VectorIndex stores passages with a dense and a sparse vector each and
// answers hybrid queries inside one namespace. Implementations: pgvector,
// Vespa, in-memory.
type VectorIndex interface {
	// EnsureIndex creates the index if missing and verifies an existing one
	// was built for the same dimension and metric. A mismatch returns
	// domain.ErrDimensionMismatch.
	EnsureIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error

	// Upsert writes passages into the namespace, replacing any with the same ID.
	Upsert(ctx context.Context, namespace string, passages []*domain.Passage) error

	// Replace makes passages the namespace's whole content: they are written
	// by ID and passages at a position past the new ones are removed. The
	// previous passages stay queryable until the write succeeds. On failure
	// the namespace is left as it was where the backend supports
	// transactions (pgvector, memory); Vespa may hold overwritten passages
	// but never loses positions.
	Replace(ctx context.Context, namespace string, passages []*domain.Passage) error

	// Query runs one hybrid search. Matches are ordered by descending fused
	// score. An unknown namespace yields an empty result, not an error.
	Query(ctx context.Context, query domain.HybridQuery) ([]domain.Match, error)

	// DeleteNamespace removes every passage of the namespace.
	DeleteNamespace(ctx context.Context, namespace string) error

	// Stats describes the namespace.
	Stats(ctx context.Context, namespace string) (*domain.IndexStats, error)

	// HealthCheck verifies the index backend is available
	HealthCheck(ctx context.Context) error
}
