package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force in-process index. Every query scores the
// whole namespace exactly. Contents do not survive a restart.
type VectorIndex struct {
	mu         sync.RWMutex
	alpha      float64
	dimension  int
	namespaces map[string]map[string]*domain.Passage
}

// NewVectorIndex creates an empty index. alpha weights dense against
// sparse scores; values outside (0, 1] fall back to the default.
func NewVectorIndex(alpha float64) *VectorIndex {
	if alpha <= 0 || alpha > 1 {
		alpha = domain.DefaultHybridAlpha
	}
	return &VectorIndex{
		alpha:      alpha,
		namespaces: make(map[string]map[string]*domain.Passage),
	}
}

// EnsureIndex fixes the dimension on first call
func (v *VectorIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	if metric != domain.MetricDotProduct {
		return fmt.Errorf("%w: unsupported metric %q", domain.ErrInvalidInput, metric)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dimension != 0 && v.dimension != dimension {
		return fmt.Errorf("%w: index has %d, want %d", domain.ErrDimensionMismatch, v.dimension, dimension)
	}
	v.dimension = dimension
	return nil
}

// Upsert stores copies of the passages
func (v *VectorIndex) Upsert(ctx context.Context, namespace string, passages []*domain.Passage) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, p := range passages {
		if v.dimension != 0 && len(p.DenseVector) != v.dimension {
			return fmt.Errorf("%w: passage %s has %d, index has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.DenseVector), v.dimension)
		}
	}

	ns, ok := v.namespaces[namespace]
	if !ok {
		ns = make(map[string]*domain.Passage)
		v.namespaces[namespace] = ns
	}
	for _, p := range passages {
		cp := *p
		ns[p.ID] = &cp
	}
	return nil
}

// Replace swaps in a new namespace map under the write lock, so readers see
// either the old or the new passages.
func (v *VectorIndex) Replace(ctx context.Context, namespace string, passages []*domain.Passage) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	ns := make(map[string]*domain.Passage, len(passages))
	for _, p := range passages {
		if v.dimension != 0 && len(p.DenseVector) != v.dimension {
			return fmt.Errorf("%w: passage %s has %d, index has %d",
				domain.ErrDimensionMismatch, p.ID, len(p.DenseVector), v.dimension)
		}
		cp := *p
		ns[p.ID] = &cp
	}
	v.namespaces[namespace] = ns
	return nil
}

// Query scores every passage of the namespace. Ties break on id.
func (v *VectorIndex) Query(ctx context.Context, q domain.HybridQuery) ([]domain.Match, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ns := v.namespaces[q.Namespace]
	matches := make([]domain.Match, 0, len(ns))
	for _, p := range ns {
		score := domain.FuseScores(v.alpha, domain.DenseDot(q.Dense, p.DenseVector), q.Sparse.Dot(p.SparseVector))
		m := domain.Match{ID: p.ID, Score: score}
		if q.IncludeMetadata {
			m.Text = p.Text
		}
		matches = append(matches, m)
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})

	topK := q.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteNamespace drops the namespace
func (v *VectorIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.namespaces, namespace)
	return nil
}

// Stats counts the namespace's passages
func (v *VectorIndex) Stats(ctx context.Context, namespace string) (*domain.IndexStats, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return &domain.IndexStats{
		Namespace:    namespace,
		PassageCount: len(v.namespaces[namespace]),
		Dimension:    v.dimension,
	}, nil
}

// HealthCheck always succeeds
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}
