package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure MockVectorIndex implements VectorIndex
var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory VectorIndex for testing.
// Scores are the plain sum of dense and sparse inner products.
type MockVectorIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]*domain.Passage

	UpsertErr error
	QueryErr  error
	DeleteErr error

	UpsertCalls int
	QueryCalls  int
	DeleteCalls int
	LastQuery   domain.HybridQuery
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		namespaces: make(map[string]map[string]*domain.Passage),
	}
}

func (m *MockVectorIndex) EnsureIndex(ctx context.Context, name string, dimension int, metric domain.Metric) error {
	return nil
}

func (m *MockVectorIndex) Upsert(ctx context.Context, namespace string, passages []*domain.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]*domain.Passage)
		m.namespaces[namespace] = ns
	}
	for _, p := range passages {
		ns[p.ID] = p
	}
	return nil
}

// Replace swaps the namespace content in one step. It fails with UpsertErr
// and counts as an upsert call.
func (m *MockVectorIndex) Replace(ctx context.Context, namespace string, passages []*domain.Passage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	ns := make(map[string]*domain.Passage, len(passages))
	for _, p := range passages {
		ns[p.ID] = p
	}
	m.namespaces[namespace] = ns
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, query domain.HybridQuery) ([]domain.Match, error) {
	m.mu.Lock()
	m.QueryCalls++
	m.LastQuery = query
	err := m.QueryErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns := m.namespaces[query.Namespace]
	matches := make([]domain.Match, 0, len(ns))
	for _, p := range ns {
		score := domain.DenseDot(query.Dense, p.DenseVector) + query.Sparse.Dot(p.SparseVector)
		match := domain.Match{ID: p.ID, Score: score}
		if query.IncludeMetadata {
			match.Text = p.Text
		}
		matches = append(matches, match)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if query.TopK > 0 && len(matches) > query.TopK {
		matches = matches[:query.TopK]
	}
	return matches, nil
}

func (m *MockVectorIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.namespaces, namespace)
	return nil
}

func (m *MockVectorIndex) Stats(ctx context.Context, namespace string) (*domain.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &domain.IndexStats{
		Namespace:    namespace,
		PassageCount: len(m.namespaces[namespace]),
		Dimension:    384,
	}, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

// Passages returns the stored passages of a namespace (for test assertions)
func (m *MockVectorIndex) Passages(namespace string) []*domain.Passage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Passage, 0, len(m.namespaces[namespace]))
	for _, p := range m.namespaces[namespace] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}
