package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure MockReranker implements Reranker
var _ driven.Reranker = (*MockReranker)(nil)

// MockReranker scores passages by how many question words they contain,
// unless ScoreFn overrides it.
type MockReranker struct {
	mu    sync.Mutex
	err   error
	calls int

	ScoreFn func(question string, passages []string) ([]float32, error)
}

// NewMockReranker creates a new MockReranker
func NewMockReranker() *MockReranker {
	return &MockReranker{}
}

func (m *MockReranker) Score(ctx context.Context, question string, passages []string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	fn, err := m.ScoreFn, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(question, passages)
	}
	if err != nil {
		return nil, err
	}

	words := strings.Fields(strings.ToLower(question))
	scores := make([]float32, len(passages))
	for i, p := range passages {
		lower := strings.ToLower(p)
		for _, w := range words {
			if strings.Contains(lower, w) {
				scores[i]++
			}
		}
	}
	return scores, nil
}

func (m *MockReranker) Model() string {
	return "mock-reranker"
}

// SetError makes Score fail with err
func (m *MockReranker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Score was called
func (m *MockReranker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
