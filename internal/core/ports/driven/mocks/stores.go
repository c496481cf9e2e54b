package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure mocks implement their interfaces
var (
	_ driven.IngestionStore   = (*MockIngestionStore)(nil)
	_ driven.SparseModelStore = (*MockSparseModelStore)(nil)
)

// MockIngestionStore is an in-memory IngestionStore for testing
type MockIngestionStore struct {
	mu      sync.RWMutex
	records map[string]*domain.IngestionRecord

	SaveErr   error
	SaveCalls int
}

// NewMockIngestionStore creates a new MockIngestionStore
func NewMockIngestionStore() *MockIngestionStore {
	return &MockIngestionStore{records: make(map[string]*domain.IngestionRecord)}
}

func (m *MockIngestionStore) Get(ctx context.Context, videoID string) (*domain.IngestionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockIngestionStore) Save(ctx context.Context, record *domain.IngestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *record
	m.records[record.VideoID] = &cp
	return nil
}

func (m *MockIngestionStore) Delete(ctx context.Context, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, videoID)
	return nil
}

// MockSparseModelStore is an in-memory SparseModelStore for testing
type MockSparseModelStore struct {
	mu    sync.RWMutex
	stats map[string]*domain.SparseStats

	LoadCalls    int
	SaveCalls    int
	VersionCalls int
	SaveErr      error
	VersionErr   error
}

// NewMockSparseModelStore creates a new MockSparseModelStore
func NewMockSparseModelStore() *MockSparseModelStore {
	return &MockSparseModelStore{stats: make(map[string]*domain.SparseStats)}
}

func (m *MockSparseModelStore) Load(ctx context.Context, namespace string) (*domain.SparseStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	return m.stats[namespace], nil
}

func (m *MockSparseModelStore) Version(ctx context.Context, namespace string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VersionCalls++
	if m.VersionErr != nil {
		return 0, false, m.VersionErr
	}
	stats, ok := m.stats[namespace]
	if !ok {
		return 0, false, nil
	}
	return stats.Version(), true, nil
}

func (m *MockSparseModelStore) Save(ctx context.Context, stats *domain.SparseStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.stats[stats.Namespace] = stats
	return nil
}

func (m *MockSparseModelStore) Delete(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stats, namespace)
	return nil
}
