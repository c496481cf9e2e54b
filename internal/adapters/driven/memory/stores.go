package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.IngestionStore   = (*IngestionStore)(nil)
	_ driven.SparseModelStore = (*SparseModelStore)(nil)
)

// IngestionStore keeps ingestion records in a map
type IngestionStore struct {
	mu      sync.RWMutex
	records map[string]domain.IngestionRecord
}

// NewIngestionStore creates an empty store
func NewIngestionStore() *IngestionStore {
	return &IngestionStore{records: make(map[string]domain.IngestionRecord)}
}

func (s *IngestionStore) Get(ctx context.Context, videoID string) (*domain.IngestionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[videoID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (s *IngestionStore) Save(ctx context.Context, record *domain.IngestionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.VideoID] = *record
	return nil
}

func (s *IngestionStore) Delete(ctx context.Context, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, videoID)
	return nil
}

// SparseModelStore keeps fitted encoder stats in a map. Stats are
// immutable once built, so the pointers are shared.
type SparseModelStore struct {
	mu    sync.RWMutex
	stats map[string]*domain.SparseStats
}

// NewSparseModelStore creates an empty store
func NewSparseModelStore() *SparseModelStore {
	return &SparseModelStore{stats: make(map[string]*domain.SparseStats)}
}

func (s *SparseModelStore) Load(ctx context.Context, namespace string) (*domain.SparseStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[namespace], nil
}

func (s *SparseModelStore) Version(ctx context.Context, namespace string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.stats[namespace]
	if !ok {
		return 0, false, nil
	}
	return stats.Version(), true, nil
}

func (s *SparseModelStore) Save(ctx context.Context, stats *domain.SparseStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[stats.Namespace] = stats
	return nil
}

func (s *SparseModelStore) Delete(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, namespace)
	return nil
}
