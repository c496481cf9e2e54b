package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SparseModelStore = (*SparseModelStore)(nil)

const (
	sparsePrefix        = "sercha-tube:sparse:"
	sparseVersionPrefix = "sercha-tube:sparse-version:"
	sparseNamespacesKey = "sercha-tube:sparse:namespaces"
)

// SparseModelStore keeps each namespace's fitted BM25 statistics as JSON.
// Snapshots have no TTL; they live as long as the namespace's passages.
type SparseModelStore struct {
	client redis.UniversalClient
}

// NewSparseModelStore creates a new Redis-backed SparseModelStore
func NewSparseModelStore(client redis.UniversalClient) *SparseModelStore {
	return &SparseModelStore{client: client}
}

// Load returns the namespace's stats, or nil, nil when none are stored
func (s *SparseModelStore) Load(ctx context.Context, namespace string) (*domain.SparseStats, error) {
	data, err := s.client.Get(ctx, sparsePrefix+namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sparse stats: %w", err)
	}

	var stats domain.SparseStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sparse stats: %w", err)
	}
	return &stats, nil
}

// Version reads the namespace's version key, which Save writes together
// with the stats.
func (s *SparseModelStore) Version(ctx context.Context, namespace string) (int64, bool, error) {
	version, err := s.client.Get(ctx, sparseVersionPrefix+namespace).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read sparse stats version: %w", err)
	}
	return version, true, nil
}

// Save replaces the namespace's stats in one transaction
func (s *SparseModelStore) Save(ctx context.Context, stats *domain.SparseStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal sparse stats: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sparsePrefix+stats.Namespace, data, 0)
	pipe.Set(ctx, sparseVersionPrefix+stats.Namespace, stats.Version(), 0)
	pipe.SAdd(ctx, sparseNamespacesKey, stats.Namespace)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save sparse stats: %w", err)
	}
	return nil
}

// Delete removes the namespace's stats
func (s *SparseModelStore) Delete(ctx context.Context, namespace string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sparsePrefix+namespace, sparseVersionPrefix+namespace)
	pipe.SRem(ctx, sparseNamespacesKey, namespace)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete sparse stats: %w", err)
	}
	return nil
}

// Namespaces lists every namespace with stored stats
func (s *SparseModelStore) Namespaces(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, sparseNamespacesKey).Result()
}
