package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IngestionStore = (*IngestionStore)(nil)

const ingestionPrefix = "sercha-tube:ingestion:"

// DefaultIngestionRecordTTL is how long a record outlives its last update
const DefaultIngestionRecordTTL = 30 * 24 * time.Hour

// IngestionStore implements driven.IngestionStore using Redis.
// Records expire after a TTL; the indexed passages do not.
type IngestionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewIngestionStore creates a new Redis-backed IngestionStore.
// ttl <= 0 uses DefaultIngestionRecordTTL.
func NewIngestionStore(client redis.UniversalClient, ttl time.Duration) *IngestionStore {
	if ttl <= 0 {
		ttl = DefaultIngestionRecordTTL
	}
	return &IngestionStore{client: client, ttl: ttl}
}

// Get retrieves the last ingestion record of a video
func (s *IngestionStore) Get(ctx context.Context, videoID string) (*domain.IngestionRecord, error) {
	data, err := s.client.Get(ctx, ingestionPrefix+videoID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion record: %w", err)
	}

	var record domain.IngestionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingestion record: %w", err)
	}
	return &record, nil
}

// Save stores the record and refreshes its TTL
func (s *IngestionStore) Save(ctx context.Context, record *domain.IngestionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion record: %w", err)
	}
	if err := s.client.Set(ctx, ingestionPrefix+record.VideoID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save ingestion record: %w", err)
	}
	return nil
}

// Delete removes the record
func (s *IngestionStore) Delete(ctx context.Context, videoID string) error {
	if err := s.client.Del(ctx, ingestionPrefix+videoID).Err(); err != nil {
		return fmt.Errorf("failed to delete ingestion record: %w", err)
	}
	return nil
}
