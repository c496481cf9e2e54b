package driven

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// IngestionStore persists the status of the last ingestion per video
type IngestionStore interface {
	// Get returns the record for a video, or domain.ErrNotFound
	Get(ctx context.Context, videoID string) (*domain.IngestionRecord, error)

	// Save creates or replaces the record for record.VideoID
	Save(ctx context.Context, record *domain.IngestionRecord) error

	// Delete removes the record. Missing is not an error.
	Delete(ctx context.Context, videoID string) error
}
