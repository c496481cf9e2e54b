package driving

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// IngestionService turns a video's transcript into indexed passages
type IngestionService interface {
	// Process runs fetch, chunk, fit, encode and upsert for one video.
	// The returned result is always non-nil; on failure it carries the
	// error message and the error is a *domain.PipelineError.
	Process(ctx context.Context, videoID string) (*domain.IngestionResult, error)

	// ProcessAsync enqueues a process_video task and returns it.
	ProcessAsync(ctx context.Context, videoID string) (*domain.Task, error)

	// Status reports what is known about a video.
	Status(ctx context.Context, videoID string) (*domain.VideoStatus, error)

	// Delete removes the video's passages, sparse snapshot and ingestion record.
	Delete(ctx context.Context, videoID string) error
}
