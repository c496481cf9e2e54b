package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.IngestionStore = (*IngestionStore)(nil)

// IngestionStore implements driven.IngestionStore using PostgreSQL
type IngestionStore struct {
	db *DB
}

// NewIngestionStore creates a new IngestionStore
func NewIngestionStore(db *DB) *IngestionStore {
	return &IngestionStore{db: db}
}

// Get retrieves the last ingestion record of a video
func (s *IngestionStore) Get(ctx context.Context, videoID string) (*domain.IngestionRecord, error) {
	query := `
		SELECT video_id, run_id, state, chunks, error, error_kind, started_at, completed_at
		FROM ingestion_records
		WHERE video_id = $1
	`

	var rec domain.IngestionRecord
	var state string
	var errMsg, errKind sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, videoID).Scan(
		&rec.VideoID,
		&rec.RunID,
		&state,
		&rec.Chunks,
		&errMsg,
		&errKind,
		&rec.StartedAt,
		&completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ingestion record: %w", err)
	}

	rec.State = domain.IngestionState(state)
	rec.Error = errMsg.String
	rec.ErrorKind = domain.ErrorKind(errKind.String)
	rec.CompletedAt = timePtr(completedAt)

	return &rec, nil
}

// Save upserts the record
func (s *IngestionStore) Save(ctx context.Context, rec *domain.IngestionRecord) error {
	query := `
		INSERT INTO ingestion_records (video_id, run_id, state, chunks, error, error_kind,
									   started_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (video_id) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			state = EXCLUDED.state,
			chunks = EXCLUDED.chunks,
			error = EXCLUDED.error,
			error_kind = EXCLUDED.error_kind,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.VideoID,
		rec.RunID,
		string(rec.State),
		rec.Chunks,
		nullString(rec.Error),
		nullString(string(rec.ErrorKind)),
		rec.StartedAt,
		nullTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save ingestion record: %w", err)
	}
	return nil
}

// Delete removes the record of a video
func (s *IngestionStore) Delete(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingestion_records WHERE video_id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("delete ingestion record: %w", err)
	}
	return nil
}
