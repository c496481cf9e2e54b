package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgadapter "github.com/custodia-labs/sercha-tube/internal/adapters/driven/postgres"
	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{4, 16 * time.Second},
		{8, maxBackoff},
		{40, maxBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryBackoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

// setupQueue connects to SERCHA_TEST_DATABASE_URL or skips.
func setupQueue(t *testing.T) *Queue {
	t.Helper()

	url := os.Getenv("SERCHA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SERCHA_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := pgadapter.Connect(ctx, pgadapter.DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.InitSchema(ctx))

	_, err = db.ExecContext(ctx, `DELETE FROM tasks`)
	require.NoError(t, err)

	q := NewQueue(db.DB)
	q.poll = 10 * time.Millisecond
	return q
}

func TestQueue_Lifecycle(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	task := domain.NewProcessVideoTask("v1")
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "v1", got.VideoID())
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)

	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty, "a processing task must not be handed out twice")

	require.NoError(t, q.Ack(ctx, task.ID))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.CompletedCount)
}

func TestQueue_NackWithoutAttemptsLeftFails(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	task := domain.NewProcessVideoTask("v2")
	require.NoError(t, q.Enqueue(ctx, task))

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Nack(ctx, task.ID, "transcript not found"))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, "transcript not found", stored.Error)
}

func TestQueue_DequeueWithTimeoutReturnsNil(t *testing.T) {
	q := setupQueue(t)

	start := time.Now()
	task, err := q.DequeueWithTimeout(context.Background(), 1)

	require.NoError(t, err)
	assert.Nil(t, task)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	q := setupQueue(t)

	_, err := q.GetTask(context.Background(), "missing")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
