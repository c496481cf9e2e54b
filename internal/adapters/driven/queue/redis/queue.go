package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

const (
	taskStream = "sercha-tube:tasks"
	taskGroup  = "sercha-tube:workers"

	taskKeyPrefix = "sercha-tube:task:"
	completedKey  = "sercha-tube:tasks:completed"
	failedKey     = "sercha-tube:tasks:failed"

	consumerPrefix = "worker-"

	// taskTTL bounds how long finished task records can be polled
	taskTTL = 24 * time.Hour

	// claimTimeout is how long a delivered task may sit unacknowledged
	// before another worker takes it over
	claimTimeout = 20 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue using a Redis Stream and a consumer group.
// The stream entry carries only the task id; the task itself is a JSON
// value under sercha-tube:task:{id}.
type Queue struct {
	client       redis.UniversalClient
	consumerName string
}

// NewQueue creates a new Redis-backed task queue.
// consumerName should be unique per worker instance.
func NewQueue(ctx context.Context, client redis.UniversalClient, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = fmt.Sprintf("%s%d", consumerPrefix, time.Now().UnixNano())
	}

	q := &Queue{
		client:       client,
		consumerName: consumerName,
	}

	err := q.client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !isGroupExistsError(err) {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return q, nil
}

// Enqueue stores the task and appends it to the stream.
func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]interface{}{
			"task_id":  task.ID,
			"type":     string(task.Type),
			"video_id": task.VideoID(),
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Dequeue blocks until a task is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*domain.Task, error) {
	return q.DequeueWithTimeout(ctx, 0)
}

// DequeueWithTimeout waits up to timeout seconds for a task; 0 blocks
// until ctx is done. It returns nil, nil when nothing arrived.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	task, err := q.claimAbandonedTask(ctx)
	if err == nil && task != nil {
		return task, nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    time.Duration(timeout) * time.Second,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.start(ctx, streams[0].Messages[0])
}

// start loads the task behind a delivered message and marks it processing.
// Messages without a task record are acknowledged and dropped.
func (q *Queue) start(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, ok := msg.Values["task_id"].(string)
	if !ok {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task data: %w", err)
	}
	if task == nil {
		q.drop(ctx, msg.ID)
		return nil, nil
	}

	task.MarkProcessing()
	taskData, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKeyPrefix+task.ID, taskData, taskTTL)
	pipe.Set(ctx, taskKeyPrefix+task.ID+":msg", msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark task processing: %w", err)
	}

	return task, nil
}

func (q *Queue) drop(ctx context.Context, msgID string) {
	q.client.XAck(ctx, taskStream, taskGroup, msgID)
	q.client.XDel(ctx, taskStream, msgID)
}

// Ack marks the task completed and removes its stream entry.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	return q.finish(ctx, taskID, func(task *domain.Task, pipe redis.Pipeliner) {
		task.MarkCompleted()
		pipe.Incr(ctx, completedKey)
	})
}

// Nack records a failed attempt. A task with attempts left goes back on
// the stream; otherwise it is marked failed.
func (q *Queue) Nack(ctx context.Context, taskID string, reason string) error {
	return q.finish(ctx, taskID, func(task *domain.Task, pipe redis.Pipeliner) {
		if task.CanRetry() {
			task.Status = domain.TaskStatusPending
			task.Error = reason
			task.UpdatedAt = time.Now()
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: taskStream,
				Values: map[string]interface{}{
					"task_id":  task.ID,
					"type":     string(task.Type),
					"video_id": task.VideoID(),
				},
			})
			return
		}
		task.MarkFailed(reason)
		pipe.Incr(ctx, failedKey)
	})
}

// finish acknowledges the task's message and stores the updated task
func (q *Queue) finish(ctx context.Context, taskID string, update func(*domain.Task, redis.Pipeliner)) error {
	task, err := q.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", taskID, domain.ErrNotFound)
	}

	msgID, err := q.client.Get(ctx, taskKeyPrefix+taskID+":msg").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to get message ID: %w", err)
	}

	pipe := q.client.TxPipeline()
	if msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}

	update(task, pipe)
	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	pipe.Set(ctx, taskKeyPrefix+taskID, taskData, taskTTL)
	pipe.Del(ctx, taskKeyPrefix+taskID+":msg")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID, or nil, nil if it is unknown or expired.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}

	return &task, nil
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	stats := &driven.QueueStats{}

	groups, err := q.client.XInfoGroups(ctx, taskStream).Result()
	if err != nil && !isStreamNotExistsError(err) {
		return nil, fmt.Errorf("failed to get group info: %w", err)
	}
	for _, group := range groups {
		if group.Name == taskGroup {
			stats.ProcessingCount = group.Pending
			stats.PendingCount = group.Lag
			break
		}
	}

	counts, err := q.client.MGet(ctx, completedKey, failedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get task counters: %w", err)
	}
	stats.CompletedCount = parseCount(counts[0])
	stats.FailedCount = parseCount(counts[1])

	return stats, nil
}

// Ping checks if the queue backend is healthy.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close cleans up resources.
func (q *Queue) Close() error {
	// Redis client is shared, don't close it here
	return nil
}

// claimAbandonedTask takes over a message another worker received but
// never acknowledged within claimTimeout.
func (q *Queue) claimAbandonedTask(ctx context.Context) (*domain.Task, error) {
	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   taskStream,
		Group:    taskGroup,
		Consumer: q.consumerName,
		MinIdle:  claimTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil || len(claimed) == 0 {
		return nil, err
	}
	return q.start(ctx, claimed[0])
}

func parseCount(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	_, _ = fmt.Sscan(s, &n)
	return n
}

func isGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isStreamNotExistsError(err error) bool {
	return err != nil && (errors.Is(err, redis.Nil) ||
		strings.Contains(err.Error(), "no such key") ||
		strings.Contains(err.Error(), "requires the key to exist"))
}
