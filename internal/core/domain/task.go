package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeProcessVideo ingests one video's transcript
	TaskTypeProcessVideo TaskType = "process_video"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For process_video: {"video_id": "dQw4w9WgXcQ"}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum attempt count before giving up.
	// Ingestion is never retried, so this is 1 for process_video.
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:          GenerateID(),
		Type:        taskType,
		Payload:     payload,
		Status:      TaskStatusPending,
		MaxAttempts: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewProcessVideoTask creates a task that ingests the given video
func NewProcessVideoTask(videoID string) *Task {
	return NewTask(TaskTypeProcessVideo, map[string]string{
		"video_id": videoID,
	})
}

// VideoID extracts the video_id from the payload (for process_video tasks)
func (t *Task) VideoID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["video_id"]
}

// CanRetry returns true if the task can be attempted again
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	ItemsCount int           `json:"items_count,omitempty"` // passages indexed
}
