package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
)

// ErrNotRunning is returned by Ping before Start or after Stop.
var ErrNotRunning = errors.New("worker not running")

// Handler runs one task. A returned error nacks the task.
type Handler func(ctx context.Context, task *domain.Task) error

// Worker pulls tasks from the queue and runs the handler registered for
// their type. process_video tasks run the ingestion pipeline.
type Worker struct {
	queue    driven.TaskQueue
	handlers map[domain.TaskType]Handler
	logger   *slog.Logger

	concurrency    int
	dequeueTimeout int // seconds
	errorBackoff   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Ingestion      driving.IngestionService
	Logger         *slog.Logger
	Concurrency    int // Number of concurrent task processors
	DequeueTimeout int // Seconds to wait for a task before checking again
}

// NewWorker creates a worker with the process_video handler registered.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DequeueTimeout <= 0 {
		cfg.DequeueTimeout = 5
	}

	w := &Worker{
		queue:          cfg.TaskQueue,
		handlers:       make(map[domain.TaskType]Handler),
		logger:         cfg.Logger.With("component", "worker"),
		concurrency:    cfg.Concurrency,
		dequeueTimeout: cfg.DequeueTimeout,
		errorBackoff:   time.Second,
	}
	if cfg.Ingestion != nil {
		w.Handle(domain.TaskTypeProcessVideo, processVideo(cfg.Ingestion))
	}
	return w
}

// Handle registers h for tasks of type t, replacing any previous handler.
// It must be called before Start.
func (w *Worker) Handle(t domain.TaskType, h Handler) {
	w.handlers[t] = h
}

// Start launches the processing loops and returns immediately.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w.queue == nil {
		return errors.New("task queue is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		logger := w.logger.With("loop", i)
		g.Go(func() error {
			w.loop(gctx, logger)
			return nil
		})
	}

	done := w.done
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return nil
}

// Stop cancels the loops and waits for in-flight tasks to return.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	w.logger.Info("worker stopped")
}

// Wait blocks until the loops exit. It returns at once if Start was never called.
func (w *Worker) Wait() {
	w.mu.Lock()
	done := w.done
	w.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Ping reports whether the worker is running and its queue is reachable.
func (w *Worker) Ping(ctx context.Context) error {
	w.mu.Lock()
	running := w.cancel != nil
	w.mu.Unlock()

	if !running {
		return ErrNotRunning
	}
	if err := w.queue.Ping(ctx); err != nil {
		return fmt.Errorf("task queue: %w", err)
	}
	return nil
}

func (w *Worker) loop(ctx context.Context, logger *slog.Logger) {
	for ctx.Err() == nil {
		task, err := w.queue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			logger.Error("failed to dequeue task", "error", err)
			w.sleep(ctx, w.errorBackoff)
		case task != nil:
			w.run(ctx, task, logger)
		}
	}
}

// run executes one task and settles it with Ack or Nack. Settling uses a
// context detached from cancellation so a stopping worker still records
// the outcome of the task it just finished.
func (w *Worker) run(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "video_id", task.VideoID())
	logger.Info("processing task")

	start := time.Now()
	err := w.dispatch(ctx, task)
	duration := time.Since(start)

	settle := context.WithoutCancel(ctx)
	if err != nil {
		logger.Error("task failed", "duration", duration, "error", err)
		if nackErr := w.queue.Nack(settle, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.queue.Ack(settle, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task) error {
	h, ok := w.handlers[task.Type]
	if !ok {
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
	return h(ctx, task)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// processVideo runs one ingestion. The pipeline's own result is
// authoritative; a failed run is reported as the task error.
func processVideo(ingestion driving.IngestionService) Handler {
	return func(ctx context.Context, task *domain.Task) error {
		videoID := task.VideoID()
		if videoID == "" {
			return errors.New("video_id not found in task payload")
		}

		result, err := ingestion.Process(ctx, videoID)
		if err != nil {
			return err
		}
		if !result.Succeeded() {
			return fmt.Errorf("ingestion failed: %s", result.Error)
		}
		return nil
	}
}
