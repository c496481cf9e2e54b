package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-tube/internal/runtime"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

const (
	// DefaultIngestLockTTL bounds how long a crashed ingestion blocks its video
	DefaultIngestLockTTL = 15 * time.Minute

	// DefaultEmbedBatchSize is how many passages go into one embedding call
	DefaultEmbedBatchSize = 64

	embedConcurrency = 4
)

// IngestionServiceConfig holds dependencies for the ingestion service.
type IngestionServiceConfig struct {
	Source    driven.TranscriptSource
	Pipeline  driven.PostProcessorPipeline
	Index     driven.VectorIndex
	Lock      driven.DistributedLock
	Records   driven.IngestionStore // optional
	Queue     driven.TaskQueue      // optional; ProcessAsync is unavailable without it
	Services  *runtime.Services
	Sparse    *runtime.SparseModels
	Metrics   driven.PipelineMetrics
	Timeouts  Timeouts
	LockTTL   time.Duration
	BatchSize int
	Logger    *slog.Logger
}

// ingestionService runs the ingestion state machine:
// fetching -> chunking -> fitting -> encoding -> upserting -> done.
// Any error moves it to failed.
type ingestionService struct {
	source    driven.TranscriptSource
	pipeline  driven.PostProcessorPipeline
	index     driven.VectorIndex
	lock      driven.DistributedLock
	records   driven.IngestionStore
	queue     driven.TaskQueue
	services  *runtime.Services
	sparse    *runtime.SparseModels
	metrics   driven.PipelineMetrics
	timeouts  Timeouts
	lockTTL   time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionServiceConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = DefaultIngestLockTTL
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}

	return &ingestionService{
		source:    cfg.Source,
		pipeline:  cfg.Pipeline,
		index:     cfg.Index,
		lock:      cfg.Lock,
		records:   cfg.Records,
		queue:     cfg.Queue,
		services:  cfg.Services,
		sparse:    cfg.Sparse,
		metrics:   metrics,
		timeouts:  cfg.Timeouts,
		lockTTL:   lockTTL,
		batchSize: batchSize,
		logger:    logger,
	}
}

// lockName is the per-namespace ingestion lock
func lockName(videoID string) string {
	return "ingest:" + videoID
}

// run tracks one ingestion as it moves through the states
type run struct {
	id      string
	videoID string
	state   domain.IngestionState
	started time.Time
	stepAt  time.Time
	record  *domain.IngestionRecord
}

// Process runs the full ingestion pipeline for one video.
func (s *ingestionService) Process(ctx context.Context, videoID string) (*domain.IngestionResult, error) {
	if err := domain.ValidateVideoID(videoID); err != nil {
		return s.fail(ctx, nil, domain.NewPipelineError(domain.ErrorKindInvalidInput, "", err))
	}

	token, acquired, err := s.lock.Acquire(ctx, lockName(videoID), s.lockTTL)
	if err != nil {
		return s.fail(ctx, nil, domain.NewPipelineError(domain.ErrorKindInternal, "lock", err))
	}
	if !acquired {
		s.logger.Info("ingestion already running", "video_id", videoID)
		return s.fail(ctx, nil, domain.NewPipelineError(domain.ErrorKindConflict, "", domain.ErrIngestionInProgress))
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.lock.Release(releaseCtx, lockName(videoID), token); err != nil {
			s.logger.Warn("failed to release ingestion lock", "video_id", videoID, "error", err)
		}
	}()

	now := time.Now()
	r := &run{
		id:      uuid.NewString(),
		videoID: videoID,
		started: now,
		stepAt:  now,
	}
	r.record = domain.NewIngestionRecord(videoID, r.id)
	s.transition(ctx, r, domain.IngestionStateFetching)

	// fetching
	text, err := s.fetch(ctx, videoID)
	if err != nil {
		return s.fail(ctx, r, err)
	}

	// chunking
	s.transition(ctx, r, domain.IngestionStateChunking)
	chunks := s.pipeline.Process(text)
	if len(chunks) == 0 {
		return s.fail(ctx, r, domain.NewPipelineError(domain.ErrorKindEmptyContent, string(domain.IngestionStateChunking),
			errors.New("transcript produced no chunks")))
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	// fitting
	s.transition(ctx, r, domain.IngestionStateFitting)
	model := s.sparse.Encoder().Fit(videoID, texts)

	// encoding
	s.transition(ctx, r, domain.IngestionStateEncoding)
	dense, err := s.embed(ctx, texts)
	if err != nil {
		return s.fail(ctx, r, domain.NewPipelineError(domain.ErrorKindEncoding, string(domain.IngestionStateEncoding), err))
	}
	sparseVecs := model.EncodeDocuments(texts)

	passages := make([]*domain.Passage, len(chunks))
	for i, c := range chunks {
		passages[i] = &domain.Passage{
			ID:           domain.PassageID(videoID, c.Position),
			VideoID:      videoID,
			Position:     c.Position,
			Text:         c.Content,
			DenseVector:  dense[i],
			SparseVector: sparseVecs[i],
		}
	}

	// upserting
	s.transition(ctx, r, domain.IngestionStateUpserting)
	if err := s.upsert(ctx, videoID, passages); err != nil {
		return s.fail(ctx, r, domain.NewPipelineError(domain.ErrorKindIndex, string(domain.IngestionStateUpserting), err))
	}
	if err := s.sparse.Install(ctx, model); err != nil {
		return s.fail(ctx, r, domain.NewPipelineError(domain.ErrorKindIndex, string(domain.IngestionStateUpserting), err))
	}
	s.logStats(ctx, videoID)

	// done
	s.transition(ctx, r, domain.IngestionStateDone)
	r.record.Complete(len(passages))
	s.saveRecord(ctx, r.record)
	s.metrics.IngestionFinished(string(domain.IngestionStateDone), "")

	s.logger.Info("ingestion completed",
		"video_id", videoID,
		"run_id", r.id,
		"chunks", len(passages),
		"duration", time.Since(r.started),
	)

	return &domain.IngestionResult{
		Status:  string(domain.IngestionStateDone),
		VideoID: videoID,
		Chunks:  len(passages),
	}, nil
}

func (s *ingestionService) fetch(ctx context.Context, videoID string) (string, error) {
	step := string(domain.IngestionStateFetching)
	fetchCtx, cancel := withTimeout(ctx, s.timeouts.Fetch)
	defer cancel()

	text, err := s.source.Fetch(fetchCtx, videoID)
	if err != nil {
		if errors.Is(err, domain.ErrTranscriptNotFound) {
			return "", domain.NewPipelineError(domain.ErrorKindEmptyContent, step, err)
		}
		return "", domain.NewPipelineError(domain.ErrorKindUpstreamFetch, step, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.NewPipelineError(domain.ErrorKindEmptyContent, step, domain.ErrTranscriptNotFound)
	}
	return text, nil
}

// embed encodes texts in batches, a few batches at a time, keeping order.
func (s *ingestionService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("embedding service: %w", domain.ErrServiceUnavailable)
	}

	embedCtx, cancel := withTimeout(ctx, s.timeouts.Embed)
	defer cancel()

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(embedCtx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(texts); start += s.batchSize {
		start := start
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embedding service returned %d vectors for %d texts", len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := embedder.Dimensions()
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: passage %d has %d dimensions, want %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return out, nil
}

// upsert replaces the namespace's passages in one index call. Queries keep
// reading the previous passages until it succeeds, and a shorter transcript
// leaves no stale passages behind.
func (s *ingestionService) upsert(ctx context.Context, videoID string, passages []*domain.Passage) error {
	indexCtx, cancel := withTimeout(ctx, s.timeouts.Index)
	defer cancel()
	return s.index.Replace(indexCtx, videoID, passages)
}

func (s *ingestionService) logStats(ctx context.Context, videoID string) {
	stats, err := s.index.Stats(ctx, videoID)
	if err != nil {
		s.logger.Warn("failed to read index stats", "video_id", videoID, "error", err)
		return
	}
	s.logger.Info("index stats",
		"video_id", videoID,
		"passages", stats.PassageCount,
		"dimension", stats.Dimension,
	)
}

// transition records the time spent in the previous state and moves on.
func (s *ingestionService) transition(ctx context.Context, r *run, next domain.IngestionState) {
	now := time.Now()
	if r.state != "" {
		s.metrics.ObserveStage("ingest", string(r.state), now.Sub(r.stepAt))
	}
	r.state = next
	r.stepAt = now
	r.record.State = next

	s.logger.Info("ingestion state",
		"video_id", r.videoID,
		"run_id", r.id,
		"state", next,
	)
	if !next.IsTerminal() {
		s.saveRecord(ctx, r.record)
	}
}

// fail moves the run to failed and builds the error result.
func (s *ingestionService) fail(ctx context.Context, r *run, err error) (*domain.IngestionResult, error) {
	kind := domain.KindOf(err)
	videoID := ""
	if r != nil {
		videoID = r.videoID
		s.transition(ctx, r, domain.IngestionStateFailed)
		r.record.Fail(err)
		s.saveRecord(ctx, r.record)
	}

	s.metrics.IngestionFinished(string(domain.IngestionStateFailed), string(kind))
	s.logger.Error("ingestion failed",
		"video_id", videoID,
		"kind", kind,
		"error", err,
	)

	return &domain.IngestionResult{Error: err.Error(), Kind: kind}, err
}

func (s *ingestionService) saveRecord(ctx context.Context, record *domain.IngestionRecord) {
	if s.records == nil {
		return
	}
	if err := s.records.Save(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Warn("failed to save ingestion record", "video_id", record.VideoID, "error", err)
	}
}

// ProcessAsync enqueues a process_video task.
func (s *ingestionService) ProcessAsync(ctx context.Context, videoID string) (*domain.Task, error) {
	if err := domain.ValidateVideoID(videoID); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, fmt.Errorf("task queue: %w", domain.ErrServiceUnavailable)
	}

	task := domain.NewProcessVideoTask(videoID)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue ingestion: %w", err)
	}
	s.logger.Info("ingestion queued", "video_id", videoID, "task_id", task.ID)
	return task, nil
}

// Status reports the last ingestion record and the indexed passage count.
func (s *ingestionService) Status(ctx context.Context, videoID string) (*domain.VideoStatus, error) {
	if err := domain.ValidateVideoID(videoID); err != nil {
		return nil, err
	}

	status := &domain.VideoStatus{VideoID: videoID}
	if s.records != nil {
		record, err := s.records.Get(ctx, videoID)
		switch {
		case err == nil:
			status.Ingestion = record
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, fmt.Errorf("get ingestion record: %w", err)
		}
	}

	stats, err := s.index.Stats(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}
	status.PassageCount = stats.PassageCount
	status.Processed = stats.PassageCount > 0

	if status.Ingestion == nil && !status.Processed {
		return nil, domain.ErrNotFound
	}
	return status, nil
}

// Delete removes everything known about a video. It takes the ingestion
// lock so it cannot interleave with a running ingestion.
func (s *ingestionService) Delete(ctx context.Context, videoID string) error {
	if err := domain.ValidateVideoID(videoID); err != nil {
		return err
	}

	token, acquired, err := s.lock.Acquire(ctx, lockName(videoID), s.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !acquired {
		return domain.ErrIngestionInProgress
	}
	defer func() {
		_ = s.lock.Release(context.WithoutCancel(ctx), lockName(videoID), token)
	}()

	if err := s.index.DeleteNamespace(ctx, videoID); err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	if err := s.sparse.Remove(ctx, videoID); err != nil {
		return err
	}
	if s.records != nil {
		if err := s.records.Delete(ctx, videoID); err != nil {
			return fmt.Errorf("delete ingestion record: %w", err)
		}
	}

	s.logger.Info("video deleted", "video_id", videoID)
	return nil
}
