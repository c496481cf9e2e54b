package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-tube/internal/runtime"
)

// Ensure answerService implements AnswerService
var _ driving.AnswerService = (*answerService)(nil)

// AnswerServiceConfig holds dependencies for the answer service.
type AnswerServiceConfig struct {
	Index      driven.VectorIndex
	Services   *runtime.Services
	Sparse     *runtime.SparseModels
	Prompts    *PromptBuilder
	Metrics    driven.PipelineMetrics
	Timeouts   Timeouts
	TopK       int
	RerankTopN int
	Logger     *slog.Logger
}

// answerService runs encode -> hybrid search -> empty guard -> rerank ->
// assemble -> generate.
type answerService struct {
	index      driven.VectorIndex
	services   *runtime.Services
	sparse     *runtime.SparseModels
	prompts    *PromptBuilder
	metrics    driven.PipelineMetrics
	timeouts   Timeouts
	topK       int
	rerankTopN int
	logger     *slog.Logger
}

// NewAnswerService creates a new AnswerService
func NewAnswerService(cfg AnswerServiceConfig) driving.AnswerService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	prompts := cfg.Prompts
	if prompts == nil {
		prompts = NewPromptBuilder(domain.MaxHistoryTurns)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	topN := cfg.RerankTopN
	if topN <= 0 {
		topN = domain.DefaultRerankTopN
	}

	return &answerService{
		index:      cfg.Index,
		services:   cfg.Services,
		sparse:     cfg.Sparse,
		prompts:    prompts,
		metrics:    metrics,
		timeouts:   cfg.Timeouts,
		topK:       topK,
		rerankTopN: topN,
		logger:     logger,
	}
}

// Ask answers one question about one video.
func (s *answerService) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	if err := req.Validate(); err != nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindInvalidInput, "", err))
	}
	started := time.Now()

	// encode
	stepAt := time.Now()
	query, err := s.encode(ctx, req.VideoID, req.Question)
	if err != nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindEncoding, "encode", err))
	}
	s.metrics.ObserveStage("ask", "encode", time.Since(stepAt))

	// hybrid search
	stepAt = time.Now()
	searchCtx, cancel := withTimeout(ctx, s.timeouts.Index)
	matches, err := s.index.Query(searchCtx, query)
	cancel()
	if err != nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindIndex, "search", err))
	}
	s.metrics.ObserveStage("ask", "search", time.Since(stepAt))

	// empty guard
	if len(matches) == 0 {
		s.logger.Info("no passages for video", "video_id", req.VideoID)
		s.metrics.AskFinished("not_processed", "")
		return &domain.AskResult{Answer: domain.NotProcessedAnswer, NotProcessed: true}, nil
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.Text
	}

	// rerank
	stepAt = time.Now()
	reranker := s.services.Reranker()
	if reranker == nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindRerank, "rerank",
			fmt.Errorf("reranker: %w", domain.ErrServiceUnavailable)))
	}
	rerankCtx, cancel := withTimeout(ctx, s.timeouts.Rerank)
	top, err := rerank(rerankCtx, reranker, req.Question, candidates, s.rerankTopN)
	cancel()
	if err != nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindRerank, "rerank", err))
	}
	s.metrics.ObserveStage("ask", "rerank", time.Since(stepAt))

	// assemble
	prompt := s.prompts.Build(top, req.History, req.Question)

	// generate
	stepAt = time.Now()
	llm := s.services.LLMService()
	if llm == nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindGenerator, "generate",
			fmt.Errorf("llm: %w", domain.ErrServiceUnavailable)))
	}
	genCtx, cancel := withTimeout(ctx, s.timeouts.Generate)
	answer, err := llm.Generate(genCtx, prompt)
	cancel()
	if err != nil {
		return s.fail(req.VideoID, domain.NewPipelineError(domain.ErrorKindGenerator, "generate", err))
	}
	s.metrics.ObserveStage("ask", "generate", time.Since(stepAt))
	s.metrics.AskFinished("answered", "")

	s.logger.Info("question answered",
		"video_id", req.VideoID,
		"candidates", len(matches),
		"passages", len(top),
		"duration", time.Since(started),
	)

	return &domain.AskResult{Answer: answer, Passages: top}, nil
}

// encode builds the hybrid query from the committed snapshot of the
// namespace. Without a snapshot the query is dense only.
func (s *answerService) encode(ctx context.Context, videoID, question string) (domain.HybridQuery, error) {
	query := domain.HybridQuery{
		Namespace:       videoID,
		TopK:            s.topK,
		IncludeMetadata: true,
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return query, fmt.Errorf("embedding service: %w", domain.ErrServiceUnavailable)
	}
	embedCtx, cancel := withTimeout(ctx, s.timeouts.Embed)
	dense, err := embedder.EmbedQuery(embedCtx, question)
	cancel()
	if err != nil {
		return query, err
	}
	if len(dense) != embedder.Dimensions() {
		return query, fmt.Errorf("%w: query has %d dimensions, want %d", domain.ErrDimensionMismatch, len(dense), embedder.Dimensions())
	}
	query.Dense = dense

	model, err := s.sparse.Get(ctx, videoID)
	if err != nil {
		s.logger.Warn("sparse snapshot unavailable, using dense only", "video_id", videoID, "error", err)
	}
	if model != nil {
		query.Sparse = model.EncodeQuery(question)
	}
	return query, nil
}

func (s *answerService) fail(videoID string, err error) (*domain.AskResult, error) {
	kind := domain.KindOf(err)
	s.metrics.AskFinished("failed", string(kind))

	var pe *domain.PipelineError
	step := ""
	if errors.As(err, &pe) {
		step = pe.Step
	}
	s.logger.Error("ask failed",
		"video_id", videoID,
		"step", step,
		"kind", kind,
		"error", err,
	)
	return nil, err
}
