package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/auth"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/metrics"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/postgres"
	pgqueue "github.com/custodia-labs/sercha-tube/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/sercha-tube/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/sercha-tube/internal/adapters/driven/redis"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/transcript/rapidapi"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driven/vespa"
	"github.com/custodia-labs/sercha-tube/internal/adapters/driving/cli"
	httpapi "github.com/custodia-labs/sercha-tube/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-tube/internal/config"
	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-tube/internal/core/services"
	"github.com/custodia-labs/sercha-tube/internal/normalisers"
	"github.com/custodia-labs/sercha-tube/internal/postprocessors"
	"github.com/custodia-labs/sercha-tube/internal/runtime"
	"github.com/custodia-labs/sercha-tube/internal/worker"
)

// app holds every long-lived dependency. It is built once per process and
// handed to the CLI as cli.Services.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client

	index         driven.VectorIndex
	queue         driven.TaskQueue
	authAdapter   driven.AuthAdapter
	metrics       *metrics.Prometheus
	runtimeConfig *domain.RuntimeConfig
	models        *runtime.Services

	ingestion driving.IngestionService
	answers   driving.AnswerService

	closers []func() error
}

func bootstrap(ctx context.Context) (*cli.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &cli.Services{
		Ingestion: a.ingestion,
		Answers:   a.answers,
		Auth:      a.authAdapter,
		Serve:     a.serve,
		Close:     a.close,
	}, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	for _, step := range []func(context.Context) error{
		a.connect,
		a.buildIndex,
		a.buildServices,
	} {
		if err := step(ctx); err != nil {
			_ = a.close()
			return nil, err
		}
	}
	return a, nil
}

// connect opens PostgreSQL and Redis when they are configured.
func (a *app) connect(ctx context.Context) error {
	if a.cfg.Database.URL != "" {
		a.logger.Info("connecting to postgres")
		db, err := postgres.Connect(ctx, postgres.Config{
			URL:             a.cfg.Database.URL,
			MaxOpenConns:    a.cfg.Database.MaxOpenConns,
			MaxIdleConns:    a.cfg.Database.MaxIdleConns,
			ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: a.cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, db.Close)

		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}

	if a.cfg.Redis.URL != "" {
		a.logger.Info("connecting to redis")
		opts, err := redis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.redisClient = client
	}
	return nil
}

// buildIndex selects the vector backend and ensures the index exists.
func (a *app) buildIndex(ctx context.Context) error {
	alpha := a.cfg.Index.Alpha

	switch a.cfg.Index.Backend {
	case config.BackendPgvector:
		if a.db == nil {
			return errors.New("pgvector backend needs DATABASE_URL")
		}
		a.index = postgres.NewVectorIndex(a.db, postgres.VectorIndexConfig{Alpha: alpha, Logger: a.logger})
	case config.BackendVespa:
		configURL := a.cfg.Index.VespaConfigURL
		if configURL == "" {
			configURL = a.cfg.Index.VespaURL
		}
		deployer, err := vespa.NewDeployer(configURL, alpha)
		if err != nil {
			return fmt.Errorf("vespa deployer: %w", err)
		}
		a.index = vespa.NewVectorIndex(vespa.Config{
			BaseURL: a.cfg.Index.VespaURL,
			Alpha:   alpha,
			Timeout: a.cfg.Timeouts.Index,
			Logger:  a.logger,
		}, deployer)
	default:
		a.index = memory.NewVectorIndex(alpha)
	}

	if !a.cfg.Index.EnsureOnStart {
		return nil
	}
	if err := a.index.EnsureIndex(ctx, a.cfg.Index.Name, a.cfg.Embedding.Dimension, domain.MetricDotProduct); err != nil {
		return fmt.Errorf("ensure index %s: %w", a.cfg.Index.Name, err)
	}
	a.logger.Info("vector index ready",
		"backend", a.cfg.Index.Backend,
		"index", a.cfg.Index.Name,
		"dimension", a.cfg.Embedding.Dimension,
	)
	return nil
}

// buildServices wires stores, models and the two pipelines.
func (a *app) buildServices(ctx context.Context) error {
	cfg := a.cfg

	// ===== Distributed lock (Redis, then PostgreSQL advisory locks, then in-process) =====
	var lock driven.DistributedLock
	lockBackend := "memory"
	switch {
	case a.redisClient != nil:
		lock = redisadapter.NewLock(a.redisClient)
		lockBackend = "redis"
	case a.db != nil:
		lock = postgres.NewAdvisoryLock(a.db)
		lockBackend = "postgres"
	default:
		lock = memory.NewLock()
	}

	// ===== Ingestion records (PostgreSQL, then Redis, then in-process) =====
	var records driven.IngestionStore
	switch {
	case a.db != nil:
		records = postgres.NewIngestionStore(a.db)
	case a.redisClient != nil:
		records = redisadapter.NewIngestionStore(a.redisClient, cfg.Redis.RecordTTL)
	default:
		records = memory.NewIngestionStore()
	}

	// ===== Sparse snapshots (Redis survives restarts) =====
	var snapshots driven.SparseModelStore = memory.NewSparseModelStore()
	if a.redisClient != nil {
		snapshots = redisadapter.NewSparseModelStore(a.redisClient)
	}

	// ===== Task queue (Redis streams, then PostgreSQL SKIP LOCKED) =====
	switch {
	case a.redisClient != nil:
		consumer := fmt.Sprintf("worker-%d", os.Getpid())
		queue, err := redisqueue.NewQueue(ctx, a.redisClient, consumer)
		if err != nil {
			return fmt.Errorf("create task queue: %w", err)
		}
		a.queue = queue
	case a.db != nil:
		a.queue = pgqueue.NewQueue(a.db.DB)
	}

	// ===== Runtime capabilities =====
	a.runtimeConfig = domain.NewRuntimeConfig(cfg.Index.Backend, lockBackend)
	a.runtimeConfig.SetSnapshotsPersisted(a.redisClient != nil)
	a.runtimeConfig.SetAsyncIngestAvailable(a.queue != nil)

	// ===== Models =====
	a.models = runtime.NewServices(a.runtimeConfig)
	a.closers = append(a.closers, a.models.Close)

	factory := ai.NewFactory()
	embedding, err := factory.CreateEmbeddingService(cfg.EmbeddingSettings())
	if err != nil {
		return fmt.Errorf("embedding service: %w", err)
	}
	llm, err := factory.CreateLLMService(cfg.LLMSettings())
	if err != nil {
		return fmt.Errorf("llm service: %w", err)
	}

	if cfg.StrictModels {
		if err := a.models.ValidateAndSetEmbedding(ctx, embedding); err != nil {
			return fmt.Errorf("embedding service unreachable: %w", err)
		}
		if err := a.models.ValidateAndSetLLM(ctx, llm); err != nil {
			return fmt.Errorf("llm service unreachable: %w", err)
		}
	} else {
		if embedding != nil {
			if err := embedding.HealthCheck(ctx); err != nil {
				a.logger.Warn("embedding health check failed", "error", err)
			}
		}
		if llm != nil {
			if err := llm.Ping(ctx); err != nil {
				a.logger.Warn("llm ping failed", "error", err)
			}
		}
		a.models.SetEmbeddingService(embedding)
		a.models.SetLLMService(llm)
	}

	reranker, err := factory.CreateReranker(cfg.RerankerSettings())
	if err != nil {
		return fmt.Errorf("reranker: %w", err)
	}
	a.models.SetReranker(reranker)
	if cfg.Reranker.Disabled {
		a.logger.Warn("reranker disabled, answers use hybrid recall order")
	}

	sparseModels, err := runtime.NewSparseModels(runtime.SparseModelsConfig{
		Store:     snapshots,
		CacheSize: cfg.Retrieval.SparseCacheSize,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}

	// ===== Transcript source =====
	var source driven.TranscriptSource = unconfiguredSource{}
	if cfg.Transcript.APIKey != "" {
		transcriptConfig := rapidapi.DefaultConfig()
		transcriptConfig.APIKey = cfg.Transcript.APIKey
		transcriptConfig.Host = cfg.Transcript.Host
		transcriptConfig.RequestsPerSecond = cfg.Transcript.RequestsPerSecond
		transcriptConfig.Timeout = cfg.Timeouts.Fetch
		client, err := rapidapi.NewClient(transcriptConfig)
		if err != nil {
			return fmt.Errorf("transcript client: %w", err)
		}
		source = client
	} else {
		a.logger.Warn("RAPIDAPI_KEY not set, ingestion will fail at fetching")
	}

	// ===== Auth (optional) =====
	if cfg.Server.JWTSecret != "" {
		a.authAdapter = auth.NewAdapter(cfg.Server.JWTSecret)
	}

	a.metrics = metrics.NewPrometheus()

	timeouts := services.Timeouts{
		Fetch:    cfg.Timeouts.Fetch,
		Embed:    cfg.Timeouts.Embed,
		Index:    cfg.Timeouts.Index,
		Rerank:   cfg.Timeouts.Rerank,
		Generate: cfg.Timeouts.Generate,
	}

	pipeline := postprocessors.NewTranscriptPipeline(postprocessors.ChunkConfig{
		MaxChunkSize: cfg.Retrieval.ChunkSize,
		Overlap:      cfg.Retrieval.ChunkOverlap,
	})
	pipeline.Add(normalisers.NewStage(normalisers.DefaultRegistry(), rapidapi.ContentType))

	a.ingestion = services.NewIngestionService(services.IngestionServiceConfig{
		Source:   source,
		Pipeline: pipeline,
		Index:    a.index,
		Lock:     lock,
		Records:  records,
		Queue:    a.queue,
		Services: a.models,
		Sparse:   sparseModels,
		Metrics:  a.metrics,
		Timeouts: timeouts,
		Logger:   a.logger,
	})

	a.answers = services.NewAnswerService(services.AnswerServiceConfig{
		Index:      a.index,
		Services:   a.models,
		Sparse:     sparseModels,
		Metrics:    a.metrics,
		Timeouts:   timeouts,
		TopK:       cfg.Retrieval.TopK,
		RerankTopN: cfg.Retrieval.RerankTopN,
		Logger:     a.logger,
	})

	caps := a.runtimeConfig.Snapshot()
	a.logger.Info("runtime configured",
		"vector_backend", caps.VectorBackend,
		"lock_backend", caps.LockBackend,
		"reranker", caps.Reranker,
		"snapshots_persisted", caps.SnapshotsPersisted,
		"async_ingest", caps.AsyncIngest,
	)
	return nil
}

// serve runs the API, the worker, or both until ctx is cancelled.
func (a *app) serve(ctx context.Context, mode string) error {
	if mode == "" {
		mode = a.cfg.Mode
	}
	a.logger.Info("sercha-tube starting", "version", version, "mode", mode)

	switch mode {
	case config.ModeAPI:
		return a.runAPI(ctx, nil)
	case config.ModeWorker:
		w, err := a.newWorker()
		if err != nil {
			return err
		}
		return a.runWorker(ctx, w)
	case config.ModeAll:
		w, err := a.newWorker()
		if err != nil {
			a.logger.Warn("worker not started", "error", err)
			return a.runAPI(ctx, nil)
		}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return a.runAPI(gctx, w) })
		g.Go(func() error { return a.runWorker(gctx, w) })
		return g.Wait()
	default:
		return fmt.Errorf("unknown mode: %s (use: api, worker, or all)", mode)
	}
}

// runAPI serves HTTP. A non-nil w is reported by /ready.
func (a *app) runAPI(ctx context.Context, w *worker.Worker) error {
	deps := httpapi.Deps{
		Ingestion:      a.ingestion,
		Answers:        a.answers,
		TaskQueue:      a.queue,
		Auth:           a.authAdapter,
		MetricsHandler: a.metrics.Handler(),
		RuntimeConfig:  a.runtimeConfig,
		Dependencies: map[string]httpapi.Pinger{
			"index": httpapi.PingerFunc(a.index.HealthCheck),
		},
	}
	if a.db != nil {
		deps.Dependencies["postgres"] = a.db
	}
	if a.redisClient != nil {
		deps.Dependencies["redis"] = httpapi.PingerFunc(func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
	}
	if w != nil {
		deps.Dependencies["worker"] = w
	}

	server := httpapi.NewServer(httpapi.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		Version:        version,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Logger:         a.logger,
	}, deps)

	return server.Run(ctx)
}

func (a *app) newWorker() (*worker.Worker, error) {
	if a.queue == nil {
		return nil, errors.New("worker mode needs REDIS_URL or DATABASE_URL for the task queue")
	}
	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.queue,
		Ingestion:      a.ingestion,
		Logger:         a.logger,
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	}), nil
}

func (a *app) runWorker(ctx context.Context, w *worker.Worker) error {
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()

	a.logger.Info("stopping worker")
	w.Stop()
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// unconfiguredSource stands in when no transcript API key is set.
type unconfiguredSource struct{}

func (unconfiguredSource) Fetch(ctx context.Context, videoID string) (string, error) {
	return "", fmt.Errorf("transcript source not configured: %w", domain.ErrServiceUnavailable)
}
