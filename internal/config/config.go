package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// PathEnv names the variable that points at an optional YAML config file.
const PathEnv = "SERCHA_TUBE_CONFIG"

// Vector backends
const (
	BackendPgvector = "pgvector"
	BackendVespa    = "vespa"
	BackendMemory   = "memory"
)

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`
}

// DatabaseConfig configures PostgreSQL
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RedisConfig configures Redis. An empty URL disables every Redis adapter.
type RedisConfig struct {
	URL string `yaml:"url"`

	// RecordTTL is how long ingestion records live when Redis stores them.
	RecordTTL time.Duration `yaml:"record_ttl"`
}

// IndexConfig selects and configures the vector index
type IndexConfig struct {
	Backend        string  `yaml:"backend"`
	Name           string  `yaml:"name"`
	VespaURL       string  `yaml:"vespa_url"`
	VespaConfigURL string  `yaml:"vespa_config_url"`
	Alpha          float64 `yaml:"hybrid_alpha"`

	// EnsureOnStart creates or verifies the index before serving.
	EnsureOnStart bool `yaml:"ensure_on_start"`
}

// EmbeddingConfig configures the embedding model
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dimension int    `yaml:"dimension"`
}

// LLMConfig configures the answer generator
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
}

// RerankerNone is the RERANKER value that turns reranking off.
const RerankerNone = "none"

// RerankerConfig configures the cross-encoder. Reranking is only skipped
// when Disabled is set; a missing URL otherwise fails validation.
type RerankerConfig struct {
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
	Disabled bool   `yaml:"disabled"`
}

// TranscriptConfig configures the RapidAPI transcript source
type TranscriptConfig struct {
	APIKey            string  `yaml:"api_key"`
	Host              string  `yaml:"host"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// RetrievalConfig holds chunking and ranking parameters
type RetrievalConfig struct {
	ChunkSize       int `yaml:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap"`
	TopK            int `yaml:"top_k"`
	RerankTopN      int `yaml:"rerank_top_n"`
	SparseCacheSize int `yaml:"sparse_cache_size"`
}

// TimeoutConfig bounds each external call
type TimeoutConfig struct {
	Fetch    time.Duration `yaml:"fetch"`
	Embed    time.Duration `yaml:"embed"`
	Index    time.Duration `yaml:"index"`
	Rerank   time.Duration `yaml:"rerank"`
	Generate time.Duration `yaml:"generate"`
}

// WorkerConfig configures the async ingestion worker
type WorkerConfig struct {
	Concurrency    int `yaml:"concurrency"`
	DequeueTimeout int `yaml:"dequeue_timeout"`
}

// Config is the full process configuration. It is read once at startup
// and not modified afterwards.
type Config struct {
	Mode       string           `yaml:"mode"`
	LogLevel   string           `yaml:"log_level"`

	// StrictModels fails startup when the embedding or LLM endpoint is
	// unreachable instead of logging a warning.
	StrictModels bool `yaml:"strict_models"`

	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Timeouts   TimeoutConfig    `yaml:"timeouts"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Mode:     ModeAll,
		LogLevel: "info",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: time.Minute,
		},
		Redis: RedisConfig{
			RecordTTL: 30 * 24 * time.Hour,
		},
		Index: IndexConfig{
			Backend: BackendMemory,
			Name:    "youtube-transcripts",
			Alpha:   domain.DefaultHybridAlpha,

			EnsureOnStart: true,
		},
		Embedding: EmbeddingConfig{
			Provider:  string(domain.AIProviderOllama),
			Model:     domain.DefaultEmbeddingModel,
			BaseURL:   "http://localhost:11434",
			Dimension: domain.DefaultEmbeddingDimension,
		},
		LLM: LLMConfig{
			Provider: string(domain.AIProviderOllama),
			Model:    domain.DefaultLLMModel,
			BaseURL:  "http://localhost:11434",
		},
		Reranker: RerankerConfig{
			URL:   "http://localhost:8081",
			Model: domain.DefaultRerankerModel,
		},
		Transcript: TranscriptConfig{
			Host:              "youtube-transcript3.p.rapidapi.com",
			RequestsPerSecond: 1,
		},
		Retrieval: RetrievalConfig{
			ChunkSize:       1000,
			ChunkOverlap:    200,
			TopK:            domain.DefaultTopK,
			RerankTopN:      domain.DefaultRerankTopN,
			SparseCacheSize: 1024,
		},
		Timeouts: TimeoutConfig{
			Fetch:    30 * time.Second,
			Embed:    60 * time.Second,
			Index:    30 * time.Second,
			Rerank:   30 * time.Second,
			Generate: 120 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:    2,
			DequeueTimeout: 5,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// SERCHA_TUBE_CONFIG (if any), then environment variables. A .env file in
// the working directory is loaded first and never overrides the real
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFile(os.Getenv(PathEnv))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Mode = getEnv("RUN_MODE", c.Mode)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.StrictModels = getEnvBool("STRICT_MODELS", c.StrictModels)

	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.Server.AllowedOrigins)
	c.Server.JWTSecret = getEnv("JWT_SECRET", c.Server.JWTSecret)

	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", c.Database.ConnMaxLifetime)
	c.Database.ConnMaxIdleTime = getEnvDuration("DB_CONN_MAX_IDLE_TIME", c.Database.ConnMaxIdleTime)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.RecordTTL = getEnvDuration("INGESTION_RECORD_TTL", c.Redis.RecordTTL)

	c.Index.Backend = strings.ToLower(getEnv("VECTOR_BACKEND", c.Index.Backend))
	c.Index.Name = getEnv("INDEX_NAME", c.Index.Name)
	c.Index.VespaURL = getEnv("VESPA_URL", c.Index.VespaURL)
	c.Index.VespaConfigURL = getEnv("VESPA_CONFIG_URL", c.Index.VespaConfigURL)
	c.Index.Alpha = getEnvFloat("HYBRID_ALPHA", c.Index.Alpha)
	c.Index.EnsureOnStart = getEnvBool("ENSURE_INDEX", c.Index.EnsureOnStart)

	c.Embedding.Provider = getEnv("EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.BaseURL = getEnv("EMBEDDING_BASE_URL", c.Embedding.BaseURL)
	c.Embedding.APIKey = getEnv("EMBEDDING_API_KEY", c.Embedding.APIKey)
	c.Embedding.Dimension = getEnvInt("EMBEDDING_DIM", c.Embedding.Dimension)

	c.LLM.Provider = getEnv("LLM_PROVIDER", c.LLM.Provider)
	c.LLM.Model = getEnv("LLM_MODEL", c.LLM.Model)
	c.LLM.BaseURL = getEnv("LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.APIKey = getEnv("LLM_API_KEY", c.LLM.APIKey)

	c.Reranker.URL = getEnv("RERANKER_URL", c.Reranker.URL)
	c.Reranker.Model = getEnv("RERANKER_MODEL", c.Reranker.Model)
	if v := os.Getenv("RERANKER"); v != "" {
		c.Reranker.Disabled = strings.EqualFold(strings.TrimSpace(v), RerankerNone)
	}

	c.Transcript.APIKey = getEnv("RAPIDAPI_KEY", c.Transcript.APIKey)
	c.Transcript.Host = getEnv("RAPIDAPI_HOST", c.Transcript.Host)
	c.Transcript.RequestsPerSecond = getEnvFloat("RAPIDAPI_RPS", c.Transcript.RequestsPerSecond)

	c.Retrieval.ChunkSize = getEnvInt("CHUNK_SIZE", c.Retrieval.ChunkSize)
	c.Retrieval.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", c.Retrieval.ChunkOverlap)
	c.Retrieval.TopK = getEnvInt("TOP_K", c.Retrieval.TopK)
	c.Retrieval.RerankTopN = getEnvInt("RERANK_TOP_N", c.Retrieval.RerankTopN)
	c.Retrieval.SparseCacheSize = getEnvInt("SPARSE_CACHE_SIZE", c.Retrieval.SparseCacheSize)

	c.Timeouts.Fetch = getEnvDuration("FETCH_TIMEOUT", c.Timeouts.Fetch)
	c.Timeouts.Embed = getEnvDuration("EMBED_TIMEOUT", c.Timeouts.Embed)
	c.Timeouts.Index = getEnvDuration("INDEX_TIMEOUT", c.Timeouts.Index)
	c.Timeouts.Rerank = getEnvDuration("RERANK_TIMEOUT", c.Timeouts.Rerank)
	c.Timeouts.Generate = getEnvDuration("GENERATE_TIMEOUT", c.Timeouts.Generate)

	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.DequeueTimeout = getEnvInt("WORKER_DEQUEUE_TIMEOUT", c.Worker.DequeueTimeout)
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q (use: api, worker, or all)", c.Mode))
	}

	switch c.Index.Backend {
	case BackendPgvector:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the pgvector backend"))
		}
	case BackendVespa:
		if c.Index.VespaURL == "" {
			errs = append(errs, errors.New("VESPA_URL is required for the vespa backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown vector backend %q (use: pgvector, vespa, or memory)", c.Index.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.Index.Alpha < 0 || c.Index.Alpha > 1 {
		errs = append(errs, fmt.Errorf("hybrid alpha %v must be within [0, 1]", c.Index.Alpha))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension %d must be positive", c.Embedding.Dimension))
	}
	if c.Retrieval.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunk size %d must be positive", c.Retrieval.ChunkSize))
	}
	if c.Retrieval.ChunkOverlap < 0 || c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be within [0, chunk size)", c.Retrieval.ChunkOverlap))
	}
	if c.Retrieval.TopK <= 0 || c.Retrieval.RerankTopN <= 0 {
		errs = append(errs, errors.New("top k and rerank top n must be positive"))
	}
	if !domain.AIProvider(c.Embedding.Provider).IsValid() {
		errs = append(errs, fmt.Errorf("%w: embedding %s", domain.ErrInvalidProvider, c.Embedding.Provider))
	}
	if !domain.AIProvider(c.LLM.Provider).IsValid() {
		errs = append(errs, fmt.Errorf("%w: llm %s", domain.ErrInvalidProvider, c.LLM.Provider))
	}
	if !c.Reranker.Disabled && c.Reranker.URL == "" {
		errs = append(errs, errors.New("RERANKER_URL is required (set RERANKER=none to answer in recall order)"))
	}

	return errors.Join(errs...)
}

// EmbeddingSettings converts the embedding section for the AI factory.
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: c.Embedding.Dimension,
	}
}

// LLMSettings converts the LLM section for the AI factory.
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider: domain.AIProvider(c.LLM.Provider),
		Model:    c.LLM.Model,
		APIKey:   c.LLM.APIKey,
		BaseURL:  c.LLM.BaseURL,
	}
}

// RerankerSettings converts the reranker section for the AI factory.
func (c *Config) RerankerSettings() *domain.RerankerSettings {
	if c.Reranker.Disabled {
		return &domain.RerankerSettings{Model: c.Reranker.Model}
	}
	return &domain.RerankerSettings{
		BaseURL: c.Reranker.URL,
		Model:   c.Reranker.Model,
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
