package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping calls f.
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	// Services
	ingestion driving.IngestionService
	answers   driving.AnswerService

	// Infrastructure
	taskQueue      driven.TaskQueue // optional
	auth           driven.AuthAdapter
	metricsHandler http.Handler
	runtimeConfig  *domain.RuntimeConfig
	dependencies   map[string]Pinger
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// Deps are the collaborators the server routes to. Ingestion and Answers
// are required; everything else may be nil.
type Deps struct {
	Ingestion driving.IngestionService
	Answers   driving.AnswerService

	TaskQueue      driven.TaskQueue
	Auth           driven.AuthAdapter
	MetricsHandler http.Handler
	RuntimeConfig  *domain.RuntimeConfig

	// Dependencies are pinged by /ready, keyed by display name.
	Dependencies map[string]Pinger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		ingestion:      deps.Ingestion,
		answers:        deps.Answers,
		taskQueue:      deps.TaskQueue,
		auth:           deps.Auth,
		metricsHandler: deps.MetricsHandler,
		runtimeConfig:  deps.RuntimeConfig,
		dependencies:   deps.Dependencies,
	}

	s.setupRoutes()

	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewCORSMiddleware(origins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metricsHandler != nil {
		s.router.Handle("GET /metrics", s.metricsHandler)
	}

	// Pipeline endpoints
	s.router.Handle("POST /process", protect(s.handleProcess))
	s.router.Handle("POST /ask", protect(s.handleAsk))
	s.router.Handle("POST /api/v1/process", protect(s.handleProcess))
	s.router.Handle("POST /api/v1/ask", protect(s.handleAsk))

	// Video endpoints
	s.router.Handle("POST /api/v1/videos/{id}/process", protect(s.handleProcessVideo))
	s.router.Handle("GET /api/v1/videos/{id}", protect(s.handleGetVideo))
	s.router.Handle("DELETE /api/v1/videos/{id}", protect(s.handleDeleteVideo))

	// Task endpoints
	s.router.Handle("GET /api/v1/tasks/{id}", protect(s.handleGetTask))
	s.router.Handle("GET /api/v1/tasks/stats", protect(s.handleTaskStats))
}

// Start starts the HTTP server and shuts it down gracefully on SIGINT or
// SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
