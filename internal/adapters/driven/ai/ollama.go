package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure Ollama adapters implement their interfaces
var (
	_ driven.EmbeddingService = (*OllamaEmbedding)(nil)
	_ driven.LLMService       = (*OllamaLLM)(nil)
)

const defaultOllamaURL = "http://localhost:11434"

// ollamaClient is the shared HTTP plumbing of the Ollama adapters
type ollamaClient struct {
	baseURL string
	client  *http.Client
}

func newOllamaClient(baseURL string, timeout time.Duration) ollamaClient {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return ollamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// post sends body as JSON to path and decodes the response into out
func (c ollamaClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c ollamaClient) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// OllamaEmbedding implements EmbeddingService with Ollama's /api/embed
type OllamaEmbedding struct {
	ollamaClient
	model      string
	dimensions int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedding creates a new Ollama embedding service
func NewOllamaEmbedding(baseURL, model string, dimensions int) (driven.EmbeddingService, error) {
	if model == "" {
		model = domain.DefaultEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = domain.DefaultEmbeddingDimension
	}
	return &OllamaEmbedding{
		ollamaClient: newOllamaClient(baseURL, 60*time.Second),
		model:        model,
		dimensions:   dimensions,
	}, nil
}

// Embed generates embeddings for multiple texts
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := e.post(ctx, "/api/embed", ollamaEmbedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

// EmbedQuery generates an embedding for a question
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the embedding dimension size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck verifies the model answers with the configured dimension
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	vec, err := e.EmbedQuery(ctx, "health check")
	if err != nil {
		return err
	}
	if len(vec) != e.dimensions {
		return fmt.Errorf("%w: model %s returns %d, configured %d", domain.ErrDimensionMismatch, e.model, len(vec), e.dimensions)
	}
	return nil
}

// Close releases resources held by the embedding service
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// OllamaLLM implements LLMService with Ollama's /api/chat
type OllamaLLM struct {
	ollamaClient
	model string
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// NewOllamaLLM creates a new Ollama chat generator
func NewOllamaLLM(baseURL, model string) (driven.LLMService, error) {
	if model == "" {
		model = domain.DefaultLLMModel
	}
	return &OllamaLLM{
		ollamaClient: newOllamaClient(baseURL, 120*time.Second),
		model:        model,
	}, nil
}

// Generate sends the prompt and returns the full, non-streamed reply
func (l *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := ollamaChatRequest{
		Model:    l.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  map[string]any{"temperature": 0},
	}

	var resp ollamaChatResponse
	if err := l.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// Model returns the model name being used
func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping verifies the Ollama server is reachable
func (l *OllamaLLM) Ping(ctx context.Context) error {
	return l.ping(ctx)
}

// Close releases resources held by the LLM service
func (l *OllamaLLM) Close() error {
	l.client.CloseIdleConnections()
	return nil
}
