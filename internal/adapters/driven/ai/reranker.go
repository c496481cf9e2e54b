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

// Ensure rerankers implement Reranker
var (
	_ driven.Reranker = (*CrossEncoderReranker)(nil)
	_ driven.Reranker = (*NoopReranker)(nil)
)

// CrossEncoderReranker scores pairs with a text-embeddings-inference
// style /rerank endpoint serving a cross-encoder.
type CrossEncoderReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// NewCrossEncoderReranker creates a reranker client for baseURL
func NewCrossEncoderReranker(baseURL, model string) (driven.Reranker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("reranker URL is required")
	}
	if model == "" {
		model = domain.DefaultRerankerModel
	}
	return &CrossEncoderReranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Score sends every pair in one request and maps results back to input order
func (r *CrossEncoderReranker) Score(ctx context.Context, question string, passages []string) ([]float32, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(rerankRequest{Query: question, Texts: passages, RawScores: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call rerank endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(results) != len(passages) {
		return nil, fmt.Errorf("rerank endpoint returned %d scores for %d passages", len(results), len(passages))
	}

	scores := make([]float32, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(passages) || seen[res.Index] {
			return nil, fmt.Errorf("invalid result index %d for %d passages", res.Index, len(passages))
		}
		seen[res.Index] = true
		scores[res.Index] = res.Score
	}
	return scores, nil
}

// Model returns the cross-encoder model name
func (r *CrossEncoderReranker) Model() string {
	return r.model
}

// NoopReranker keeps recall order: earlier passages score higher.
type NoopReranker struct{}

// NewNoopReranker creates the pass-through reranker
func NewNoopReranker() *NoopReranker {
	return &NoopReranker{}
}

// Score returns descending scores by position
func (NoopReranker) Score(ctx context.Context, question string, passages []string) ([]float32, error) {
	scores := make([]float32, len(passages))
	for i := range passages {
		scores[i] = float32(len(passages) - i)
	}
	return scores, nil
}

// Model returns "none"
func (NoopReranker) Model() string {
	return "none"
}
