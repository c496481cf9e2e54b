package driven

import (
	"context"
)

// LLMService generates grounded answers from an assembled prompt
type LLMService interface {
	// Generate returns the model's full reply to prompt.
	// Calls are deterministic (temperature 0) and non-streaming.
	Generate(ctx context.Context, prompt string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
