package driven

import (
	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateEmbeddingService creates an embedding service from settings
	// Returns nil, nil if settings are not configured
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateLLMService creates an LLM service from settings
	// Returns nil, nil if settings are not configured
	CreateLLMService(settings *domain.LLMSettings) (LLMService, error)

	// CreateReranker creates a reranker from settings.
	// Unconfigured settings yield the pass-through reranker.
	CreateReranker(settings *domain.RerankerSettings) (Reranker, error)
}
