package driving

import (
	"context"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

// AnswerService answers questions about an ingested video
type AnswerService interface {
	// Ask runs encode, hybrid search, rerank, assemble and generate.
	// A video with no indexed passages yields domain.NotProcessedAnswer
	// without calling the reranker or generator.
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error)
}
