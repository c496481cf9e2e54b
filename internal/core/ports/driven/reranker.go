package driven

import "context"

// Reranker scores (question, passage) pairs with a cross-encoder.
type Reranker interface {
	// Score returns one relevance score per passage, in input order.
	// All pairs are scored in a single batched call.
	Score(ctx context.Context, question string, passages []string) ([]float32, error)

	// Model returns the model name being used
	Model() string
}
