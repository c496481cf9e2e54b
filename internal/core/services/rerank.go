package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// rerank scores every candidate against the question in one batched call
// and returns the topN texts by descending score. Equal scores keep their
// recall order.
func rerank(ctx context.Context, reranker driven.Reranker, question string, candidates []string, topN int) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores, err := reranker.Score(ctx, question, candidates)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = candidates[idx]
	}
	return out, nil
}
