package services

import (
	"fmt"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/sercha-tube/internal/postprocessors"
	"github.com/custodia-labs/sercha-tube/internal/runtime"
)

// testHarness wires both services to shared mocks
type testHarness struct {
	source    *mocks.MockTranscriptSource
	index     *mocks.MockVectorIndex
	lock      *mocks.MockDistributedLock
	records   *mocks.MockIngestionStore
	snapshots *mocks.MockSparseModelStore
	queue     *mocks.MockTaskQueue
	embedding *mocks.MockEmbeddingService
	llm       *mocks.MockLLMService
	reranker  *mocks.MockReranker
	sparse    *runtime.SparseModels
	ingestion *ingestionService
	answers   *answerService
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	h, err := buildHarness()
	if err != nil {
		t.Fatalf("buildHarness() error = %v", err)
	}
	return h
}

func buildHarness() (*testHarness, error) {
	h := &testHarness{
		source:    mocks.NewMockTranscriptSource(),
		index:     mocks.NewMockVectorIndex(),
		lock:      mocks.NewMockDistributedLock(),
		records:   mocks.NewMockIngestionStore(),
		snapshots: mocks.NewMockSparseModelStore(),
		queue:     mocks.NewMockTaskQueue(),
		embedding: mocks.NewMockEmbeddingService(),
		llm:       mocks.NewMockLLMService("The answer."),
		reranker:  mocks.NewMockReranker(),
	}

	services := runtime.NewServices(domain.NewRuntimeConfig("memory", "memory"))
	services.SetEmbeddingService(h.embedding)
	services.SetLLMService(h.llm)
	services.SetReranker(h.reranker)

	sparse, err := runtime.NewSparseModels(runtime.SparseModelsConfig{Store: h.snapshots})
	if err != nil {
		return nil, err
	}
	h.sparse = sparse

	h.ingestion = NewIngestionService(IngestionServiceConfig{
		Source:   h.source,
		Pipeline: postprocessors.DefaultPipeline(),
		Index:    h.index,
		Lock:     h.lock,
		Records:  h.records,
		Queue:    h.queue,
		Services: services,
		Sparse:   sparse,
		Timeouts: DefaultTimeouts(),
	}).(*ingestionService)

	h.answers = NewAnswerService(AnswerServiceConfig{
		Index:    h.index,
		Services: services,
		Sparse:   sparse,
		Timeouts: DefaultTimeouts(),
	}).(*answerService)

	return h, nil
}

// longTranscript builds a transcript of roughly n characters made of
// distinct sentences.
func longTranscript(n int) string {
	topics := []string{"rockets", "gardening", "espresso", "volcanoes", "chess"}
	var b strings.Builder
	for i := 0; b.Len() < n; i++ {
		fmt.Fprintf(&b, "Sentence %d is about %s and nothing else. ", i, topics[i%len(topics)])
	}
	return b.String()
}
