package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

func ingest(t *testing.T, h *testHarness, videoID, transcript string) {
	t.Helper()
	h.source.Set(videoID, transcript)
	if _, err := h.ingestion.Process(context.Background(), videoID); err != nil {
		t.Fatalf("Process(%s) error = %v", videoID, err)
	}
}

func TestAnswerService_Ask(t *testing.T) {
	h := newTestHarness(t)
	ingest(t, h, "vid1", longTranscript(6000))

	result, err := h.answers.Ask(context.Background(), domain.AskRequest{
		VideoID:  "vid1",
		Question: "What is said about volcanoes?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if result.Answer != "The answer." {
		t.Errorf("expected canned answer, got %q", result.Answer)
	}
	if result.NotProcessed {
		t.Error("expected processed video")
	}
	if len(result.Passages) == 0 || len(result.Passages) > domain.DefaultRerankTopN {
		t.Errorf("expected 1..%d passages, got %d", domain.DefaultRerankTopN, len(result.Passages))
	}

	q := h.index.LastQuery
	if q.Namespace != "vid1" || q.TopK != domain.DefaultTopK || !q.IncludeMetadata {
		t.Errorf("unexpected query %+v", q)
	}
	if q.Sparse.IsEmpty() {
		t.Error("expected sparse query from committed snapshot")
	}
	if h.reranker.Calls() != 1 {
		t.Errorf("expected 1 rerank call, got %d", h.reranker.Calls())
	}

	prompt := h.llm.LastPrompt()
	if !strings.Contains(prompt, "Question: What is said about volcanoes?") {
		t.Errorf("prompt missing question:\n%s", prompt)
	}
	for _, p := range result.Passages {
		if !strings.Contains(prompt, p) {
			t.Errorf("prompt missing passage %q", p)
		}
	}
}

func TestAnswerService_Ask_NotProcessed(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.answers.Ask(context.Background(), domain.AskRequest{
		VideoID:  "unknown",
		Question: "Anything?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if result.Answer != domain.NotProcessedAnswer || !result.NotProcessed {
		t.Errorf("expected not processed answer, got %+v", result)
	}
	if h.index.QueryCalls != 1 {
		t.Errorf("expected 1 query, got %d", h.index.QueryCalls)
	}
	if h.reranker.Calls() != 0 {
		t.Errorf("expected reranker not called, got %d", h.reranker.Calls())
	}
	if h.llm.Calls() != 0 {
		t.Errorf("expected generator not called, got %d", h.llm.Calls())
	}
}

func TestAnswerService_Ask_DenseOnlyWithoutSnapshot(t *testing.T) {
	h := newTestHarness(t)
	vec, _ := h.embedding.EmbedQuery(context.Background(), "orphan passage")
	err := h.index.Upsert(context.Background(), "vid1", []*domain.Passage{{
		ID: domain.PassageID("vid1", 0), VideoID: "vid1", Text: "orphan passage", DenseVector: vec,
	}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	result, err := h.answers.Ask(context.Background(), domain.AskRequest{VideoID: "vid1", Question: "orphan?"})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if !h.index.LastQuery.Sparse.IsEmpty() {
		t.Error("expected dense-only query")
	}
	if len(result.Passages) != 1 {
		t.Errorf("expected 1 passage, got %d", len(result.Passages))
	}
}

func TestAnswerService_Ask_NamespaceIsolation(t *testing.T) {
	h := newTestHarness(t)
	ingest(t, h, "rockets", "liquid oxygen feeds the rocket engine")
	ingest(t, h, "coffee", "espresso needs finely ground coffee beans")

	result, err := h.answers.Ask(context.Background(), domain.AskRequest{
		VideoID:  "rockets",
		Question: "how is espresso made?",
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	for _, p := range result.Passages {
		if strings.Contains(p, "espresso") {
			t.Errorf("passage from another video reached the prompt: %q", p)
		}
	}
}

func TestAnswerService_Ask_HistoryTruncated(t *testing.T) {
	h := newTestHarness(t)
	ingest(t, h, "vid1", "a transcript about chess openings")

	var history []domain.ConversationTurn
	for i := 1; i <= 5; i++ {
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	if _, err := h.answers.Ask(context.Background(), domain.AskRequest{
		VideoID: "vid1", Question: "which opening?", History: history,
	}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	prompt := h.llm.LastPrompt()
	for _, gone := range []string{"turn 1", "turn 2"} {
		if strings.Contains(prompt, gone) {
			t.Errorf("prompt should not contain %q", gone)
		}
	}
	if !strings.Contains(prompt, "User: turn 3\nAssistant: turn 4\nUser: turn 5") {
		t.Errorf("prompt missing last three turns:\n%s", prompt)
	}
}

func TestAnswerService_Ask_HistoryRolesIgnoreCase(t *testing.T) {
	h := newTestHarness(t)
	ingest(t, h, "vid1", "a transcript about chess openings")

	history := []domain.ConversationTurn{
		{Role: "System", Content: "video loaded"},
		{Role: "USER", Content: "is it about chess?"},
		{Role: "Assistant", Content: "yes"},
	}
	if _, err := h.answers.Ask(context.Background(), domain.AskRequest{
		VideoID: "vid1", Question: "which opening?", History: history,
	}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	prompt := h.llm.LastPrompt()
	if !strings.Contains(prompt, "System: video loaded\nUser: is it about chess?\nAssistant: yes") {
		t.Errorf("prompt missing normalized turns:\n%s", prompt)
	}
}

func TestAnswerService_Ask_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  domain.AskRequest
	}{
		{"missing video", domain.AskRequest{Question: "q"}},
		{"blank question", domain.AskRequest{VideoID: "vid1", Question: "  "}},
		{"bad role", domain.AskRequest{VideoID: "vid1", Question: "q", History: []domain.ConversationTurn{{Role: "moderator", Content: "x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			_, err := h.answers.Ask(context.Background(), tt.req)
			if domain.KindOf(err) != domain.ErrorKindInvalidInput {
				t.Errorf("expected invalid_input, got %v", err)
			}
			if h.embedding.EmbedQueryCalls != 0 {
				t.Error("expected no encoding for invalid request")
			}
		})
	}
}

func TestAnswerService_Ask_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *testHarness)
		kind  domain.ErrorKind
		step  string
	}{
		{
			name:  "encoder",
			setup: func(h *testHarness) { h.embedding.SetError(errors.New("encoder down")) },
			kind:  domain.ErrorKindEncoding,
			step:  "encode",
		},
		{
			name:  "index",
			setup: func(h *testHarness) { h.index.QueryErr = errors.New("index down") },
			kind:  domain.ErrorKindIndex,
			step:  "search",
		},
		{
			name:  "reranker",
			setup: func(h *testHarness) { h.reranker.SetError(errors.New("reranker down")) },
			kind:  domain.ErrorKindRerank,
			step:  "rerank",
		},
		{
			name:  "generator",
			setup: func(h *testHarness) { h.llm.SetError(errors.New("generator down")) },
			kind:  domain.ErrorKindGenerator,
			step:  "generate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			ingest(t, h, "vid1", "a transcript about gardening and soil")
			tt.setup(h)

			_, err := h.answers.Ask(context.Background(), domain.AskRequest{VideoID: "vid1", Question: "soil?"})
			var pe *domain.PipelineError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PipelineError, got %v", err)
			}
			if pe.Kind != tt.kind || pe.Step != tt.step {
				t.Errorf("expected %s at %s, got %s at %s", tt.kind, tt.step, pe.Kind, pe.Step)
			}
		})
	}
}

func TestAnswerService_Ask_EncoderTimeoutIsNotSticky(t *testing.T) {
	h := newTestHarness(t)
	ingest(t, h, "vid1", "a transcript about gardening and soil")
	h.embedding.SetFailNext(true)

	_, err := h.answers.Ask(context.Background(), domain.AskRequest{VideoID: "vid1", Question: "soil?"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if domain.KindOf(err) != domain.ErrorKindEncoding {
		t.Errorf("expected encoding kind, got %s", domain.KindOf(err))
	}

	if _, err := h.answers.Ask(context.Background(), domain.AskRequest{VideoID: "vid1", Question: "soil?"}); err != nil {
		t.Fatalf("second Ask() error = %v", err)
	}
}
