package services

import (
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

func TestPromptBuilder_Build(t *testing.T) {
	b := NewPromptBuilder(0)
	prompt := b.Build(
		[]string{"first passage", "second passage"},
		[]domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
		},
		"what next?",
	)

	want := "You are a helpful assistant.\n" +
		"Use ONLY the transcript context below to answer.\n" +
		"If the context doesn't fully answer, still try to give the best possible response.\n\n" +
		"Transcript:\nfirst passage\n\nsecond passage\n\n" +
		"Conversation History:\nUser: hi\nAssistant: hello\n\n" +
		"Question: what next?\n"
	if prompt != want {
		t.Errorf("unexpected prompt:\n%q\nwant:\n%q", prompt, want)
	}
}

func TestPromptBuilder_Build_NoHistory(t *testing.T) {
	prompt := NewPromptBuilder(3).Build([]string{"p"}, nil, "q")
	if !strings.Contains(prompt, "Conversation History:\n\n\nQuestion: q") {
		t.Errorf("expected empty history section:\n%s", prompt)
	}
}

func TestPromptBuilder_Build_KeepsLastTurns(t *testing.T) {
	history := []domain.ConversationTurn{
		{Role: domain.RoleUser, Content: "one"},
		{Role: domain.RoleAssistant, Content: "two"},
		{Role: domain.RoleUser, Content: "three"},
	}
	prompt := NewPromptBuilder(2).Build(nil, history, "q")
	if strings.Contains(prompt, "User: one") {
		t.Error("expected oldest turn to be dropped")
	}
	if !strings.Contains(prompt, "Assistant: two\nUser: three") {
		t.Errorf("expected last two turns in order:\n%s", prompt)
	}
}
