package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
)

const promptTemplate = `You are a helpful assistant.
Use ONLY the transcript context below to answer.
If the context doesn't fully answer, still try to give the best possible response.

Transcript:
%s

Conversation History:
%s

Question: %s
`

// PromptBuilder assembles the grounding prompt sent to the generator.
type PromptBuilder struct {
	maxHistory int
}

// NewPromptBuilder creates a builder keeping at most maxHistory trailing
// turns. Zero or less uses domain.MaxHistoryTurns.
func NewPromptBuilder(maxHistory int) *PromptBuilder {
	if maxHistory <= 0 {
		maxHistory = domain.MaxHistoryTurns
	}
	return &PromptBuilder{maxHistory: maxHistory}
}

// Build joins passages in the given order, formats the trailing history
// turns chronologically and appends the question.
func (b *PromptBuilder) Build(passages []string, history []domain.ConversationTurn, question string) string {
	transcript := strings.Join(passages, "\n\n")

	turns := domain.LastTurns(history, b.maxHistory)
	lines := make([]string, len(turns))
	for i, turn := range turns {
		lines[i] = fmt.Sprintf("%s: %s", turn.Role.Label(), turn.Content)
	}

	return fmt.Sprintf(promptTemplate, transcript, strings.Join(lines, "\n"), question)
}
