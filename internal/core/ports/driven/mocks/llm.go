package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure MockLLMService implements LLMService
var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a mock implementation of LLMService for testing.
// It returns a canned answer and records every prompt it receives.
type MockLLMService struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string

	GenerateFn func(prompt string) (string, error)
}

// NewMockLLMService creates a new MockLLMService answering with answer
func NewMockLLMService(answer string) *MockLLMService {
	return &MockLLMService{answer: answer}
}

func (m *MockLLMService) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn, answer, err := m.GenerateFn, m.answer, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(prompt)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (m *MockLLMService) Model() string {
	return "mock-llm"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// SetError makes Generate fail with err
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Generate was called
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// LastPrompt returns the most recent prompt, or "" if none
func (m *MockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}
