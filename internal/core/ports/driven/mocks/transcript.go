package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure MockTranscriptSource implements TranscriptSource
var _ driven.TranscriptSource = (*MockTranscriptSource)(nil)

// MockTranscriptSource serves transcripts from an in-memory map
type MockTranscriptSource struct {
	mu          sync.Mutex
	transcripts map[string]string
	err         error
	calls       int

	FetchFn func(videoID string) (string, error)
}

// NewMockTranscriptSource creates a new MockTranscriptSource
func NewMockTranscriptSource() *MockTranscriptSource {
	return &MockTranscriptSource{transcripts: make(map[string]string)}
}

func (m *MockTranscriptSource) Fetch(ctx context.Context, videoID string) (string, error) {
	m.mu.Lock()
	m.calls++
	fn, err := m.FetchFn, m.err
	text, ok := m.transcripts[videoID]
	m.mu.Unlock()

	if fn != nil {
		return fn(videoID)
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrTranscriptNotFound
	}
	return text, nil
}

// Set registers the transcript for a video
func (m *MockTranscriptSource) Set(videoID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[videoID] = text
}

// SetError makes Fetch fail with err
func (m *MockTranscriptSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Fetch was called
func (m *MockTranscriptSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
