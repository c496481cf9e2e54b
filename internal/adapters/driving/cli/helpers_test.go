package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven/mocks"
)

type mockIngestion struct {
	processErr error
	asyncErr   error
	deleted    []string
}

func (m *mockIngestion) Process(ctx context.Context, videoID string) (*domain.IngestionResult, error) {
	if m.processErr != nil {
		return &domain.IngestionResult{Error: m.processErr.Error()}, m.processErr
	}
	return &domain.IngestionResult{Status: "done", VideoID: videoID, Chunks: 4}, nil
}

func (m *mockIngestion) ProcessAsync(ctx context.Context, videoID string) (*domain.Task, error) {
	if m.asyncErr != nil {
		return nil, m.asyncErr
	}
	task := domain.NewProcessVideoTask(videoID)
	task.ID = "task-1"
	return task, nil
}

func (m *mockIngestion) Status(ctx context.Context, videoID string) (*domain.VideoStatus, error) {
	if videoID == "missing" {
		return nil, domain.ErrNotFound
	}
	rec := domain.NewIngestionRecord(videoID, "run-1")
	rec.StartedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec.Complete(4)
	return &domain.VideoStatus{VideoID: videoID, Processed: true, PassageCount: 4, Ingestion: rec}, nil
}

func (m *mockIngestion) Delete(ctx context.Context, videoID string) error {
	m.deleted = append(m.deleted, videoID)
	return nil
}

type mockAnswers struct {
	last domain.AskRequest
}

func (m *mockAnswers) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	m.last = req
	if req.VideoID == "never" {
		return &domain.AskResult{Answer: domain.NotProcessedAnswer, NotProcessed: true}, nil
	}
	return &domain.AskResult{Answer: "It is about search.", Passages: []string{"p1", "p2"}}, nil
}

// setupTestServices installs mock services and resets flag state.
func setupTestServices() (*mockIngestion, *mockAnswers, func()) {
	ingestion := &mockIngestion{}
	answers := &mockAnswers{}

	SetBootstrap(func(ctx context.Context) (*Services, error) {
		return &Services{
			Ingestion: ingestion,
			Answers:   answers,
			Auth:      mocks.NewMockAuthAdapter(),
			Close:     func() error { return nil },
		}, nil
	})

	cleanup := func() {
		SetBootstrap(nil)
		rootCmd.SetArgs(nil)
		processAsync, processJSON, statusJSON = false, false, false
		askHistory, askJSON, askPassages = nil, false, false
		tokenScope, tokenTTL = "", 24*time.Hour
		serveMode = ""
	}
	return ingestion, answers, cleanup
}

func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
