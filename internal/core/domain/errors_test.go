package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidProvider", ErrInvalidProvider, "invalid provider"},
		{"ErrServiceUnavailable", ErrServiceUnavailable, "service unavailable"},
		{"ErrIngestionInProgress", ErrIngestionInProgress, "ingestion already in progress"},
		{"ErrTranscriptNotFound", ErrTranscriptNotFound, "no transcript found"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "embedding dimension mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidProvider,
		ErrServiceUnavailable,
		ErrIngestionInProgress,
		ErrTranscriptNotFound,
		ErrDimensionMismatch,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestPipelineError(t *testing.T) {
	cause := fmt.Errorf("transcript api returned 503: %w", ErrServiceUnavailable)
	err := NewPipelineError(ErrorKindUpstreamFetch, "fetching", cause)

	if err.Error() != "fetching: transcript api returned 503: service unavailable" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Error("expected errors.Is to see through PipelineError")
	}

	wrapped := fmt.Errorf("process video: %w", err)
	var pe *PipelineError
	if !errors.As(wrapped, &pe) {
		t.Fatal("expected errors.As to find PipelineError")
	}
	if pe.Step != "fetching" {
		t.Errorf("expected step fetching, got %s", pe.Step)
	}
}

func TestPipelineError_NoStep(t *testing.T) {
	err := NewPipelineError(ErrorKindConflict, "", ErrIngestionInProgress)
	if err.Error() != "ingestion already in progress" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"pipeline", NewPipelineError(ErrorKindIndex, "upserting", errors.New("boom")), ErrorKindIndex},
		{"wrapped pipeline", fmt.Errorf("x: %w", NewPipelineError(ErrorKindGenerator, "generate", errors.New("boom"))), ErrorKindGenerator},
		{"invalid input", fmt.Errorf("%w: video_id is required", ErrInvalidInput), ErrorKindInvalidInput},
		{"other", errors.New("boom"), ErrorKindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
