package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an external capability could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrIngestionInProgress indicates another ingestion holds the video's namespace
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrTranscriptNotFound indicates the transcript source has no usable text for the video
	ErrTranscriptNotFound = errors.New("no transcript found")

	// ErrDimensionMismatch indicates the embedding dimension differs from the index dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrorKind classifies a pipeline failure so callers can branch on it
// without inspecting message text.
type ErrorKind string

const (
	ErrorKindUpstreamFetch ErrorKind = "upstream_fetch"
	ErrorKindEmptyContent  ErrorKind = "empty_content"
	ErrorKindEncoding      ErrorKind = "encoding"
	ErrorKindIndex         ErrorKind = "index"
	ErrorKindRerank        ErrorKind = "rerank"
	ErrorKindGenerator     ErrorKind = "generator"
	ErrorKindInvalidInput  ErrorKind = "invalid_input"
	ErrorKindConflict      ErrorKind = "conflict"
	ErrorKindInternal      ErrorKind = "internal"
)

// PipelineError is returned by the ingestion and answer pipelines.
// Step names the stage that failed (e.g. "fetching", "rerank").
type PipelineError struct {
	Kind ErrorKind
	Step string
	Err  error
}

// NewPipelineError wraps err with a kind and the step that produced it.
func NewPipelineError(kind ErrorKind, step string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Step: step, Err: err}
}

func (e *PipelineError) Error() string {
	if e.Step == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or ErrorKindInternal when
// err is not a PipelineError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrInvalidInput) {
		return ErrorKindInvalidInput
	}
	return ErrorKindInternal
}
