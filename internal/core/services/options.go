package services

import (
	"context"
	"time"
)

// Timeouts bounds every external call the pipelines make.
// A zero value disables the bound for that call.
type Timeouts struct {
	Fetch    time.Duration
	Embed    time.Duration
	Index    time.Duration
	Rerank   time.Duration
	Generate time.Duration
}

// DefaultTimeouts returns the bounds used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fetch:    30 * time.Second,
		Embed:    60 * time.Second,
		Index:    30 * time.Second,
		Rerank:   30 * time.Second,
		Generate: 120 * time.Second,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type noopMetrics struct{}

func (noopMetrics) ObserveStage(string, string, time.Duration) {}
func (noopMetrics) IngestionFinished(string, string)           {}
func (noopMetrics) AskFinished(string, string)                 {}
