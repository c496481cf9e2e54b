package driven

import "time"

// PipelineMetrics records pipeline outcomes and stage latencies.
type PipelineMetrics interface {
	// ObserveStage records how long one step of a pipeline took.
	ObserveStage(pipeline, stage string, d time.Duration)

	// IngestionFinished counts an ingestion by terminal status and error kind.
	IngestionFinished(status, kind string)

	// AskFinished counts a question by outcome: answered, not_processed or failed.
	AskFinished(outcome, kind string)
}
