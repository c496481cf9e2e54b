package domain

import "time"

// IngestionState is a step of the ingestion state machine.
type IngestionState string

const (
	IngestionStateFetching  IngestionState = "fetching"
	IngestionStateChunking  IngestionState = "chunking"
	IngestionStateFitting   IngestionState = "fitting"
	IngestionStateEncoding  IngestionState = "encoding"
	IngestionStateUpserting IngestionState = "upserting"
	IngestionStateDone      IngestionState = "done"
	IngestionStateFailed    IngestionState = "failed"
)

// IsTerminal returns true for done and failed.
func (s IngestionState) IsTerminal() bool {
	return s == IngestionStateDone || s == IngestionStateFailed
}

// IngestionResult is the outcome of processing one video.
// On success Status is "done" and Chunks the number of passages indexed;
// on failure Error carries the message and Kind its classification.
type IngestionResult struct {
	Status  string    `json:"status,omitempty"`
	VideoID string    `json:"video_id,omitempty"`
	Chunks  int       `json:"chunks,omitempty"`
	Error   string    `json:"error,omitempty"`
	Kind    ErrorKind `json:"-"`
}

// Succeeded reports whether the ingestion reached done.
func (r *IngestionResult) Succeeded() bool {
	return r != nil && r.Status == string(IngestionStateDone)
}

// IngestionRecord is the persisted status of the last ingestion of a video.
type IngestionRecord struct {
	VideoID     string         `json:"video_id"`
	RunID       string         `json:"run_id"`
	State       IngestionState `json:"state"`
	Chunks      int            `json:"chunks"`
	Error       string         `json:"error,omitempty"`
	ErrorKind   ErrorKind      `json:"error_kind,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// NewIngestionRecord starts a record in the fetching state.
func NewIngestionRecord(videoID, runID string) *IngestionRecord {
	return &IngestionRecord{
		VideoID:   videoID,
		RunID:     runID,
		State:     IngestionStateFetching,
		StartedAt: time.Now(),
	}
}

// Complete moves the record into done.
func (r *IngestionRecord) Complete(chunks int) {
	now := time.Now()
	r.State = IngestionStateDone
	r.Chunks = chunks
	r.Error = ""
	r.ErrorKind = ""
	r.CompletedAt = &now
}

// Fail moves the record into failed.
func (r *IngestionRecord) Fail(err error) {
	now := time.Now()
	r.State = IngestionStateFailed
	r.Error = err.Error()
	r.ErrorKind = KindOf(err)
	r.CompletedAt = &now
}

// VideoStatus summarises what is known about a video.
type VideoStatus struct {
	VideoID      string           `json:"video_id"`
	Processed    bool             `json:"processed"`
	PassageCount int              `json:"passage_count"`
	Ingestion    *IngestionRecord `json:"ingestion,omitempty"`
}
