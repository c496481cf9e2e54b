package driven

import "context"

// TranscriptSource fetches the full transcript text of a video.
type TranscriptSource interface {
	// Fetch returns the transcript as one string, segments joined by spaces.
	// A response with no usable text returns domain.ErrTranscriptNotFound.
	Fetch(ctx context.Context, videoID string) (string, error)
}
