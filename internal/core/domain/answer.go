package domain

import (
	"fmt"
	"strings"
)

// NotProcessedAnswer is returned when recall finds nothing for the video.
const NotProcessedAnswer = "Transcript not available. Please process the video first."

const (
	// DefaultTopK is how many passages hybrid recall returns.
	DefaultTopK = 10

	// DefaultRerankTopN is how many reranked passages reach the prompt.
	DefaultRerankTopN = 4

	// DefaultHybridAlpha weights dense against sparse scores.
	// 0.5 ranks identically to a plain sum of the two inner products.
	DefaultHybridAlpha = 0.5
)

// AskRequest is one question about one video.
type AskRequest struct {
	VideoID  string             `json:"video_id"`
	Question string             `json:"question"`
	History  []ConversationTurn `json:"history,omitempty"`
}

// Validate checks the request before any capability is called.
func (r *AskRequest) Validate() error {
	if err := ValidateVideoID(r.VideoID); err != nil {
		return err
	}
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	for _, turn := range r.History {
		if err := turn.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AskResult is the answer to one question. Passages are the texts that
// reached the prompt, in rerank order.
type AskResult struct {
	Answer       string   `json:"answer"`
	Passages     []string `json:"-"`
	NotProcessed bool     `json:"-"`
}

// ValidateVideoID rejects empty ids and ids that cannot be a namespace.
func ValidateVideoID(videoID string) error {
	if strings.TrimSpace(videoID) == "" {
		return fmt.Errorf("%w: video_id is required", ErrInvalidInput)
	}
	if len(videoID) > 64 {
		return fmt.Errorf("%w: video_id too long", ErrInvalidInput)
	}
	for _, r := range videoID {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return fmt.Errorf("%w: video_id contains %q", ErrInvalidInput, r)
		}
	}
	return nil
}
