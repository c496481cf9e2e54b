package rapidapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-tube/internal/core/domain"
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Ensure Client implements TranscriptSource
var _ driven.TranscriptSource = (*Client)(nil)

// Client fetches transcripts from the RapidAPI youtube-transcript3 API.
type Client struct {
	apiKey     string
	host       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new transcript client.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("RapidAPI key is required")
	}

	defaults := DefaultConfig()
	host := config.Host
	if host == "" {
		host = defaults.Host
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://" + host
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		apiKey:     config.APIKey,
		host:       host,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}, nil
}

// segment is one timed line of a transcript
type segment struct {
	Text string `json:"text"`
}

// Fetch returns the transcript of videoID as one space-joined string.
// A transcript without text yields domain.ErrTranscriptNotFound.
func (c *Client) Fetch(ctx context.Context, videoID string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	endpoint := c.baseURL + "/api/transcript?videoId=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.host)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("transcript API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	text, err := parseTranscript(body)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w for video %s", domain.ErrTranscriptNotFound, videoID)
	}
	return text, nil
}

// parseTranscript accepts the payload shapes the API is known to return:
// {"transcript": [{text}]}, {"transcript": "..."}, {"body": "..."} and a
// bare [{text}] list.
func parseTranscript(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", nil
	}

	if trimmed[0] == '[' {
		var segments []segment
		if err := json.Unmarshal(trimmed, &segments); err != nil {
			return "", fmt.Errorf("decode transcript list: %w", err)
		}
		return joinSegments(segments), nil
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}

	if raw, ok := payload["transcript"]; ok {
		var segments []segment
		if err := json.Unmarshal(raw, &segments); err == nil {
			return joinSegments(segments), nil
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text, nil
		}
		return "", nil
	}

	if raw, ok := payload["body"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text, nil
		}
	}
	return "", nil
}

func joinSegments(segments []segment) string {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
	}
	return strings.Join(texts, " ")
}
