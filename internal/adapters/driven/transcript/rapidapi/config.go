package rapidapi

import "time"

// DefaultHost is the RapidAPI host of the youtube-transcript3 API.
const DefaultHost = "youtube-transcript3.p.rapidapi.com"

// ContentType describes the text Fetch returns: caption segments joined by
// spaces, still carrying HTML entities and sound cues.
const ContentType = "text/x-captions"

// Config contains configuration for the transcript client.
type Config struct {
	// APIKey is sent as x-rapidapi-key.
	APIKey string

	// Host is sent as x-rapidapi-host.
	Host string

	// BaseURL overrides https://{Host}; used by tests.
	BaseURL string

	// RequestsPerSecond caps outgoing calls to respect the plan quota.
	// Zero or less disables the limit.
	RequestsPerSecond float64

	// Burst is how many calls may go out back to back.
	Burst int

	// Timeout bounds a single HTTP call.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:              DefaultHost,
		RequestsPerSecond: 1,
		Burst:             2,
		Timeout:           30 * time.Second,
	}
}
