package normalisers

import (
	"html"
	"regexp"
	"strings"
)

// MIME types understood by the built-in normalisers.
const (
	TypePlain    = "text/plain"
	TypeCaptions = "text/x-captions"
	TypeWebVTT   = "text/vtt"
)

var (
	// [Music], [Applause], [inaudible] and friends.
	soundCue = regexp.MustCompile(`\[[^\]\n]{1,40}\]`)

	// ">>" marks a speaker change in auto-generated tracks.
	speakerChange = regexp.MustCompile(`(^|\s)>>\s*`)

	vttTiming    = regexp.MustCompile(`^(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}\s+-->`)
	vttInlineTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>|<(\d{1,2}:)?\d{2}:\d{2}[.,]\d{3}>`)
	cueNumber    = regexp.MustCompile(`^\d+$`)
)

// PlaintextNormaliser is the fallback for any type.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.TrimSpace(content)
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{TypePlain, "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

// CaptionNormaliser cleans caption text joined from timed segments.
// Entities are often escaped twice by the upstream API.
type CaptionNormaliser struct{}

func (n *CaptionNormaliser) Normalise(content string, mimeType string) string {
	for i := 0; i < 2 && strings.Contains(content, "&"); i++ {
		content = html.UnescapeString(content)
	}
	content = soundCue.ReplaceAllString(content, " ")
	content = speakerChange.ReplaceAllString(content, "$1")
	return collapseSpaces(content)
}

func (n *CaptionNormaliser) SupportedTypes() []string {
	return []string{TypeCaptions}
}

func (n *CaptionNormaliser) Priority() int {
	return 60
}

// WebVTTNormaliser drops the header, cue numbers and timings of a WebVTT
// track and keeps the spoken text.
type WebVTTNormaliser struct {
	captions CaptionNormaliser
}

func (n *WebVTTNormaliser) Normalise(content string, mimeType string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var (
		kept     []string
		previous string
		inNote   bool
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			inNote = false
			continue
		case inNote:
			continue
		case strings.HasPrefix(line, "WEBVTT"),
			strings.HasPrefix(line, "Kind:"),
			strings.HasPrefix(line, "Language:"):
			continue
		case strings.HasPrefix(line, "NOTE"), strings.HasPrefix(line, "STYLE"):
			inNote = true
			continue
		case vttTiming.MatchString(line), cueNumber.MatchString(line):
			continue
		}

		line = vttInlineTag.ReplaceAllString(line, "")
		// Rolling auto-captions repeat the previous cue line.
		if line == previous {
			continue
		}
		previous = line
		kept = append(kept, line)
	}

	return n.captions.Normalise(strings.Join(kept, " "), TypeCaptions)
}

func (n *WebVTTNormaliser) SupportedTypes() []string {
	return []string{TypeWebVTT}
}

func (n *WebVTTNormaliser) Priority() int {
	return 70
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
