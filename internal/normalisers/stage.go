package normalisers

import (
	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessor = (*Stage)(nil)

// Stage runs the registry's best normaliser for one MIME type as the first
// step of a chunking pipeline.
type Stage struct {
	normaliser driven.Normaliser
	mimeType   string
}

// NewStage selects the normaliser for mimeType. It falls back to plain text
// when nothing in the registry matches.
func NewStage(registry driven.NormaliserRegistry, mimeType string) *Stage {
	n := registry.Get(mimeType)
	if n == nil {
		n = &PlaintextNormaliser{}
	}
	return &Stage{normaliser: n, mimeType: mimeType}
}

// Process normalises each chunk and drops the ones left empty.
func (s *Stage) Process(chunks []driven.Chunk) []driven.Chunk {
	out := make([]driven.Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.Content = s.normaliser.Normalise(c.Content, s.mimeType)
		if c.Content == "" {
			continue
		}
		c.EndOffset = c.StartOffset + len(c.Content)
		out = append(out, c)
	}
	return out
}

func (s *Stage) Name() string {
	return "normaliser:" + s.mimeType
}

// Order returns -20 so captions are cleaned before whitespace folding.
func (s *Stage) Order() int {
	return -20
}
