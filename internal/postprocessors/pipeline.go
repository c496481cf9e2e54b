package postprocessors

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order.
// Input is the raw transcript text.
// Output is the processed chunks ready for encoding.
func (p *Pipeline) Process(content string) []driven.Chunk {
	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	// Start with a single chunk containing all content
	chunks := []driven.Chunk{
		{
			Content:     content,
			Position:    0,
			StartOffset: 0,
			EndOffset:   len(content),
		},
	}

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}

	names := make([]string, len(p.processors))
	for i, proc := range p.processors {
		names[i] = proc.Name()
	}
	return names
}

// DefaultPipeline creates a pipeline with the default processors.
func DefaultPipeline() *Pipeline {
	return NewTranscriptPipeline(DefaultChunkConfig())
}

// NewTranscriptPipeline normalizes whitespace, then chunks with config.
func NewTranscriptPipeline(config ChunkConfig) *Pipeline {
	p := NewPipeline()
	p.Add(NewWhitespaceNormalizer())
	p.Add(NewChunker(config))
	return p
}

// ChunkConfig configures the chunker behavior.
type ChunkConfig struct {
	// MaxChunkSize is the maximum characters per chunk
	MaxChunkSize int

	// Overlap is the maximum characters a chunk repeats from its predecessor
	Overlap int

	// Separators are tried in order; the first one present in a piece
	// splits it. An empty string means a hard character cut.
	Separators []string
}

// DefaultSeparators runs from coarse to fine: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize: 1000,
		Overlap:      200,
		Separators:   DefaultSeparators,
	}
}

// Chunker splits content into overlapping chunks by recursive separators.
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
func NewChunker(config ChunkConfig) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultChunkConfig().MaxChunkSize
	}
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Overlap >= config.MaxChunkSize {
		config.Overlap = config.MaxChunkSize / 5
	}
	if len(config.Separators) == 0 {
		config.Separators = DefaultSeparators
	}
	return &Chunker{config: config}
}

// Process splits each incoming chunk and renumbers positions from 0.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		for _, sp := range c.spans(chunk.Content) {
			result = append(result, driven.Chunk{
				Content:     chunk.Content[sp.start:sp.end],
				Position:    position,
				StartOffset: chunk.StartOffset + sp.start,
				EndOffset:   chunk.StartOffset + sp.end,
			})
			position++
		}
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0.
func (c *Chunker) Order() int {
	return 0
}

// Split returns the chunks of text. Chunks are non-empty, trimmed and at
// most MaxChunkSize characters; whitespace-only text yields none.
func (c *Chunker) Split(text string) []string {
	spans := c.spans(text)
	out := make([]string, len(spans))
	for i, sp := range spans {
		out[i] = text[sp.start:sp.end]
	}
	return out
}

// span is a byte range of the text being chunked.
type span struct {
	start, end int
}

func (c *Chunker) spans(text string) []span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, span{0, len(text)}, c.config.Separators)
}

func (c *Chunker) split(text string, within span, separators []string) []span {
	separator := ""
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			break
		}
		if strings.Contains(text[within.start:within.end], sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks []span
	var fitting []span
	for _, piece := range splitKeep(text, within, separator) {
		if runes(text, piece) <= c.config.MaxChunkSize {
			fitting = append(fitting, piece)
			continue
		}
		if len(fitting) > 0 {
			chunks = append(chunks, c.merge(text, fitting)...)
			fitting = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, c.merge(text, splitKeep(text, piece, ""))...)
		} else {
			chunks = append(chunks, c.split(text, piece, rest)...)
		}
	}
	if len(fitting) > 0 {
		chunks = append(chunks, c.merge(text, fitting)...)
	}
	return chunks
}

// merge greedily joins adjacent pieces up to MaxChunkSize. Each new chunk
// starts with the trailing pieces of the previous one, totalling at most Overlap.
func (c *Chunker) merge(text string, pieces []span) []span {
	var chunks []span
	var window []span
	var total int

	emit := func() {
		if len(window) == 0 {
			return
		}
		if sp, ok := trim(text, span{window[0].start, window[len(window)-1].end}); ok {
			chunks = append(chunks, sp)
		}
	}

	for _, piece := range pieces {
		n := runes(text, piece)
		if total+n > c.config.MaxChunkSize && len(window) > 0 {
			emit()
			for total > 0 && (total > c.config.Overlap || total+n > c.config.MaxChunkSize) {
				total -= runes(text, window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	emit()

	return chunks
}

// splitKeep splits a span after each separator, keeping the separator on
// the left piece so the pieces tile the span. An empty separator splits
// into single characters.
func splitKeep(text string, within span, sep string) []span {
	var pieces []span
	pos := within.start
	if sep == "" {
		for pos < within.end {
			_, size := utf8.DecodeRuneInString(text[pos:within.end])
			pieces = append(pieces, span{pos, pos + size})
			pos += size
		}
		return pieces
	}
	for {
		idx := strings.Index(text[pos:within.end], sep)
		if idx < 0 {
			break
		}
		next := pos + idx + len(sep)
		pieces = append(pieces, span{pos, next})
		pos = next
	}
	if pos < within.end {
		pieces = append(pieces, span{pos, within.end})
	}
	return pieces
}

// trim shrinks a span past leading and trailing whitespace.
func trim(text string, sp span) (span, bool) {
	s := text[sp.start:sp.end]
	left := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	right := len(strings.TrimRightFunc(s, unicode.IsSpace))
	if right <= left {
		return span{}, false
	}
	return span{sp.start + left, sp.start + right}, true
}

func runes(text string, sp span) int {
	return utf8.RuneCountInString(text[sp.start:sp.end])
}

// WhitespaceNormalizer normalizes whitespace in chunks.
type WhitespaceNormalizer struct{}

// Verify interface compliance
var _ driven.PostProcessor = (*WhitespaceNormalizer)(nil)

// NewWhitespaceNormalizer creates a new whitespace normalizer.
func NewWhitespaceNormalizer() *WhitespaceNormalizer {
	return &WhitespaceNormalizer{}
}

// Process normalizes whitespace in chunks and drops chunks left empty.
func (w *WhitespaceNormalizer) Process(chunks []driven.Chunk) []driven.Chunk {
	result := make([]driven.Chunk, 0, len(chunks))

	for _, chunk := range chunks {
		content := chunk.Content

		// Normalize line endings
		content = strings.ReplaceAll(content, "\r\n", "\n")
		content = strings.ReplaceAll(content, "\r", "\n")

		// Collapse runs of spaces and tabs (but preserve newlines)
		lines := strings.Split(content, "\n")
		for i, line := range lines {
			lines[i] = strings.Join(strings.FieldsFunc(line, func(r rune) bool {
				return r == ' ' || r == '\t' || r == '\u00a0'
			}), " ")
		}
		content = strings.Join(lines, "\n")

		// Remove excessive blank lines
		for strings.Contains(content, "\n\n\n") {
			content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
		}

		content = strings.TrimSpace(content)

		if len(content) > 0 {
			newChunk := chunk
			newChunk.Content = content
			newChunk.EndOffset = newChunk.StartOffset + len(content)
			result = append(result, newChunk)
		}
	}

	return result
}

// Name returns the processor name.
func (w *WhitespaceNormalizer) Name() string {
	return "whitespace-normalizer"
}

// Order returns -10 - runs on the whole transcript before chunking.
func (w *WhitespaceNormalizer) Order() int {
	return -10
}
