package postprocessors

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if len(p.processors) != 0 {
		t.Errorf("expected empty processors, got %d", len(p.processors))
	}
}

func TestPipeline_OrderedProcessors(t *testing.T) {
	p := NewPipeline()

	// Add in wrong order - should be sorted by Order()
	p.Add(NewChunker(DefaultChunkConfig()))
	p.Add(NewWhitespaceNormalizer())

	names := p.List()
	if len(names) != 2 {
		t.Fatalf("expected 2 processors, got %d", len(names))
	}
	if names[0] != "whitespace-normalizer" {
		t.Errorf("expected first processor 'whitespace-normalizer', got %s", names[0])
	}
	if names[1] != "chunker" {
		t.Errorf("expected second processor 'chunker', got %s", names[1])
	}
}

func TestDefaultPipeline(t *testing.T) {
	names := DefaultPipeline().List()
	if len(names) != 2 {
		t.Fatalf("expected 2 processors in default pipeline, got %d", len(names))
	}
}

func TestPipeline_Process_EmptyContent(t *testing.T) {
	p := DefaultPipeline()

	for _, content := range []string{"", "   ", "\n\n\t  \n"} {
		if chunks := p.Process(content); len(chunks) != 0 {
			t.Errorf("expected no chunks for %q, got %d", content, len(chunks))
		}
	}
}

func TestPipeline_Process_SmallContent(t *testing.T) {
	p := DefaultPipeline()

	content := "Hello,   world!  "
	chunks := p.Process(content)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Hello, world!" {
		t.Errorf("expected normalized content, got %q", chunks[0].Content)
	}
	if chunks[0].Position != 0 {
		t.Errorf("expected position 0, got %d", chunks[0].Position)
	}
}

func numberedWords(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestPipeline_Process_LargeContent(t *testing.T) {
	p := DefaultPipeline()
	content := numberedWords(600)

	chunks := p.Process(content)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if chunk.Position != i {
			t.Errorf("expected position %d, got %d", i, chunk.Position)
		}
		if n := utf8.RuneCountInString(chunk.Content); n > 1000 {
			t.Errorf("chunk %d has %d characters", i, n)
		}
		if content[chunk.StartOffset:chunk.EndOffset] != chunk.Content {
			t.Errorf("chunk %d offsets do not match content", i)
		}
	}

	// Consecutive chunks overlap by whole words, at most 200 characters
	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		first := strings.Fields(chunks[i].Content)[0]
		pos := -1
		for j, w := range prev {
			if w == first {
				pos = j
			}
		}
		if pos < 0 {
			t.Fatalf("chunk %d does not overlap its predecessor", i)
		}
		overlap := strings.Join(prev[pos:], " ")
		if len(overlap) > 200 {
			t.Errorf("chunk %d overlap is %d characters", i, len(overlap))
		}
		if !strings.HasPrefix(chunks[i].Content, overlap) {
			t.Errorf("chunk %d does not start with the overlap", i)
		}
	}

	// Last word is covered
	if !strings.HasSuffix(chunks[len(chunks)-1].Content, "w599") {
		t.Error("expected final chunk to end with the last word")
	}
}

func TestPipeline_Process_Deterministic(t *testing.T) {
	content := numberedWords(900)
	a := DefaultPipeline().Process(content)
	b := DefaultPipeline().Process(content)

	if len(a) != len(b) {
		t.Fatalf("expected equal chunk counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Content != b[i].Content || a[i].StartOffset != b[i].StartOffset {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestDefaultChunkConfig(t *testing.T) {
	config := DefaultChunkConfig()

	if config.MaxChunkSize != 1000 {
		t.Errorf("expected MaxChunkSize 1000, got %d", config.MaxChunkSize)
	}
	if config.Overlap != 200 {
		t.Errorf("expected Overlap 200, got %d", config.Overlap)
	}
	if config.Separators[0] != "\n\n" {
		t.Errorf("expected paragraph separator first, got %q", config.Separators[0])
	}
}

func TestNewChunker_ClampsConfig(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 100, Overlap: 150})
	if c.config.Overlap >= c.config.MaxChunkSize {
		t.Errorf("expected overlap below chunk size, got %d", c.config.Overlap)
	}
	c = NewChunker(ChunkConfig{})
	if c.config.MaxChunkSize != 1000 {
		t.Errorf("expected default size, got %d", c.config.MaxChunkSize)
	}
}

func TestChunker_NameAndOrder(t *testing.T) {
	c := NewChunker(DefaultChunkConfig())
	if c.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got %s", c.Name())
	}
	if c.Order() != 0 {
		t.Errorf("expected order 0, got %d", c.Order())
	}
}

func TestChunker_PrefersParagraphs(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 30, Overlap: 0})

	content := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph is here."
	got := c.Split(content)

	want := []string{"First paragraph here.", "Second paragraph here.", "Third paragraph is here."}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestChunker_FallsBackToSentences(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 20, Overlap: 0})

	got := c.Split("One two three. Four five six. Seven eight nine.")

	want := []string{"One two three.", "Four five six.", "Seven eight nine."}
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks, got %d: %q", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestChunker_HardCut(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 100, Overlap: 20})

	content := strings.Repeat("x", 250)
	chunks := c.Process([]driven.Chunk{{Content: content, EndOffset: len(content)}})

	wantOffsets := [][2]int{{0, 100}, {80, 180}, {160, 250}}
	if len(chunks) != len(wantOffsets) {
		t.Fatalf("expected %d chunks, got %d", len(wantOffsets), len(chunks))
	}
	for i, w := range wantOffsets {
		if chunks[i].StartOffset != w[0] || chunks[i].EndOffset != w[1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)", i, w[0], w[1], chunks[i].StartOffset, chunks[i].EndOffset)
		}
	}
}

func TestChunker_CountsCharactersNotBytes(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 10, Overlap: 0})

	// 10 two-byte characters fit in one chunk
	got := c.Split(strings.Repeat("é", 10))
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(got))
	}
}

func TestChunker_LongWordIsCut(t *testing.T) {
	c := NewChunker(ChunkConfig{MaxChunkSize: 10, Overlap: 0})

	got := c.Split("short " + strings.Repeat("y", 25) + " tail")
	for _, chunk := range got {
		if utf8.RuneCountInString(chunk) > 10 {
			t.Errorf("chunk %q exceeds the limit", chunk)
		}
		if chunk == "" {
			t.Error("unexpected empty chunk")
		}
	}
	if got[0] != "short" || got[len(got)-1] != "tail" {
		t.Errorf("unexpected chunks %q", got)
	}
}

func TestWhitespaceNormalizer_NameAndOrder(t *testing.T) {
	w := NewWhitespaceNormalizer()
	if w.Name() != "whitespace-normalizer" {
		t.Errorf("expected name 'whitespace-normalizer', got %s", w.Name())
	}
	if w.Order() != -10 {
		t.Errorf("expected order -10, got %d", w.Order())
	}
}

func TestWhitespaceNormalizer_Process(t *testing.T) {
	w := NewWhitespaceNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"windows line endings", "hello\r\nworld", "hello\nworld"},
		{"old mac line endings", "hello\rworld", "hello\nworld"},
		{"collapses spaces", "so   much\t\tspace", "so much space"},
		{"keeps paragraphs", "a\n\n\n\nb", "a\n\nb"},
		{"trims", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := w.Process([]driven.Chunk{{Content: tt.input}})
			if len(result) != 1 {
				t.Fatalf("expected 1 chunk, got %d", len(result))
			}
			if result[0].Content != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result[0].Content)
			}
		})
	}
}

func TestWhitespaceNormalizer_DropsEmpty(t *testing.T) {
	w := NewWhitespaceNormalizer()
	result := w.Process([]driven.Chunk{{Content: " \n\t "}, {Content: "x"}})
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
}
