package normalisers

import (
	"testing"

	"github.com/custodia-labs/sercha-tube/internal/core/ports/driven"
)

// Mock normaliser for testing
type mockNormaliser struct {
	name     string
	types    []string
	priority int
}

func (m *mockNormaliser) Normalise(content string, mimeType string) string {
	return content + "-" + m.name
}

func (m *mockNormaliser) SupportedTypes() []string {
	return m.types
}

func (m *mockNormaliser) Priority() int {
	return m.priority
}

func TestRegistry_Get_PrioritySelection(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{name: "low", types: []string{"text/*"}, priority: 10})
	r.Register(&mockNormaliser{name: "high", types: []string{"text/vtt"}, priority: 80})

	n := r.Get("text/vtt")
	if n == nil {
		t.Fatal("expected to find normaliser")
	}
	if got := n.Normalise("x", "text/vtt"); got != "x-high" {
		t.Errorf("expected high priority normaliser, got %s", got)
	}

	if got := r.Get("text/plain").Normalise("x", "text/plain"); got != "x-low" {
		t.Errorf("expected wildcard normaliser, got %s", got)
	}
}

func TestRegistry_Get_NoMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{name: "vtt", types: []string{"text/vtt"}, priority: 50})

	if n := r.Get("application/json"); n != nil {
		t.Error("expected nil for unregistered type")
	}
}

func TestRegistry_GetAll(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{name: "a", types: []string{"*/*"}, priority: 1})
	r.Register(&mockNormaliser{name: "b", types: []string{"text/x-captions"}, priority: 60})
	r.Register(&mockNormaliser{name: "c", types: []string{"text/*"}, priority: 20})

	all := r.GetAll("text/x-captions")
	if len(all) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(all))
	}
	for i, want := range []int{60, 20, 1} {
		if all[i].Priority() != want {
			t.Errorf("position %d: expected priority %d, got %d", i, want, all[i].Priority())
		}
	}
}

func TestRegistry_List(t *testing.T) {
	r := DefaultRegistry()

	types := r.List()
	want := []string{"*/*", TypePlain, TypeCaptions, TypeWebVTT}
	if len(types) != len(want) {
		t.Fatalf("expected %d types, got %v", len(want), types)
	}
	for i := 1; i < len(types); i++ {
		if types[i-1] > types[i] {
			t.Errorf("expected sorted types, got %v", types)
		}
	}
}

func TestMatchesMIMEType(t *testing.T) {
	tests := []struct {
		supported []string
		mimeType  string
		want      bool
	}{
		{[]string{"text/vtt"}, "text/vtt", true},
		{[]string{"text/vtt"}, "TEXT/VTT; charset=utf-8", true},
		{[]string{"text/*"}, "text/x-captions", true},
		{[]string{"text/*"}, "application/json", false},
		{[]string{"*/*"}, "anything/else", true},
		{[]string{"text/plain"}, "text/vtt", false},
	}

	for _, tt := range tests {
		if got := matchesMIMEType(tt.supported, tt.mimeType); got != tt.want {
			t.Errorf("matchesMIMEType(%v, %q) = %v, want %v", tt.supported, tt.mimeType, got, tt.want)
		}
	}
}

func TestDefaultRegistry_Selection(t *testing.T) {
	r := DefaultRegistry()

	tests := []struct {
		mimeType string
		want     driven.Normaliser
	}{
		{TypePlain, &PlaintextNormaliser{}},
		{TypeCaptions, &CaptionNormaliser{}},
		{TypeWebVTT, &WebVTTNormaliser{}},
		{"application/octet-stream", &PlaintextNormaliser{}},
	}

	for _, tt := range tests {
		got := r.Get(tt.mimeType)
		if got == nil || got.Priority() != tt.want.Priority() {
			t.Errorf("%s: expected %T, got %T", tt.mimeType, tt.want, got)
		}
	}
}

func TestPlaintextNormaliser(t *testing.T) {
	n := &PlaintextNormaliser{}

	got := n.Normalise("  line one\r\nline two\r  ", TypePlain)
	if got != "line one\nline two" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestCaptionNormaliser(t *testing.T) {
	n := &CaptionNormaliser{}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"entities", "it&#39;s rock &amp; roll", "it's rock & roll"},
		{"double escaped", "don&amp;#39;t stop", "don't stop"},
		{"sound cues", "[Music] welcome back [Applause] everyone", "welcome back everyone"},
		{"speaker change", ">> hello >> hi there", "hello hi there"},
		{"keeps arrows in words", "a>>b", "a>>b"},
		{"whitespace", "  many\n\n spaces\there ", "many spaces here"},
		{"only cues", "[Music] [Music]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalise(tt.input, TypeCaptions); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWebVTTNormaliser(t *testing.T) {
	n := &WebVTTNormaliser{}

	input := "WEBVTT\nKind: captions\nLanguage: en\n\n" +
		"NOTE generated track\nsecond note line\n\n" +
		"1\n00:00:00.000 --> 00:00:02.000 align:start\n<c.colorE5E5E5>welcome</c> to the<00:00:01.200><c> show</c>\n\n" +
		"2\n00:00:02.000 --> 00:00:04.000\nwelcome to the show\ntoday we talk &amp; laugh\n\n" +
		"00:04.000 --> 00:06.000\n[Music]\n"

	got := n.Normalise(input, TypeWebVTT)
	want := "welcome to the show today we talk & laugh"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestStage_Process(t *testing.T) {
	s := NewStage(DefaultRegistry(), TypeCaptions)

	if s.Order() >= 0 {
		t.Errorf("expected stage before chunker, got order %d", s.Order())
	}
	if s.Name() != "normaliser:text/x-captions" {
		t.Errorf("unexpected name %s", s.Name())
	}

	out := s.Process([]driven.Chunk{
		{Content: "[Music] it&#39;s live", Position: 0},
		{Content: "[Applause]", Position: 1},
	})
	if len(out) != 1 {
		t.Fatalf("expected empty chunk dropped, got %d chunks", len(out))
	}
	if out[0].Content != "it's live" {
		t.Errorf("unexpected content %q", out[0].Content)
	}
	if out[0].EndOffset != len("it's live") {
		t.Errorf("unexpected end offset %d", out[0].EndOffset)
	}
}

func TestStage_FallsBackToPlaintext(t *testing.T) {
	s := NewStage(NewRegistry(), "application/json")

	out := s.Process([]driven.Chunk{{Content: "  keep [this]  "}})
	if len(out) != 1 || out[0].Content != "keep [this]" {
		t.Errorf("unexpected output %+v", out)
	}
}
