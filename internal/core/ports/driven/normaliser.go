package driven

// Normaliser cleans raw transcript text before it is chunked.
// Sources deliver captions in different shapes; the normaliser turns them
// into plain prose.
type Normaliser interface {
	// Normalise transforms raw content into plain text.
	// The mimeType helps determine the appropriate processing.
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Can include wildcards like "text/*" or specific types like "text/vtt".
	SupportedTypes() []string

	// Priority returns the normaliser priority (higher = more specific).
	// Priority ranges:
	//   50-89:  Format-specific (WebVTT, caption tracks)
	//   10-49:  Generic (basic text processing)
	//   1-9:    Fallback (raw text)
	Priority() int
}

// NormaliserRegistry manages transcript normalisers.
// When multiple normalisers match a MIME type, the highest priority one is used.
type NormaliserRegistry interface {
	// Get retrieves the best-matching normaliser for a MIME type.
	// Returns nil if no normaliser is registered for the type.
	Get(mimeType string) Normaliser

	// GetAll retrieves all normalisers that match a MIME type, sorted by priority (highest first).
	GetAll(mimeType string) []Normaliser

	// Register registers a normaliser.
	Register(normaliser Normaliser)

	// List returns all registered MIME types.
	List() []string
}

// PostProcessor applies post-processing to transcript content or chunks.
// Processors form a pipeline: WhitespaceNormalizer -> Chunker -> etc.
type PostProcessor interface {
	// Process applies post-processing to content chunks.
	// The first processor receives a single chunk with the full content.
	// Subsequent processors receive the chunks from the previous stage.
	Process(chunks []Chunk) []Chunk

	// Name returns the processor name for logging/debugging.
	Name() string

	// Order returns the processor order in the pipeline (lower = earlier).
	// Chunker should be 0; normalisers that must see the whole text run below 0.
	Order() int
}

// Chunk represents a piece of transcript content for processing.
type Chunk struct {
	// Content is the text content of the chunk
	Content string

	// Position is the chunk index within the transcript (0-based)
	Position int

	// StartOffset is the byte offset from transcript start
	StartOffset int

	// EndOffset is the byte offset for chunk end
	EndOffset int

	// Metadata contains additional chunk-specific data
	Metadata map[string]string
}

// PostProcessorPipeline chains multiple post-processors in order.
type PostProcessorPipeline interface {
	// Process applies all processors in order.
	// Input is the raw transcript text.
	// Output is the processed chunks ready for encoding.
	Process(content string) []Chunk

	// Add adds a processor to the pipeline.
	// Processors are sorted by Order() before processing.
	Add(processor PostProcessor)

	// List returns processor names in order.
	List() []string
}
