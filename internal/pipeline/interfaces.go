package pipeline

import (
	"context"
)

// Parser extracts text from a file on disk. Implementations are selected
// by file extension from a registry resolved once at startup.
type Parser interface {
	// Parse reads the file at the absolute path and returns its text content
	Parse(ctx context.Context, path string) (string, error)
}

// ParserResolver selects a Parser for a path, or reports that none applies.
type ParserResolver interface {
	Resolve(path string) (Parser, bool)
}

// Cleaner normalizes extracted text. It is best-effort and never fails:
// on internal trouble it must return its input unchanged.
type Cleaner interface {
	Clean(text string) string
}

// Chunker splits text into ordered segments for vectorization.
type Chunker interface {
	// Split returns the ordered segments of the text. An empty result is
	// treated by the orchestrator as a failure: nothing to index.
	Split(text string) ([]string, error)
}

// Embedder turns one text segment into a numeric vector. It calls a
// shared, throughput-limited external service and may fail transiently;
// failures propagate as stage failures.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
