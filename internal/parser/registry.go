package parser

import (
	"path/filepath"
	"strings"

	"github.com/ca-srg/syncvec/internal/pipeline"
)

// Registry maps file extensions to Parser implementations. It is built
// once at startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	parsers map[string]pipeline.Parser
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]pipeline.Parser)}
}

// Register binds a parser to an extension (with or without leading dot).
func (r *Registry) Register(ext string, p pipeline.Parser) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.parsers[ext] = p
}

// Resolve selects the parser for a path by extension.
func (r *Registry) Resolve(path string) (pipeline.Parser, bool) {
	p, ok := r.parsers[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// Extensions returns the registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}

// DefaultRegistry wires the reference parsers for the supported formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	text := NewTextParser()
	md := NewMarkdownParser()
	csv := NewCSVParser()
	pdf := NewPDFParser()

	r.Register(".txt", text)
	r.Register(".md", md)
	r.Register(".markdown", md)
	r.Register(".csv", csv)
	r.Register(".pdf", pdf)

	return r
}
