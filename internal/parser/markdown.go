package parser

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TextParser returns file bytes as UTF-8 text unchanged.
type TextParser struct{}

// NewTextParser creates a TextParser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse reads the file and returns its content.
func (p *TextParser) Parse(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return string(content), nil
}

// MarkdownParser reads markdown files, stripping YAML front matter so
// metadata blocks don't end up embedded as searchable text.
type MarkdownParser struct{}

// NewMarkdownParser creates a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

// Parse reads the file and returns its body without front matter.
func (p *MarkdownParser) Parse(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return stripFrontMatter(string(content)), nil
}

// stripFrontMatter removes a leading YAML front matter block delimited by
// "---" lines. A block that isn't valid YAML is kept as body text.
func stripFrontMatter(content string) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}

	rest := strings.TrimPrefix(content, "---\n")
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return content
	}

	frontMatter := rest[:end]
	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte(frontMatter), &parsed); err != nil {
		return content
	}

	return rest[end+len("\n---\n"):]
}
