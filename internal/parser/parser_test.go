package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRegistry_ResolveByExtension(t *testing.T) {
	r := DefaultRegistry()

	for _, path := range []string{"a.md", "b.MD", "docs/c.markdown", "d.txt", "e.csv", "f.pdf"} {
		_, ok := r.Resolve(path)
		assert.True(t, ok, "expected a parser for %s", path)
	}

	_, ok := r.Resolve("binary.exe")
	assert.False(t, ok)
	_, ok = r.Resolve("no-extension")
	assert.False(t, ok)
}

func TestRegistry_RegisterNormalizesDot(t *testing.T) {
	r := NewRegistry()
	r.Register("log", NewTextParser())

	_, ok := r.Resolve("app.log")
	assert.True(t, ok)
	assert.Equal(t, []string{".log"}, r.Extensions())
}

func TestTextParser(t *testing.T) {
	path := writeTemp(t, "plain.txt", "plain text content\n")

	got, err := NewTextParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "plain text content\n", got)
}

func TestTextParser_MissingFile(t *testing.T) {
	_, err := NewTextParser().Parse(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestMarkdownParser_StripsFrontMatter(t *testing.T) {
	content := "---\ntitle: Test Doc\ntags:\n  - one\n---\n# Heading\n\nBody text.\n"
	path := writeTemp(t, "doc.md", content)

	got, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Heading\n\nBody text.\n", got)
}

func TestMarkdownParser_NoFrontMatter(t *testing.T) {
	content := "# Heading\n\nJust a body.\n"
	path := writeTemp(t, "doc.md", content)

	got, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMarkdownParser_UnterminatedFrontMatterKept(t *testing.T) {
	content := "---\ntitle: never closed\n# Heading\n"
	path := writeTemp(t, "doc.md", content)

	got, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMarkdownParser_InvalidYAMLKeptAsBody(t *testing.T) {
	content := "---\n\t{not yaml: [unclosed\n---\nBody.\n"
	path := writeTemp(t, "doc.md", content)

	got, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestMarkdownParser_HorizontalRuleIsNotFrontMatter(t *testing.T) {
	content := "Intro paragraph.\n\n---\n\nAfter the rule.\n"
	path := writeTemp(t, "doc.md", content)

	got, err := NewMarkdownParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCSVParser_RendersHeaderValuePairs(t *testing.T) {
	content := "name,role\nalice,engineer\nbob,designer\n"
	path := writeTemp(t, "people.csv", content)

	got, err := NewCSVParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "name: alice\nrole: engineer\n\nname: bob\nrole: designer\n", got)
}

func TestCSVParser_RaggedRowsAndBlanks(t *testing.T) {
	content := "name,role\nalice,engineer,extra\ncarol,\n"
	path := writeTemp(t, "people.csv", content)

	got, err := NewCSVParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got, "name: alice")
	assert.Contains(t, got, "extra")
	assert.Contains(t, got, "name: carol")
	assert.NotContains(t, got, "role: \n")
}

func TestCSVParser_EmptyFile(t *testing.T) {
	path := writeTemp(t, "empty.csv", "")

	got, err := NewCSVParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	path := writeTemp(t, "header.csv", "name,role\n")

	got, err := NewCSVParser().Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestStripFrontMatter_NotAtStart(t *testing.T) {
	content := "text first\n---\ntitle: x\n---\nmore\n"
	assert.Equal(t, content, stripFrontMatter(content))
}
