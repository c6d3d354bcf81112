package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean_EmptyInput(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "", n.Clean(""))
}

func TestClean_NormalizesLineEndings(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "one\ntwo\nthree", n.Clean("one\r\ntwo\rthree"))
}

func TestClean_StripsControlCharacters(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "hello world", n.Clean("hel\x00lo wor\x1bld"))
}

func TestClean_KeepsTabs(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "col1\tcol2", n.Clean("col1\tcol2"))
}

func TestClean_TrimsTrailingWhitespace(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "line one\nline two", n.Clean("line one   \nline two\t\t"))
}

func TestClean_CollapsesBlankLineRuns(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "para one\n\npara two", n.Clean("para one\n\n\n\n\npara two"))
}

func TestClean_DropsReplacementRunes(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, "broken text", n.Clean("broken� text"))
}

func TestClean_Idempotent(t *testing.T) {
	n := NewNormalizer()
	input := "a\r\n\r\n\r\nb  \n\tc\x07d"
	once := n.Clean(input)
	assert.Equal(t, once, n.Clean(once))
}

func TestClean_PreservesUnicodeText(t *testing.T) {
	n := NewNormalizer()
	text := "日本語のテキスト\némojis: 🚀 stay"
	assert.Equal(t, text, n.Clean(text))
}
