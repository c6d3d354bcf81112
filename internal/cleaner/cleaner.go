package cleaner

import (
	"strings"
	"unicode"
)

// Normalizer is the best-effort text cleaning stage: it normalizes line
// endings, strips control characters and collapses runs of blank lines.
// It never fails; garbage in yields the least-garbage text it can make.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Clean normalizes the text.
func (n *Normalizer) Clean(text string) string {
	if text == "" {
		return text
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))

	blankRun := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(stripControl(line), " \t")
		if line == "" {
			blankRun++
			// Collapse runs of blank lines to a single paragraph break.
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return strings.TrimRight(b.String(), "\n")
}

// stripControl removes non-printable runes, keeping tabs.
func stripControl(line string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, line)
}
