package chunker

import (
	"strings"
	"unicode/utf8"
)

// Splitter segments text into chunks sized for the embedding model's
// context window, preferring paragraph and sentence boundaries and
// keeping a small overlap between adjacent chunks for context.
type Splitter struct {
	MaxTokens     int     // Maximum tokens per chunk
	OverlapTokens int     // Overlapping tokens between adjacent chunks
	TokensPerChar float64 // Estimated tokens per character
}

// NewSplitter creates a splitter with defaults safe for an 8192-token model.
func NewSplitter() *Splitter {
	return &Splitter{
		MaxTokens:     7000,
		OverlapTokens: 200,
		TokensPerChar: 0.7,
	}
}

// NewSplitterWithLimits creates a splitter with explicit limits.
func NewSplitterWithLimits(maxTokens, overlapTokens int) *Splitter {
	s := NewSplitter()
	if maxTokens > 0 {
		s.MaxTokens = maxTokens
	}
	if overlapTokens >= 0 && overlapTokens < s.MaxTokens {
		s.OverlapTokens = overlapTokens
	}
	return s
}

// EstimateTokens estimates the token count for a text. Character count
// times a per-character factor is rough but adequate for sizing chunks.
func (s *Splitter) EstimateTokens(text string) int {
	return int(float64(utf8.RuneCountInString(text)) * s.TokensPerChar)
}

// Split returns the ordered segments of the text. Whitespace-only input
// yields no segments.
func (s *Splitter) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if s.EstimateTokens(text) <= s.MaxTokens {
		return []string{text}, nil
	}

	maxChars := int(float64(s.MaxTokens) / s.TokensPerChar)
	overlapChars := int(float64(s.OverlapTokens) / s.TokensPerChar)

	return s.splitByRunes(text, maxChars, overlapChars), nil
}

func (s *Splitter) splitByRunes(text string, maxChars, overlapChars int) []string {
	runes := []rune(text)
	total := len(runes)

	if total <= maxChars {
		return []string{text}
	}

	var segments []string
	start := 0
	for start < total {
		end := start + maxChars
		if end > total {
			end = total
		}

		if end < total {
			// Prefer a paragraph break, then a sentence break.
			if bp := s.lastBreak(runes[start:end], []string{"\n\n"}); bp > 0 {
				end = start + bp
			} else if bp := s.lastBreak(runes[start:end], []string{". ", ".\n", "!\n", "?\n", "! ", "? "}); bp > 0 {
				end = start + bp
			}
		}

		segments = append(segments, string(runes[start:end]))

		if end >= total {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return segments
}

// lastBreak returns the rune position just past the last occurrence of
// any delimiter, or 0 when none is present.
func (s *Splitter) lastBreak(runes []rune, delimiters []string) int {
	text := string(runes)
	best := -1
	for _, delim := range delimiters {
		if pos := strings.LastIndex(text, delim); pos >= 0 && pos+len(delim) > best {
			best = pos + len(delim)
		}
	}
	if best <= 0 {
		return 0
	}
	return utf8.RuneCountInString(text[:best])
}
