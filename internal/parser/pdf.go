package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// PDFParser extracts text from PDF page content streams via pdfcpu. It
// collects the string literals of text-showing operators, which covers
// machine-generated documents; scanned PDFs yield nothing (and surface
// downstream as an empty-segment failure).
type PDFParser struct{}

// NewPDFParser creates a PDFParser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts the text of every page.
func (p *PDFParser) Parse(ctx context.Context, path string) (string, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF %s: %w", path, err)
	}

	var b strings.Builder
	for page := 1; page <= pdfCtx.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reader, err := pdfcpu.ExtractPageContent(pdfCtx, page)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d of %s: %w", page, path, err)
		}
		if reader == nil {
			continue
		}

		content, err := io.ReadAll(reader)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d of %s: %w", page, path, err)
		}

		pageText := literalsFromContent(content)
		if pageText != "" {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(pageText)
		}
	}

	return b.String(), nil
}

// literalsFromContent pulls the parenthesized string literals out of a
// page content stream, honoring PDF string escapes.
func literalsFromContent(content []byte) string {
	var b strings.Builder
	depth := 0

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case c == '\\' && depth > 0 && i+1 < len(content):
			i++
			switch content[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r', 'b', 'f':
				// formatting escapes with no text value
			case '(', ')', '\\':
				b.WriteByte(content[i])
			default:
				// Octal escape \ddd
				if content[i] >= '0' && content[i] <= '7' {
					val := int(content[i] - '0')
					for j := 0; j < 2 && i+1 < len(content) && content[i+1] >= '0' && content[i+1] <= '7'; j++ {
						i++
						val = val*8 + int(content[i]-'0')
					}
					if val >= 32 && val < 127 {
						b.WriteByte(byte(val))
					}
				}
			}
		case c == '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case c == ')':
			depth--
			if depth > 0 {
				b.WriteByte(c)
			} else if depth == 0 {
				b.WriteByte(' ')
			}
			if depth < 0 {
				depth = 0
			}
		case depth > 0:
			b.WriteByte(c)
		}
	}

	return strings.TrimSpace(b.String())
}
