package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSVParser renders each data row as a "header: value" line group so the
// tabular structure survives as searchable text.
type CSVParser struct{}

// NewCSVParser creates a CSVParser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads the CSV file and returns its rows as text.
func (p *CSVParser) Parse(_ context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // ragged rows are common in exported sheets

	header, err := reader.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read CSV header: %w", err)
	}

	var b strings.Builder
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read CSV row %d: %w", rowNum+1, err)
		}
		rowNum++

		if rowNum > 1 {
			b.WriteString("\n")
		}
		for i, value := range row {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				b.WriteString(fmt.Sprintf("%s: %s\n", strings.TrimSpace(header[i]), value))
			} else {
				b.WriteString(value + "\n")
			}
		}
	}

	return b.String(), nil
}
