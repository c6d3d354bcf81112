package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/types"
)

// Exporter dumps the derived-unit store to JSON Lines files, one file per
// source document, for downstream loading into an external vector index.
type Exporter struct {
	store  *filestate.Store
	writer *derived.Writer
}

// New creates an Exporter over the given stores.
func New(store *filestate.Store, writer *derived.Writer) *Exporter {
	return &Exporter{store: store, writer: writer}
}

// Result summarizes an export run.
type Result struct {
	Files    int
	Units    int
	Skipped  int
	Duration time.Duration
}

// ExportAll writes every processed file's units to outputDir. Files whose
// state is not "ok" are skipped: their units are absent or stale.
func (e *Exporter) ExportAll(ctx context.Context, outputDir string) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	records, err := e.store.ListByStatus(ctx, types.StatusOK)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed files: %w", err)
	}

	result := &Result{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		units, err := e.writer.ListByHash(ctx, rec.ContentHash)
		if err != nil {
			return result, fmt.Errorf("failed to load units for %s: %w", rec.Path, err)
		}
		if len(units) == 0 {
			result.Skipped++
			continue
		}

		if err := e.writeUnits(outputDir, rec, units); err != nil {
			return result, err
		}
		result.Files++
		result.Units += len(units)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// writeUnits writes one JSONL file per source document. The file name is
// the content hash so re-exports overwrite cleanly and two documents can
// never collide.
func (e *Exporter) writeUnits(outputDir string, rec *types.FileRecord, units []*types.DerivedUnit) error {
	name := fmt.Sprintf("%s.jsonl", rec.ContentHash)
	path := filepath.Join(outputDir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	for _, unit := range units {
		if err := enc.Encode(unit); err != nil {
			return fmt.Errorf("failed to encode unit %s: %w", unit.ID, err)
		}
	}

	return f.Close()
}
