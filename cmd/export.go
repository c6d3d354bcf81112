package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/export"
	"github.com/ca-srg/syncvec/internal/filestate"
)

var exportOutputDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export derived units to JSON Lines files",
	Long: `
Export every processed file's derived units to JSONL files (one file per
source document, named by content hash) for loading into an external
vector index.
`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutputDir, "output", "o", "./export", "output directory for JSONL files")
}

func runExport(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := filestate.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open file state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	writer, err := derived.NewWriter(store.DB())
	if err != nil {
		return fmt.Errorf("failed to open derived data store: %w", err)
	}

	result, err := export.New(store, writer).ExportAll(context.Background(), exportOutputDir)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %d unit(s) from %d file(s) to %s (%d skipped) in %v\n",
		result.Units, result.Files, exportOutputDir, result.Skipped,
		result.Duration.Round(time.Millisecond))
	return nil
}
