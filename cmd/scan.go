package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/fsync"
)

var scanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Reconcile the watched tree against the file state store",
	Long: `
Walk the watched tree, hash every candidate file, and reconcile the result
against the file state store: new paths become "added", changed hashes
become "updated", vanished paths become "deleted", and a known hash under
a new name is recorded as a move with no reprocessing.

With --dry-run the planned changes are reported but not written.
`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanDryRun, "dry-run", false, "report planned changes without writing them")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	scanner := fsync.NewScanner(cfg.WatchRoot, store, cfg.IncludeExtensions, cfg.MaxFileSize)

	result, err := scanner.Run(context.Background(), scanDryRun)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if scanDryRun {
		log.Printf("dry run: no changes written")
	}
	fmt.Printf("Scanned %d files in %v\n", result.FilesScanned, result.Duration.Round(time.Millisecond))
	fmt.Printf("  added:     %d\n", result.Added)
	fmt.Printf("  updated:   %d\n", result.Updated)
	fmt.Printf("  deleted:   %d\n", result.Deleted)
	fmt.Printf("  moved:     %d\n", result.Moved)
	fmt.Printf("  unchanged: %d\n", result.Unchanged)

	return nil
}
