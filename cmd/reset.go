package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/filestate"
)

var resetOrphans bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return failed files to the processing queue",
	Long: `
Files that fail a pipeline stage stay in "error" until their content
changes. This command returns them to the queue without a content change.

With --orphans, rows stuck in "claimed" (a worker died mid-job and the
process has not restarted since) are reclaimed as well.
`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetOrphans, "orphans", false, "also reclaim rows stuck in claimed status")
}

func runReset(cmd *cobra.Command, args []string) error {
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

	ctx := context.Background()

	reset, err := store.ResetErrors(ctx)
	if err != nil {
		return fmt.Errorf("failed to reset error files: %w", err)
	}
	fmt.Printf("Requeued %d failed file(s)\n", reset)

	if resetOrphans {
		reclaimed, err := store.ReclaimOrphans(ctx)
		if err != nil {
			return fmt.Errorf("failed to reclaim orphans: %w", err)
		}
		fmt.Printf("Reclaimed %d orphaned claim(s)\n", reclaimed)
	}

	return nil
}
