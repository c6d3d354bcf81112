package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/types"
)

var statusShowErrors bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth by file status",
	Long: `
Show how many files sit in each lifecycle status. With --errors the failed
files are listed with path, content hash and last-checked time, so a
failure can be diagnosed without re-reading logs.
`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowErrors, "errors", false, "list files in error status")
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue depth: %w", err)
	}

	statuses := []types.Status{
		types.StatusAdded, types.StatusUpdated, types.StatusDeleted,
		types.StatusClaimed, types.StatusOK, types.StatusError,
	}
	var total int64
	fmt.Println("Queue depth by status:")
	for _, status := range statuses {
		fmt.Printf("  %-8s %d\n", status, counts[status])
		total += counts[status]
	}
	fmt.Printf("  %-8s %d\n", "total", total)

	if age, ok, err := oldestEligibleAge(ctx, store); err != nil {
		return err
	} else if ok {
		fmt.Printf("\nOldest queued change: %v ago\n", age.Round(time.Second))
	}

	if statusShowErrors && counts[types.StatusError] > 0 {
		failures, err := store.ListByStatus(ctx, types.StatusError)
		if err != nil {
			return fmt.Errorf("failed to list error files: %w", err)
		}
		fmt.Println("\nFailed files:")
		for _, rec := range failures {
			fmt.Printf("  %s\n    hash: %s\n    last checked: %s\n",
				rec.Path, rec.ContentHash, rec.LastChecked.Local().Format(time.RFC3339))
		}
	}

	return nil
}

// oldestEligibleAge reports how long the oldest unclaimed change has been
// waiting, a rough signal for whether workers are keeping up.
func oldestEligibleAge(ctx context.Context, store *filestate.Store) (time.Duration, bool, error) {
	var oldest time.Time
	for _, status := range []types.Status{types.StatusDeleted, types.StatusUpdated, types.StatusAdded} {
		records, err := store.ListByStatus(ctx, status)
		if err != nil {
			return 0, false, fmt.Errorf("failed to list %s files: %w", status, err)
		}
		if len(records) > 0 {
			first := records[0].LastChecked
			if oldest.IsZero() || first.Before(oldest) {
				oldest = first
			}
		}
	}
	if oldest.IsZero() {
		return 0, false, nil
	}
	return time.Since(oldest), true, nil
}
