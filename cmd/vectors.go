package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/filestate"
)

var vectorsLimit int

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "List stored derived units",
	Long: `
List derived units (vectorized segments) currently persisted, newest
first. Useful for checking what a sync run actually produced.
`,
	RunE: runVectors,
}

func init() {
	vectorsCmd.Flags().IntVarP(&vectorsLimit, "limit", "n", 20, "maximum number of units to list")
}

func runVectors(cmd *cobra.Command, args []string) error {
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

	units, err := writer.List(context.Background(), vectorsLimit)
	if err != nil {
		return fmt.Errorf("failed to list derived units: %w", err)
	}

	if len(units) == 0 {
		fmt.Println("No derived units stored.")
		return nil
	}

	for _, unit := range units {
		preview := strings.TrimSpace(unit.Content)
		preview = strings.ReplaceAll(preview, "\n", " ")
		if len(preview) > 80 {
			preview = preview[:80] + "..."
		}
		fmt.Printf("%s  chunk %d/%d  dims=%d  hash=%.12s\n  %s\n",
			unit.Path, unit.ChunkIndex+1, unit.TotalChunks, len(unit.Embedding), unit.FileHash, preview)
	}

	return nil
}
