package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "syncvec",
	Short: "syncvec - content-hash file synchronization and vectorization engine",
	Long: `syncvec watches a directory tree, detects file changes by content hash,
and drives each changed file through a parse/clean/segment/vectorize/persist
pipeline with crash-safe job dispatch: at-most-one-worker-per-file claims,
priority ordering (deleted > updated > added), and independent per-stage
concurrency limits for CPU-bound parsing and the rate-limited embedding service.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(vectorsCmd)
	rootCmd.AddCommand(exportCmd)
}
