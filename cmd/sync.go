package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ca-srg/syncvec/internal/chunker"
	"github.com/ca-srg/syncvec/internal/cleaner"
	"github.com/ca-srg/syncvec/internal/config"
	"github.com/ca-srg/syncvec/internal/derived"
	"github.com/ca-srg/syncvec/internal/embedding/bedrock"
	"github.com/ca-srg/syncvec/internal/filestate"
	"github.com/ca-srg/syncvec/internal/fsync"
	"github.com/ca-srg/syncvec/internal/parser"
	"github.com/ca-srg/syncvec/internal/pipeline"
	"github.com/ca-srg/syncvec/internal/worker"
)

var (
	syncOnce   bool
	syncDryRun bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan the watched tree and process changed files",
	Long: `
Run the synchronization engine: reclaim orphaned claims from a previous
run, scan the watched tree, then start the worker pool. Without --once the
scan repeats on the configured interval and workers poll until interrupted.
`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "scan once, drain the queue, then exit")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report what a sync would do, then exit without processing")
}

func runSync(cmd *cobra.Command, args []string) error {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := filestate.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open file state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if syncDryRun {
		scanner := fsync.NewScanner(cfg.WatchRoot, store, cfg.IncludeExtensions, cfg.MaxFileSize)
		result, err := scanner.Run(ctx, true)
		if err != nil {
			return fmt.Errorf("dry-run scan failed: %w", err)
		}
		fmt.Printf("dry run: %d added, %d updated, %d deleted, %d moved would be queued\n",
			result.Added, result.Updated, result.Deleted, result.Moved)
		return nil
	}

	writer, err := derived.NewWriter(store.DB())
	if err != nil {
		return fmt.Errorf("failed to open derived data writer: %w", err)
	}

	// Crash recovery: a worker that died mid-pipeline left its file
	// claimed forever; return those rows to the queue before starting.
	reclaimed, err := store.ReclaimOrphans(ctx)
	if err != nil {
		return fmt.Errorf("failed to reclaim orphans: %w", err)
	}
	if reclaimed > 0 {
		log.Printf("reclaimed %d orphaned claim(s) from a previous run", reclaimed)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	embedder := bedrock.GetSharedClient(awsCfg, cfg.EmbeddingModel)

	opts := pipeline.Options{
		EmbedRate: rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), cfg.EmbedRateBurst),
	}
	if cfg.CleanEnabled {
		opts.Cleaner = cleaner.NewNormalizer()
	}

	orchestrator := pipeline.NewOrchestrator(
		cfg.WatchRoot,
		store,
		writer,
		parser.DefaultRegistry(),
		chunker.NewSplitterWithLimits(cfg.ChunkMaxTokens, cfg.ChunkOverlapTokens),
		embedder,
		pipeline.NewStageLimits(cfg.ParseConcurrency, cfg.EmbedConcurrency),
		opts,
	)

	scanner := fsync.NewScanner(cfg.WatchRoot, store, cfg.IncludeExtensions, cfg.MaxFileSize)
	if _, err := scanner.Run(ctx, false); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	pool := worker.NewPool(store, orchestrator, cfg.Workers, cfg.PollInterval)

	if syncOnce {
		pool.Drain(ctx)
		stats := pool.Stats()
		log.Printf("sync complete: %d claimed, %d ok, %d failed, %d deleted",
			stats.FilesClaimed, stats.FilesSucceeded, stats.FilesFailed, stats.FilesDeleted)
		return nil
	}

	scheduler := worker.NewScheduler(cfg.ScanInterval, func(ctx context.Context) error {
		_, err := scanner.Run(ctx, false)
		return err
	})
	scheduler.Start(ctx)
	defer scheduler.Stop()

	log.Printf("watching %s (workers: %d, scan interval: %v)", cfg.WatchRoot, cfg.Workers, cfg.ScanInterval)
	pool.Run(ctx)

	return nil
}
