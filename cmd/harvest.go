package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/playcatalog/harvester/internal/config"
	collyfetcher "github.com/playcatalog/harvester/internal/fetcher/colly"
	"github.com/playcatalog/harvester/internal/logging"
	"github.com/playcatalog/harvester/internal/metadata"
	"github.com/playcatalog/harvester/internal/metrics"
	"github.com/playcatalog/harvester/internal/progress"
	"github.com/playcatalog/harvester/internal/publish"
	"github.com/playcatalog/harvester/internal/sitemap"
)

// newHarvestCmd creates and configures the 'harvest' subcommand.
func newHarvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Fetches the sitemap shards and merges the extracted app ids",
		Long: `Resolves the full set of sitemap shard URLs (from the cached list or the
live robots.txt and sitemap indexes), fetches every shard that has no
record yet with a fixed-size worker pool, and concatenates the per-shard
records into the catalog file. Shard failures are reported but never stop
the run; re-running retries only the missing shards.`,

		RunE: runHarvestCommand,
	}
	return cmd
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	metrics.Init()
	if cfg.Metrics.Enabled {
		metrics.Serve(cfg.Metrics.Addr, logger)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runPipeline(ctx, cfg, logger)
}

func runPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if err := os.MkdirAll(cfg.RecordDir(), 0o750); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}

	logger.Info("harvest starting",
		zap.String("task", cfg.Harvest.Task),
		zap.String("record_dir", cfg.RecordDir()),
		zap.String("output", cfg.OutputPath()),
	)

	client := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
	})

	resolver := sitemap.NewResolver(client, cfg.Harvest.RobotsURL, cfg.SitemapCachePath(), logger)
	shardURLs, err := resolver.ShardURLs(ctx)
	if err != nil {
		return fmt.Errorf("resolve shard urls: %w", err)
	}

	startedAt := time.Now().UTC()
	fetcher := sitemap.NewFetcher(client, cfg.RecordDir(), cfg.Harvest.ProductPrefix, logger)
	reporter := progress.NewReporter(progress.Options{Label: "shards"})
	scheduler := sitemap.NewScheduler(fetcher, cfg.RecordDir(), cfg.Harvest.Concurrency, reporter, logger)

	summary, err := scheduler.Run(ctx, shardURLs)
	if err != nil {
		return fmt.Errorf("run scheduler: %w", err)
	}

	if ctx.Err() != nil {
		logger.Warn("interrupted; completed shard records are kept for the next run",
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
		)
		return nil
	}

	if err := sitemap.Merge(cfg.RecordDir(), cfg.OutputPath(), logger); err != nil {
		return err
	}

	if err := recordRun(ctx, cfg, logger, summary, startedAt); err != nil {
		// Informational only: the catalog itself is already on disk.
		logger.Warn("record run metadata failed", zap.Error(err))
	}

	if cfg.Publish.BucketURL != "" {
		key := filepath.Base(cfg.OutputPath())
		if err := publish.Upload(ctx, cfg.Publish.BucketURL, key, cfg.OutputPath(), logger); err != nil {
			return fmt.Errorf("publish artifact: %w", err)
		}
	}

	logger.Info("harvest finished",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return nil
}

func recordRun(ctx context.Context, cfg config.Config, logger *zap.Logger, summary sitemap.Summary, startedAt time.Time) error {
	recorder, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	run := metadata.Run{
		ID:         uuid.NewString(),
		Task:       cfg.Harvest.Task,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	if err := recorder.RecordRun(ctx, run); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

func newRecorder(ctx context.Context, cfg config.Config, logger *zap.Logger) (metadata.Recorder, error) {
	if cfg.Metadata.DSN == "" {
		return metadata.NoOpRecorder{}, nil
	}
	logger.Info("recording run metadata to postgres")
	recorder, err := metadata.NewPostgres(ctx, cfg.Metadata.DSN)
	if err != nil {
		return nil, fmt.Errorf("init metadata recorder: %w", err)
	}
	return recorder, nil
}
