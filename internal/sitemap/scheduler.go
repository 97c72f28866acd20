package sitemap

import (
	"context"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/playcatalog/harvester/internal/metrics"
	"github.com/playcatalog/harvester/internal/progress"
)

// DefaultConcurrency bounds the worker pool when no value is configured.
const DefaultConcurrency = 10

// Summary reports the outcome of one scheduling run over the pending set.
// Shards skipped because their record already exists are not counted.
type Summary struct {
	Succeeded int
	Failed    int
}

// Processor handles one shard to completion.
type Processor interface {
	Process(ctx context.Context, shardURL string) error
}

// Scheduler fans pending shards out to a fixed-size worker pool.
type Scheduler struct {
	processor   Processor
	recordDir   string
	concurrency int
	reporter    *progress.Reporter
	logger      *zap.Logger
}

// NewScheduler builds a Scheduler. The reporter may be nil.
func NewScheduler(processor Processor, recordDir string, concurrency int, reporter *progress.Reporter, logger *zap.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		processor:   processor,
		recordDir:   recordDir,
		concurrency: concurrency,
		reporter:    reporter,
		logger:      logger,
	}
}

// Run prunes shards that already have a record, then processes the rest
// with bounded concurrency. Dispatch order is sorted so re-runs schedule
// identically; completion order is not guaranteed. Per-shard failures are
// counted, never propagated, so the whole pending set is always attempted.
//
// Cancelling ctx stops dispatching new shards; in-flight shards run to
// completion so the record-or-nothing guarantee holds across interrupts.
func (s *Scheduler) Run(ctx context.Context, shardURLs []string) (Summary, error) {
	done, err := CompletedShards(s.recordDir)
	if err != nil {
		return Summary{}, err
	}

	pending := make([]string, 0, len(shardURLs))
	for _, shardURL := range shardURLs {
		name, err := ShardName(shardURL)
		if err == nil {
			if _, ok := done[name]; ok {
				continue
			}
		}
		// Unresolvable URLs stay pending; Process reports them as failures.
		pending = append(pending, shardURL)
	}
	sort.Strings(pending)

	if len(pending) == 0 {
		s.logger.Info("no pending shards", zap.Int("recorded", len(done)))
		return Summary{}, nil
	}

	s.logger.Info("dispatching shards",
		zap.Int("pending", len(pending)),
		zap.Int("recorded", len(done)),
		zap.Int("concurrency", s.concurrency),
	)
	s.reporter.Start(len(pending))
	defer s.reporter.Stop()

	var succeeded, failed atomic.Int64

	// In-flight shards must finish their full success-or-cleanup path even
	// after an interrupt; only dispatch observes cancellation.
	workCtx := context.WithoutCancel(ctx)

	group := new(errgroup.Group)
	group.SetLimit(s.concurrency)
	for _, shardURL := range pending {
		if ctx.Err() != nil {
			s.logger.Warn("dispatch stopped", zap.Error(ctx.Err()))
			break
		}
		group.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()

			if err := s.processor.Process(workCtx, shardURL); err != nil {
				failed.Add(1)
				metrics.ObserveShard("failed")
				s.logger.Warn("shard failed", zap.String("url", shardURL), zap.Error(err))
			} else {
				succeeded.Add(1)
				metrics.ObserveShard("succeeded")
			}
			s.reporter.Done()
			return nil
		})
	}
	_ = group.Wait()

	summary := Summary{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	if summary.Failed > 0 {
		s.logger.Info("run finished with failed shards; a re-run retries only the missing ones",
			zap.Int("failed", summary.Failed),
			zap.Int("succeeded", summary.Succeeded),
		)
	} else {
		s.logger.Info("all attempted shards succeeded", zap.Int("succeeded", summary.Succeeded))
	}
	return summary, nil
}
