package sitemap_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playcatalog/harvester/internal/sitemap"
)

// fakeProcessor records a shard file on success, mimicking the
// record-or-nothing contract without any network.
type fakeProcessor struct {
	recordDir string
	failURLs  map[string]bool

	mu        sync.Mutex
	processed []string

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	onProcess func(ctx context.Context, shardURL string)
}

func (p *fakeProcessor) Process(ctx context.Context, shardURL string) error {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		max := p.maxInFlight.Load()
		if cur <= max || p.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	p.mu.Lock()
	p.processed = append(p.processed, shardURL)
	p.mu.Unlock()

	if p.onProcess != nil {
		p.onProcess(ctx, shardURL)
	}

	if p.failURLs[shardURL] {
		return fmt.Errorf("simulated failure for %s", shardURL)
	}
	name, err := sitemap.ShardName(shardURL)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.recordDir, name+".txt"), []byte("com.example\n"), 0o600)
}

func shardURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://play.google.com/sitemaps/part-%02d.xml.gz", i)
	}
	return urls
}

func TestSchedulerRun(t *testing.T) {
	t.Run("CountsSuccessesAndFailures", func(t *testing.T) {
		dir := t.TempDir()
		urls := shardURLs(5)
		proc := &fakeProcessor{
			recordDir: dir,
			failURLs:  map[string]bool{urls[1]: true, urls[3]: true},
		}
		sched := sitemap.NewScheduler(proc, dir, 2, nil, nil)

		summary, err := sched.Run(context.Background(), urls)
		require.NoError(t, err)
		assert.Equal(t, sitemap.Summary{Succeeded: 3, Failed: 2}, summary)
	})

	t.Run("SkipsRecordedShards", func(t *testing.T) {
		dir := t.TempDir()
		urls := shardURLs(4)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "part-00.xml.gz.txt"), nil, 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "part-02.xml.gz.txt"), nil, 0o600))

		proc := &fakeProcessor{recordDir: dir}
		sched := sitemap.NewScheduler(proc, dir, 2, nil, nil)

		summary, err := sched.Run(context.Background(), urls)
		require.NoError(t, err)
		assert.Equal(t, sitemap.Summary{Succeeded: 2, Failed: 0}, summary)
		assert.ElementsMatch(t, []string{urls[1], urls[3]}, proc.processed)
	})

	t.Run("SecondRunDispatchesNothing", func(t *testing.T) {
		dir := t.TempDir()
		urls := shardURLs(3)
		proc := &fakeProcessor{recordDir: dir}
		sched := sitemap.NewScheduler(proc, dir, 2, nil, nil)

		first, err := sched.Run(context.Background(), urls)
		require.NoError(t, err)
		require.Equal(t, 3, first.Succeeded)

		proc.processed = nil
		second, err := sched.Run(context.Background(), urls)
		require.NoError(t, err)
		assert.Equal(t, sitemap.Summary{}, second)
		assert.Empty(t, proc.processed)
	})

	t.Run("BoundsConcurrency", func(t *testing.T) {
		dir := t.TempDir()
		gate := make(chan struct{})
		var arrived atomic.Int64
		proc := &fakeProcessor{
			recordDir: dir,
			onProcess: func(context.Context, string) {
				if arrived.Add(1) <= 4 {
					<-gate
				}
			},
		}
		sched := sitemap.NewScheduler(proc, dir, 4, nil, nil)

		done := make(chan sitemap.Summary, 1)
		go func() {
			summary, _ := sched.Run(context.Background(), shardURLs(20))
			done <- summary
		}()
		close(gate)
		summary := <-done

		assert.Equal(t, 20, summary.Succeeded)
		assert.LessOrEqual(t, proc.maxInFlight.Load(), int64(4))
	})

	t.Run("CancelledContextDispatchesNothing", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		proc := &fakeProcessor{recordDir: dir}
		sched := sitemap.NewScheduler(proc, dir, 2, nil, nil)

		summary, err := sched.Run(ctx, shardURLs(6))
		require.NoError(t, err)
		assert.Equal(t, sitemap.Summary{}, summary)
		assert.Empty(t, proc.processed)
	})

	t.Run("InFlightShardSurvivesCancel", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())

		var workerCtxErr error
		proc := &fakeProcessor{
			recordDir: dir,
			onProcess: func(workCtx context.Context, _ string) {
				cancel()
				workerCtxErr = workCtx.Err()
			},
		}
		sched := sitemap.NewScheduler(proc, dir, 1, nil, nil)

		summary, err := sched.Run(ctx, shardURLs(1))
		require.NoError(t, err)
		assert.NoError(t, workerCtxErr)
		assert.Equal(t, sitemap.Summary{Succeeded: 1, Failed: 0}, summary)
		assert.FileExists(t, filepath.Join(dir, "part-00.xml.gz.txt"))
	})

	t.Run("UnresolvableURLCountsAsFailure", func(t *testing.T) {
		dir := t.TempDir()
		proc := &fakeProcessor{recordDir: dir}
		sched := sitemap.NewScheduler(proc, dir, 1, nil, nil)

		summary, err := sched.Run(context.Background(), []string{"https://example.com/"})
		require.NoError(t, err)
		assert.Equal(t, sitemap.Summary{Succeeded: 0, Failed: 1}, summary)
	})
}
