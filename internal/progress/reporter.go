// Package progress renders batch progress to the terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where progress lines go. Default: os.Stdout.
	Output io.Writer

	// UpdateInterval is how often the display refreshes. Default: 2s.
	UpdateInterval time.Duration

	// Label names the units being processed, e.g. "shards".
	Label string
}

// Reporter prints periodic done/total lines for a single batch. All
// methods are safe on a nil receiver, so callers need no guards when
// progress display is disabled.
type Reporter struct {
	opts Options

	total     int
	done      atomic.Int64
	startedAt time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// NewReporter creates a reporter for one batch.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 2 * time.Second
	}
	if opts.Label == "" {
		opts.Label = "units"
	}
	return &Reporter{opts: opts}
}

// Start begins the periodic display for a batch of total units.
func (r *Reporter) Start(total int) {
	if r == nil {
		return
	}
	r.total = total
	r.startedAt = time.Now()
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.loop()
}

// Done marks one unit complete.
func (r *Reporter) Done() {
	if r == nil {
		return
	}
	r.done.Add(1)
}

// Stop prints the final line and waits for the display loop to exit.
func (r *Reporter) Stop() {
	if r == nil || r.stopCh == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *Reporter) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinal()
			return
		case <-ticker.C:
			r.printLine()
		}
	}
}

func (r *Reporter) printLine() {
	fmt.Fprintf(r.opts.Output, "\r[harvester] %d/%d %s    ",
		r.done.Load(), r.total, r.opts.Label)
}

func (r *Reporter) printFinal() {
	fmt.Fprintf(r.opts.Output, "\r[harvester] %d/%d %s in %s    \n",
		r.done.Load(), r.total, r.opts.Label, formatDuration(time.Since(r.startedAt)))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
