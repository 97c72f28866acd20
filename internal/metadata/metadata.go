// Package metadata records harvest run summaries.
package metadata

import (
	"context"
	"time"
)

// Run summarizes one completed harvest.
type Run struct {
	ID         string
	Task       string
	Succeeded  int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder persists run summaries.
type Recorder interface {
	RecordRun(ctx context.Context, run Run) error
	Close()
}

// NoOpRecorder discards run summaries. Used when no DSN is configured.
type NoOpRecorder struct{}

// RecordRun implements Recorder.
func (NoOpRecorder) RecordRun(context.Context, Run) error { return nil }

// Close implements Recorder.
func (NoOpRecorder) Close() {}
