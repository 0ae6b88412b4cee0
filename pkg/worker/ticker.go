// Package worker runs periodic jobs.
package worker

import (
	"context"
	"time"

	"staybid/pkg/logger"
)

// Job is one run of a periodic task. Each call gets its own deadline.
type Job func(ctx context.Context, now time.Time) error

type Ticker struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Job      Job
	Log      *logger.Logger
	Now      func() time.Time
}

// Run executes the job once immediately and then on every tick until ctx is
// done. A failing run is logged and does not stop the loop.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	t.Log.Info("Worker started", "worker", t.Name, "interval", t.Interval)
	for {
		t.RunOnce(ctx)
		select {
		case <-ctx.Done():
			t.Log.Info("Worker stopped", "worker", t.Name)
			return
		case <-ticker.C:
		}
	}
}

func (t *Ticker) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	clock := time.Now
	if t.Now != nil {
		clock = t.Now
	}
	start := time.Now()
	if err := t.Job(runCtx, clock()); err != nil {
		t.Log.Error("Worker run failed", "worker", t.Name, "duration", time.Since(start), "error", err)
		return
	}
	t.Log.Debug("Worker run finished", "worker", t.Name, "duration", time.Since(start))
}
