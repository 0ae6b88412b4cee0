package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"staybid/pkg/logger"
)

func TestTicker_RunsUntilCancelled(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	ticker := &Ticker{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Timeout:  time.Second,
		Log:      logger.Discard(),
		Job: func(ctx context.Context, _ time.Time) error {
			if runs.Add(1) == 3 {
				cancel()
			}
			return errors.New("keeps going")
		},
	}

	done := make(chan struct{})
	go func() {
		ticker.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop after cancel")
	}
	if got := runs.Load(); got < 3 {
		t.Errorf("runs = %d, want at least 3", got)
	}
}

func TestTicker_RunOnceAppliesDeadlineAndClock(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var gotNow time.Time
	var hasDeadline bool
	ticker := &Ticker{
		Name:    "test",
		Timeout: time.Minute,
		Log:     logger.Discard(),
		Now:     func() time.Time { return fixed },
		Job: func(ctx context.Context, now time.Time) error {
			gotNow = now
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	}
	ticker.RunOnce(context.Background())

	if !gotNow.Equal(fixed) {
		t.Errorf("now = %s, want %s", gotNow, fixed)
	}
	if !hasDeadline {
		t.Error("job context should carry a deadline")
	}
}
