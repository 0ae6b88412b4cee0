package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"staybid/internal/testutil"
)

type fakeCloser struct {
	results []int
	err     error
	calls   int
	batches []int
}

func (f *fakeCloser) CloseExpired(_ context.Context, _ time.Time, batch int) (int, error) {
	f.calls++
	f.batches = append(f.batches, batch)
	if f.calls > len(f.results) {
		return 0, f.err
	}
	return f.results[f.calls-1], nil
}

func TestCloser_DrainsFullBatches(t *testing.T) {
	cfg := testutil.Config()
	cfg.AuctionCloserBatch = 2
	auctions := &fakeCloser{results: []int{2, 2, 1}}

	if err := NewCloser(auctions, cfg).Close(context.Background(), time.Now()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if auctions.calls != 3 {
		t.Errorf("calls = %d, want 3", auctions.calls)
	}
	for _, b := range auctions.batches {
		if b != 2 {
			t.Errorf("batch = %d, want 2", b)
		}
	}
}

func TestCloser_StopsOnError(t *testing.T) {
	cfg := testutil.Config()
	cfg.AuctionCloserBatch = 1
	auctions := &fakeCloser{results: []int{1}, err: errors.New("db down")}

	if err := NewCloser(auctions, cfg).Close(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
	if auctions.calls != 2 {
		t.Errorf("calls = %d, want 2", auctions.calls)
	}
}

func TestCloser_Worker(t *testing.T) {
	cfg := testutil.Config()
	cfg.AuctionCloserInterval = 30 * time.Second
	w := NewCloser(&fakeCloser{}, cfg).Worker()
	if w.Interval != 30*time.Second || w.Timeout != cfg.WorkerRunTimeout || w.Job == nil {
		t.Errorf("unexpected worker: %+v", w)
	}
}
