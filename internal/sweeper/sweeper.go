// Package sweeper expires lapsed payment holds and retires finished stays.
package sweeper

import (
	"context"
	"time"

	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/logger"
	"staybid/pkg/model"
	"staybid/pkg/worker"
)

const expireBatch = 500

type HoldReleaser interface {
	ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]model.ReleasedHold, error)
}

type BookingExpirer interface {
	Expire(ctx context.Context, id int64) (bool, error)
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error)
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
}

type Result struct {
	ReleasedDays      int `json:"releasedDays"`
	ExpiredBookings   int `json:"expiredBookings"`
	CompletedBookings int `json:"completedBookings"`
}

type Sweeper struct {
	ledger    HoldReleaser
	bookings  BookingExpirer
	txManager postgres.TransactionManager
	cfg       *config.Config
	log       *logger.Logger
}

func New(ledger HoldReleaser, bookings BookingExpirer, txManager postgres.TransactionManager, cfg *config.Config) *Sweeper {
	return &Sweeper{
		ledger:    ledger,
		bookings:  bookings,
		txManager: txManager,
		cfg:       cfg,
		log:       cfg.Log.Component("sweeper", logger.TypeSys),
	}
}

// RunOnce releases every hold that lapsed before now and expires the
// bookings behind them. Every write is guarded, so concurrent or repeated
// runs are safe.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (*Result, error) {
	result := &Result{}

	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		released, err := s.ledger.ReleaseExpiredHolds(ctx, now)
		if err != nil {
			return err
		}
		result.ReleasedDays = len(released)

		seen := make(map[int64]bool)
		for _, cell := range released {
			if cell.BookingID == nil || seen[*cell.BookingID] {
				continue
			}
			seen[*cell.BookingID] = true
			expired, err := s.bookings.Expire(ctx, *cell.BookingID)
			if err != nil {
				return err
			}
			if expired {
				result.ExpiredBookings++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Pending bookings whose days were already taken over by a newer hold.
	ids, err := s.bookings.ExpiredPending(ctx, now, expireBatch)
	if err != nil {
		return result, err
	}
	for _, id := range ids {
		expired, err := s.bookings.Expire(ctx, id)
		if err != nil {
			s.log.Error("Failed to expire booking", "booking_id", id, "error", err)
			continue
		}
		if expired {
			result.ExpiredBookings++
		}
	}

	completed, err := s.bookings.CompleteFinished(ctx, now)
	if err != nil {
		return result, err
	}
	result.CompletedBookings = completed

	if result.ReleasedDays+result.ExpiredBookings+result.CompletedBookings > 0 {
		s.log.Info("Sweep finished",
			"released_days", result.ReleasedDays,
			"expired_bookings", result.ExpiredBookings,
			"completed_bookings", result.CompletedBookings,
		)
	}
	return result, nil
}

func (s *Sweeper) Worker() *worker.Ticker {
	return &worker.Ticker{
		Name:     "hold-sweeper",
		Interval: s.cfg.SweeperInterval,
		Timeout:  s.cfg.WorkerRunTimeout,
		Job: func(ctx context.Context, now time.Time) error {
			_, err := s.RunOnce(ctx, now)
			return err
		},
		Log: s.log,
	}
}
