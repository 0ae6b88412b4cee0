// Package scheduler closes auctions whose bidding window has elapsed.
package scheduler

import (
	"context"
	"time"

	"staybid/pkg/config"
	"staybid/pkg/logger"
	"staybid/pkg/worker"
)

type ExpiredCloser interface {
	CloseExpired(ctx context.Context, now time.Time, batch int) (int, error)
}

type Closer struct {
	auctions ExpiredCloser
	batch    int
	cfg      *config.Config
	log      *logger.Logger
}

func NewCloser(auctions ExpiredCloser, cfg *config.Config) *Closer {
	return &Closer{
		auctions: auctions,
		batch:    cfg.AuctionCloserBatch,
		cfg:      cfg,
		log:      cfg.Log.Component("auction-closer", logger.TypeSys),
	}
}

// Close drains every expired auction, one batch at a time.
func (c *Closer) Close(ctx context.Context, now time.Time) error {
	total := 0
	for {
		closed, err := c.auctions.CloseExpired(ctx, now, c.batch)
		total += closed
		if err != nil {
			return err
		}
		if closed < c.batch {
			break
		}
	}
	if total > 0 {
		c.log.Info("Closed expired auctions", "count", total)
	}
	return nil
}

func (c *Closer) Worker() *worker.Ticker {
	return &worker.Ticker{
		Name:     "auction-closer",
		Interval: c.cfg.AuctionCloserInterval,
		Timeout:  c.cfg.WorkerRunTimeout,
		Job:      c.Close,
		Log:      c.log,
	}
}
