// Package testutil holds in-memory stand-ins for the Postgres repositories.
// One mutex guards every table, so a transaction behaves as if it held every
// row lock at once.
package testutil

import (
	"context"
	"sync"
	"time"

	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

type dayKey struct {
	unitID int64
	day    time.Time
}

type tables struct {
	auctions map[int64]*model.Auction
	bids     []*model.Bid
	bookings map[int64]*model.Booking
	days     map[dayKey]model.CalendarDay
	nextID   int64
}

type Store struct {
	mu sync.Mutex
	t  tables
}

func NewStore() *Store {
	return &Store{t: tables{
		auctions: map[int64]*model.Auction{},
		bookings: map[int64]*model.Booking{},
		days:     map[dayKey]model.CalendarDay{},
	}}
}

func (s *Store) id() int64 {
	s.t.nextID++
	return s.t.nextID
}

func (t tables) clone() tables {
	c := tables{
		auctions: make(map[int64]*model.Auction, len(t.auctions)),
		bids:     make([]*model.Bid, 0, len(t.bids)),
		bookings: make(map[int64]*model.Booking, len(t.bookings)),
		days:     make(map[dayKey]model.CalendarDay, len(t.days)),
		nextID:   t.nextID,
	}
	for id, a := range t.auctions {
		cp := *a
		c.auctions[id] = &cp
	}
	for _, b := range t.bids {
		cp := *b
		c.bids = append(c.bids, &cp)
	}
	for id, b := range t.bookings {
		cp := *b
		c.bookings[id] = &cp
	}
	for k, d := range t.days {
		c.days[k] = d
	}
	return c
}

type inTxKey struct{}

// lock takes the store mutex unless ctx already runs inside a transaction,
// which holds it.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(inTxKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// TxManager runs transactions one at a time and rolls the store back when fn
// fails. Nested calls join the outer transaction.
type TxManager struct {
	Store *Store
}

func (m *TxManager) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	if ctx.Value(inTxKey{}) != nil {
		return fn(ctx)
	}

	ctx, finish := postgres.CommitScope(ctx)
	m.Store.mu.Lock()
	snapshot := m.Store.t.clone()
	err := fn(context.WithValue(ctx, inTxKey{}, true))
	if err != nil {
		m.Store.t = snapshot
	}
	m.Store.mu.Unlock()
	finish(err == nil)
	return postgres.TxError(err)
}

// Day returns the stored cell for unitID on day, or the implicit available one.
func (s *Store) Day(unitID int64, day time.Time) model.CalendarDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cell, ok := s.t.days[dayKey{unitID, model.DayOf(day)}]; ok {
		return cell
	}
	return model.AvailableDay(unitID, day)
}

func (s *Store) Booking(id int64) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.t.bookings[id]
	if !ok {
		return nil
	}
	cp := *b
	return &cp
}

func (s *Store) Bookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.t.bookings))
	for id := int64(1); id <= s.t.nextID; id++ {
		if b, ok := s.t.bookings[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

func (s *Store) Auction(id int64) *model.Auction {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.t.auctions[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

func (s *Store) Bids() []model.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Bid, 0, len(s.t.bids))
	for _, b := range s.t.bids {
		out = append(out, *b)
	}
	return out
}

// Config is a configuration suitable for services under test.
func Config() *config.Config {
	return &config.Config{
		DBLockTimeout:      5 * time.Second,
		MaxHoldMinutes:     120,
		AuctionCloserBatch: 50,
		WorkerRunTimeout:   10 * time.Second,
		Log:                logger.Discard(),
	}
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
