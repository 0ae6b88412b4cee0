package service

import (
	"context"
	"fmt"
	"time"

	calendarerrors "staybid/internal/calendar/errors"
	"staybid/internal/calendar/repository"
	"staybid/internal/units"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
)

// MaxRangeNights bounds the length of any range written or read at once.
const MaxRangeNights = 366

// AuctionLookup resolves the auction an auction-blocked day points at.
type AuctionLookup interface {
	FindByID(ctx context.Context, id int64) (*model.Auction, error)
}

// AuctionHold describes the active auction holding part of a range.
type AuctionHold struct {
	AuctionUID   string    `json:"auctionUid"`
	EndTime      time.Time `json:"endTime"`
	CurrentPrice int64     `json:"currentPrice"`
	BidIncrement int64     `json:"bidIncrement"`
}

type Availability struct {
	Available  bool                `json:"available"`
	Reason     model.DayStatus     `json:"reason,omitempty"`
	HasAuction bool                `json:"hasAuction"`
	Auction    *AuctionHold        `json:"auction,omitempty"`
	Days       []model.CalendarDay `json:"days"`
}

// Ledger is the single source of truth for per-day availability. The
// auction engine and the booking ledger route every claim through it.
type Ledger interface {
	GetRange(ctx context.Context, unitID int64, start, end time.Time) ([]model.CalendarDay, error)
	IsRangeAvailable(ctx context.Context, unitID int64, start, end time.Time) (*Availability, error)
	SetRangeStatus(ctx context.Context, unitID int64, start, end time.Time, status model.RangeStatus) error
	ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]model.ReleasedHold, error)

	Block(ctx context.Context, unitUID string, start, end time.Time, reason model.LockReason) error
	Unblock(ctx context.Context, unitUID string, start, end time.Time) (int, error)

	LockUnit(ctx context.Context, unitID int64) error
	EnsureRangeFree(ctx context.Context, unitID int64, r model.StayRange) error
	ReassignAuctionDays(ctx context.Context, auctionID int64, r model.StayRange, bookingID int64, holdExpiresAt time.Time) (int, error)
	ReleaseAuctionDays(ctx context.Context, auctionID int64) (int, error)
	FinalizeBookingDays(ctx context.Context, bookingID int64) (int, error)
	ReleaseBookingDays(ctx context.Context, bookingID int64) (int, error)
}

type ledger struct {
	repo      repository.CalendarRepository
	txManager postgres.TransactionManager
	catalog   units.Catalog
	auctions  AuctionLookup
	cfg       *config.Config
	now       func() time.Time
}

type Option func(*ledger)

// WithClock replaces time.Now as the ledger's notion of the current time.
func WithClock(now func() time.Time) Option {
	return func(l *ledger) { l.now = now }
}

func NewLedger(
	repo repository.CalendarRepository,
	txManager postgres.TransactionManager,
	catalog units.Catalog,
	auctions AuctionLookup,
	cfg *config.Config,
	opts ...Option,
) Ledger {
	l := &ledger{
		repo:      repo,
		txManager: txManager,
		catalog:   catalog,
		auctions:  auctions,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StayOf validates [start, end) and returns it as a range.
func StayOf(start, end time.Time) (model.StayRange, error) {
	r := model.NewStayRange(start, end)
	if !r.Valid() {
		return r, apperrors.InvalidInput(fmt.Sprintf("%s: checkout must be after checkin", calendarerrors.ErrEmptyRange))
	}
	if r.Nights() > MaxRangeNights {
		return r, apperrors.InvalidInput(fmt.Sprintf("%s: at most %d nights", calendarerrors.ErrRangeTooLong, MaxRangeNights))
	}
	return r, nil
}

// GetRange returns one cell per day of [start, end). Days never written and
// lapsed holds read as available.
func (l *ledger) GetRange(ctx context.Context, unitID int64, start, end time.Time) ([]model.CalendarDay, error) {
	r, err := StayOf(start, end)
	if err != nil {
		return nil, err
	}
	return l.effectiveRange(ctx, unitID, r)
}

func (l *ledger) effectiveRange(ctx context.Context, unitID int64, r model.StayRange) ([]model.CalendarDay, error) {
	stored, err := l.repo.FindRange(ctx, unitID, r)
	if err != nil {
		l.cfg.Log.Error("Failed to read calendar", "unit_id", unitID, "range", r.String(), "error", err)
		return nil, apperrors.Internal("Failed to read calendar", err)
	}

	byDay := make(map[time.Time]model.CalendarDay, len(stored))
	for _, cell := range stored {
		byDay[model.DayOf(cell.Day)] = cell
	}

	now := l.now()
	days := make([]model.CalendarDay, 0, r.Nights())
	for _, day := range r.Days() {
		cell, ok := byDay[day]
		if !ok || !cell.Claimed(now) {
			cell = model.AvailableDay(unitID, day)
		}
		cell.Day = day
		days = append(days, cell)
	}
	return days, nil
}

func (l *ledger) IsRangeAvailable(ctx context.Context, unitID int64, start, end time.Time) (*Availability, error) {
	r, err := StayOf(start, end)
	if err != nil {
		return nil, err
	}
	days, err := l.effectiveRange(ctx, unitID, r)
	if err != nil {
		return nil, err
	}

	result := &Availability{Available: true, Days: days}
	result.Reason = firstConflict(days)
	result.Available = result.Reason == ""

	for _, day := range days {
		if day.LockReason != model.LockAuction || day.AuctionID == nil {
			continue
		}
		auction, err := l.auctions.FindByID(ctx, *day.AuctionID)
		if err != nil {
			l.cfg.Log.Warn("Calendar references unreadable auction", "auction_id", *day.AuctionID, "error", err)
			break
		}
		if auction.Status == model.AuctionActive {
			result.HasAuction = true
			result.Auction = &AuctionHold{
				AuctionUID:   auction.UID,
				EndTime:      auction.EndTime,
				CurrentPrice: auction.CurrentPrice,
				BidIncrement: auction.BidIncrement,
			}
		}
		break
	}
	return result, nil
}

// firstConflict reports the highest-priority claimed status among days.
func firstConflict(days []model.CalendarDay) model.DayStatus {
	present := make(map[model.DayStatus]bool, len(model.ConflictPriority))
	for _, day := range days {
		present[day.Status] = true
	}
	for _, status := range model.ConflictPriority {
		if present[status] {
			return status
		}
	}
	return ""
}

// SetRangeStatus writes status to every day of [start, end) or to none.
func (l *ledger) SetRangeStatus(ctx context.Context, unitID int64, start, end time.Time, status model.RangeStatus) error {
	r, err := StayOf(start, end)
	if err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return apperrors.InvalidInput(err.Error())
	}

	return l.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := l.repo.UpsertRange(ctx, unitID, r, status, l.now()); err != nil {
			l.cfg.Log.Error("Failed to set calendar range",
				"unit_id", unitID,
				"range", r.String(),
				"status", status.Status,
				"error", err,
			)
			return apperrors.Internal("Failed to update calendar", err)
		}
		return nil
	})
}

// ReleaseExpiredHolds frees every reserved day whose hold lapsed before now.
// A second call without time advancing releases nothing.
func (l *ledger) ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]model.ReleasedHold, error) {
	released, err := l.repo.ReleaseExpired(ctx, now)
	if err != nil {
		l.cfg.Log.Error("Failed to release expired holds", "error", err)
		return nil, apperrors.Internal("Failed to release expired holds", err)
	}
	return released, nil
}

func (l *ledger) Block(ctx context.Context, unitUID string, start, end time.Time, reason model.LockReason) error {
	if reason == model.LockNone {
		reason = model.LockManual
	}
	if reason != model.LockManual && reason != model.LockMaintenance {
		return apperrors.InvalidInput(fmt.Sprintf("block reason must be %s or %s", model.LockManual, model.LockMaintenance))
	}
	r, err := StayOf(start, end)
	if err != nil {
		return err
	}
	unit, err := l.catalog.FindByUID(ctx, unitUID)
	if err != nil {
		return err
	}

	err = l.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := l.LockUnit(ctx, unit.ID); err != nil {
			return err
		}
		if err := l.EnsureRangeFree(ctx, unit.ID, r); err != nil {
			return err
		}
		return l.SetRangeStatus(ctx, unit.ID, r.Start, r.End, model.RangeStatus{Status: model.DayBlocked, LockReason: reason})
	})
	if err != nil {
		return err
	}

	l.cfg.Log.Info("Calendar range blocked", "unit_id", unit.ID, "range", r.String(), "reason", reason)
	return nil
}

// Unblock releases manually blocked days only. Auction and booking claims
// are left alone.
func (l *ledger) Unblock(ctx context.Context, unitUID string, start, end time.Time) (int, error) {
	r, err := StayOf(start, end)
	if err != nil {
		return 0, err
	}
	unit, err := l.catalog.FindByUID(ctx, unitUID)
	if err != nil {
		return 0, err
	}

	var released int
	err = l.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := l.LockUnit(ctx, unit.ID); err != nil {
			return err
		}
		n, err := l.repo.ReleaseManualBlocks(ctx, unit.ID, r, l.now())
		if err != nil {
			return apperrors.Internal("Failed to unblock calendar", err)
		}
		released = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.cfg.Log.Info("Calendar range unblocked", "unit_id", unit.ID, "range", r.String(), "days", released)
	return released, nil
}

// LockUnit serializes calendar writers on one unit until the surrounding
// transaction ends.
func (l *ledger) LockUnit(ctx context.Context, unitID int64) error {
	if err := l.repo.LockUnit(ctx, unitID); err != nil {
		if postgres.IsLockContention(err) {
			return apperrors.LockContention(err)
		}
		return apperrors.Internal("Failed to lock unit calendar", err)
	}
	return nil
}

// EnsureRangeFree fails with RangeConflict when any day of r is claimed.
func (l *ledger) EnsureRangeFree(ctx context.Context, unitID int64, r model.StayRange) error {
	days, err := l.effectiveRange(ctx, unitID, r)
	if err != nil {
		return err
	}
	reason := firstConflict(days)
	if reason == "" {
		return nil
	}

	var conflicts []string
	for _, day := range days {
		if day.Status != model.DayAvailable {
			conflicts = append(conflicts, model.FormatDay(day.Day))
		}
	}
	return apperrors.RangeConflict(fmt.Sprintf("stay range %s is not available", r)).WithDetails(map[string]any{
		"reason": reason,
		"days":   conflicts,
	})
}

func (l *ledger) ReassignAuctionDays(ctx context.Context, auctionID int64, r model.StayRange, bookingID int64, holdExpiresAt time.Time) (int, error) {
	n, err := l.repo.ReassignAuctionDays(ctx, auctionID, r, bookingID, holdExpiresAt, l.now())
	if err != nil {
		return 0, apperrors.Internal("Failed to hold auction days", err)
	}
	return n, nil
}

func (l *ledger) ReleaseAuctionDays(ctx context.Context, auctionID int64) (int, error) {
	n, err := l.repo.ReleaseAuctionDays(ctx, auctionID, l.now())
	if err != nil {
		return 0, apperrors.Internal("Failed to release auction days", err)
	}
	return n, nil
}

func (l *ledger) FinalizeBookingDays(ctx context.Context, bookingID int64) (int, error) {
	n, err := l.repo.FinalizeBookingDays(ctx, bookingID, l.now())
	if err != nil {
		return 0, apperrors.Internal("Failed to book calendar days", err)
	}
	return n, nil
}

func (l *ledger) ReleaseBookingDays(ctx context.Context, bookingID int64) (int, error) {
	n, err := l.repo.ReleaseBookingDays(ctx, bookingID, l.now())
	if err != nil {
		return 0, apperrors.Internal("Failed to release booking days", err)
	}
	return n, nil
}
