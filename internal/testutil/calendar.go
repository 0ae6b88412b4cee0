package testutil

import (
	"context"
	"sort"
	"time"

	"staybid/internal/calendar/repository"
	"staybid/pkg/model"
)

// CalendarRepo implements the calendar repository on a Store. LockUnitFunc,
// when set, decides the outcome of LockUnit.
type CalendarRepo struct {
	Store        *Store
	LockUnitFunc func(unitID int64) error
}

var _ repository.CalendarRepository = (*CalendarRepo)(nil)

func (r *CalendarRepo) LockUnit(_ context.Context, unitID int64) error {
	if r.LockUnitFunc != nil {
		return r.LockUnitFunc(unitID)
	}
	return nil
}

func (r *CalendarRepo) FindRange(ctx context.Context, unitID int64, stay model.StayRange) ([]model.CalendarDay, error) {
	defer r.Store.lock(ctx)()
	var days []model.CalendarDay
	for _, day := range stay.Days() {
		if cell, ok := r.Store.t.days[dayKey{unitID, day}]; ok {
			days = append(days, cell)
		}
	}
	return days, nil
}

func (r *CalendarRepo) UpsertRange(ctx context.Context, unitID int64, stay model.StayRange, status model.RangeStatus, now time.Time) error {
	defer r.Store.lock(ctx)()
	for _, day := range stay.Days() {
		r.Store.t.days[dayKey{unitID, day}] = model.CalendarDay{
			UnitID:        unitID,
			Day:           day,
			Status:        status.Status,
			LockReason:    status.LockReason,
			BookingID:     status.BookingID,
			AuctionID:     status.AuctionID,
			HoldExpiresAt: status.HoldExpiresAt,
			UpdatedAt:     now,
		}
	}
	return nil
}

func (r *CalendarRepo) ReleaseExpired(ctx context.Context, now time.Time) ([]model.ReleasedHold, error) {
	defer r.Store.lock(ctx)()
	var released []model.ReleasedHold
	for k, cell := range r.Store.t.days {
		if cell.Status != model.DayReserved || cell.HoldExpiresAt == nil || !cell.HoldExpiresAt.Before(now) {
			continue
		}
		released = append(released, model.ReleasedHold{UnitID: cell.UnitID, Day: cell.Day, BookingID: cell.BookingID})
		r.Store.t.days[k] = releasedCell(cell, now)
	}
	sort.Slice(released, func(i, j int) bool {
		if released[i].UnitID != released[j].UnitID {
			return released[i].UnitID < released[j].UnitID
		}
		return released[i].Day.Before(released[j].Day)
	})
	return released, nil
}

func (r *CalendarRepo) ReassignAuctionDays(ctx context.Context, auctionID int64, stay model.StayRange, bookingID int64, holdExpiresAt, now time.Time) (int, error) {
	defer r.Store.lock(ctx)()
	expiry := holdExpiresAt
	return r.update(func(c model.CalendarDay) bool {
		return refIs(c.AuctionID, auctionID) && c.Status == model.DayBlocked && inRange(stay, c.Day)
	}, func(c model.CalendarDay) model.CalendarDay {
		id := bookingID
		c.Status = model.DayReserved
		c.LockReason = model.LockBookingHold
		c.BookingID = &id
		c.AuctionID = nil
		c.HoldExpiresAt = &expiry
		c.UpdatedAt = now
		return c
	}), nil
}

func (r *CalendarRepo) ReleaseAuctionDays(ctx context.Context, auctionID int64, now time.Time) (int, error) {
	defer r.Store.lock(ctx)()
	return r.update(func(c model.CalendarDay) bool {
		return refIs(c.AuctionID, auctionID) && c.Status == model.DayBlocked && c.LockReason == model.LockAuction
	}, func(c model.CalendarDay) model.CalendarDay { return releasedCell(c, now) }), nil
}

func (r *CalendarRepo) FinalizeBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error) {
	defer r.Store.lock(ctx)()
	return r.update(func(c model.CalendarDay) bool {
		return refIs(c.BookingID, bookingID) && c.Status == model.DayReserved
	}, func(c model.CalendarDay) model.CalendarDay {
		c.Status = model.DayBooked
		c.LockReason = model.LockBooking
		c.HoldExpiresAt = nil
		c.UpdatedAt = now
		return c
	}), nil
}

func (r *CalendarRepo) ReleaseBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error) {
	defer r.Store.lock(ctx)()
	return r.update(func(c model.CalendarDay) bool {
		return refIs(c.BookingID, bookingID) && (c.Status == model.DayReserved || c.Status == model.DayBooked)
	}, func(c model.CalendarDay) model.CalendarDay { return releasedCell(c, now) }), nil
}

func (r *CalendarRepo) ReleaseManualBlocks(ctx context.Context, unitID int64, stay model.StayRange, now time.Time) (int, error) {
	defer r.Store.lock(ctx)()
	return r.update(func(c model.CalendarDay) bool {
		return c.UnitID == unitID && inRange(stay, c.Day) && c.Status == model.DayBlocked &&
			(c.LockReason == model.LockManual || c.LockReason == model.LockMaintenance)
	}, func(c model.CalendarDay) model.CalendarDay { return releasedCell(c, now) }), nil
}

// update applies fn to every cell matching match. The store must be locked.
func (r *CalendarRepo) update(match func(model.CalendarDay) bool, fn func(model.CalendarDay) model.CalendarDay) int {
	n := 0
	for k, cell := range r.Store.t.days {
		if match(cell) {
			r.Store.t.days[k] = fn(cell)
			n++
		}
	}
	return n
}

func releasedCell(c model.CalendarDay, now time.Time) model.CalendarDay {
	return model.CalendarDay{UnitID: c.UnitID, Day: c.Day, Status: model.DayAvailable, UpdatedAt: now}
}

func refIs(ref *int64, id int64) bool {
	return ref != nil && *ref == id
}

func inRange(stay model.StayRange, day time.Time) bool {
	return !day.Before(stay.Start) && day.Before(stay.End)
}
