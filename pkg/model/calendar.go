package model

import (
	"errors"
	"time"

	"github.com/uptrace/bun"
)

type DayStatus string

const (
	DayAvailable DayStatus = "available"
	DayReserved  DayStatus = "reserved"
	DayBlocked   DayStatus = "blocked"
	DayBooked    DayStatus = "booked"
)

// ConflictPriority is the order in which a conflicting status is reported.
var ConflictPriority = []DayStatus{DayBooked, DayBlocked, DayReserved}

func (s DayStatus) Valid() bool {
	switch s {
	case DayAvailable, DayReserved, DayBlocked, DayBooked:
		return true
	}
	return false
}

type LockReason string

const (
	LockNone        LockReason = ""
	LockAuction     LockReason = "auction"
	LockBookingHold LockReason = "booking_hold"
	LockBooking     LockReason = "booking"
	LockManual      LockReason = "manual"
	LockMaintenance LockReason = "maintenance"
)

func (r LockReason) Valid() bool {
	switch r {
	case LockNone, LockAuction, LockBookingHold, LockBooking, LockManual, LockMaintenance:
		return true
	}
	return false
}

// CalendarDay is one unit-day cell.
type CalendarDay struct {
	bun.BaseModel `bun:"table:calendar_days,alias:cd"`

	UnitID        int64      `bun:"unit_id,pk" json:"unit_id"`
	Day           time.Time  `bun:"day,pk,type:date" json:"day"`
	Status        DayStatus  `bun:"status,notnull" json:"status"`
	LockReason    LockReason `bun:"lock_reason,notnull,default:''" json:"lock_reason,omitempty"`
	BookingID     *int64     `bun:"booking_id" json:"booking_id,omitempty"`
	AuctionID     *int64     `bun:"auction_id" json:"auction_id,omitempty"`
	HoldExpiresAt *time.Time `bun:"hold_expires_at" json:"hold_expires_at,omitempty"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// EffectiveStatus folds a lapsed hold back to available. A hold is live up to
// and including its expiry instant.
func (d *CalendarDay) EffectiveStatus(now time.Time) DayStatus {
	if d.Status == DayReserved && d.HoldExpiresAt != nil && d.HoldExpiresAt.Before(now) {
		return DayAvailable
	}
	return d.Status
}

// Claimed reports whether the day is promised to someone at now.
func (d *CalendarDay) Claimed(now time.Time) bool {
	return d.EffectiveStatus(now) != DayAvailable
}

// AvailableDay synthesizes the implicit cell for a day with no row.
func AvailableDay(unitID int64, day time.Time) CalendarDay {
	return CalendarDay{UnitID: unitID, Day: DayOf(day), Status: DayAvailable}
}

// RangeStatus is the state written to every day of a range.
type RangeStatus struct {
	Status        DayStatus
	LockReason    LockReason
	BookingID     *int64
	AuctionID     *int64
	HoldExpiresAt *time.Time
}

var (
	ErrHoldExpiryRequired  = errors.New("reserved days require a hold expiry")
	ErrHoldExpiryForbidden = errors.New("only reserved days may carry a hold expiry")
	ErrAmbiguousReference  = errors.New("a day may reference a booking or an auction, not both")
	ErrUnknownDayStatus    = errors.New("unknown day status")
	ErrUnknownLockReason   = errors.New("unknown lock reason")
	ErrAvailableWithRef    = errors.New("available days cannot carry a lock")
)

func (s RangeStatus) Validate() error {
	if !s.Status.Valid() {
		return ErrUnknownDayStatus
	}
	if !s.LockReason.Valid() {
		return ErrUnknownLockReason
	}
	if s.BookingID != nil && s.AuctionID != nil {
		return ErrAmbiguousReference
	}
	switch s.Status {
	case DayReserved:
		if s.HoldExpiresAt == nil {
			return ErrHoldExpiryRequired
		}
	case DayAvailable:
		if s.HoldExpiresAt != nil || s.BookingID != nil || s.AuctionID != nil || s.LockReason != LockNone {
			return ErrAvailableWithRef
		}
	default:
		if s.HoldExpiresAt != nil {
			return ErrHoldExpiryForbidden
		}
	}
	return nil
}

// ReleasedHold is a day freed by hold expiry, with the booking it belonged to.
type ReleasedHold struct {
	UnitID    int64     `bun:"unit_id"`
	Day       time.Time `bun:"day"`
	BookingID *int64    `bun:"booking_id"`
}
