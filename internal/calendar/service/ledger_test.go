package service

import (
	"context"
	"testing"
	"time"

	"staybid/internal/testutil"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
)

type fixture struct {
	store  *testutil.Store
	clock  *testutil.Clock
	ledger Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	clock := testutil.NewClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	ledger := NewLedger(
		&testutil.CalendarRepo{Store: store},
		&testutil.TxManager{Store: store},
		&testutil.Catalog{Units: []model.Unit{testutil.Unit()}},
		&testutil.AuctionRepo{Store: store},
		testutil.Config(),
		WithClock(clock.Now),
	)
	return &fixture{store: store, clock: clock, ledger: ledger}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func (f *fixture) set(t *testing.T, start, end string, status model.RangeStatus) {
	t.Helper()
	if err := f.ledger.SetRangeStatus(context.Background(), 1, day(t, start), day(t, end), status); err != nil {
		t.Fatalf("SetRangeStatus(%s, %s) error = %v", start, end, err)
	}
}

func (f *fixture) hold(bookingID int64, ttl time.Duration) model.RangeStatus {
	expiry := f.clock.Now().Add(ttl)
	return model.RangeStatus{Status: model.DayReserved, LockReason: model.LockBookingHold, BookingID: &bookingID, HoldExpiresAt: &expiry}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func TestSetRangeStatus_ThenGetRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auctionID := int64(4)
	f.set(t, "2025-01-10", "2025-01-15", model.RangeStatus{Status: model.DayBlocked, LockReason: model.LockAuction, AuctionID: &auctionID})

	days, err := f.ledger.GetRange(ctx, 1, day(t, "2025-01-10"), day(t, "2025-01-15"))
	if err != nil {
		t.Fatalf("GetRange() error = %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("GetRange() returned %d days, want 5", len(days))
	}
	for i, d := range days {
		if want := day(t, "2025-01-10").AddDate(0, 0, i); !d.Day.Equal(want) {
			t.Errorf("day %d = %s, want %s", i, model.FormatDay(d.Day), model.FormatDay(want))
		}
		if d.Status != model.DayBlocked || d.LockReason != model.LockAuction || d.AuctionID == nil || *d.AuctionID != auctionID {
			t.Errorf("%s = %+v, want blocked by auction %d", model.FormatDay(d.Day), d, auctionID)
		}
	}

	partial, err := f.ledger.GetRange(ctx, 1, day(t, "2025-01-13"), day(t, "2025-01-17"))
	if err != nil {
		t.Fatalf("GetRange() error = %v", err)
	}
	want := []model.DayStatus{model.DayBlocked, model.DayBlocked, model.DayAvailable, model.DayAvailable}
	if len(partial) != len(want) {
		t.Fatalf("partial GetRange() returned %d days, want %d", len(partial), len(want))
	}
	for i, d := range partial {
		if d.Status != want[i] {
			t.Errorf("%s = %s, want %s", model.FormatDay(d.Day), d.Status, want[i])
		}
	}
	if model.FormatDay(partial[0].Day) != "2025-01-13" || model.FormatDay(partial[3].Day) != "2025-01-16" {
		t.Errorf("partial range = %s..%s, want 2025-01-13..2025-01-16", model.FormatDay(partial[0].Day), model.FormatDay(partial[3].Day))
	}
}

func TestGetRange_RejectsBadRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GetRange(ctx, 1, day(t, "2025-01-10"), day(t, "2025-01-10"))
	wantCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.ledger.GetRange(ctx, 1, day(t, "2025-01-01"), day(t, "2026-01-03"))
	wantCode(t, err, apperrors.CodeInvalidInput)
}

func TestSetRangeStatus_RejectsInvalidCell(t *testing.T) {
	expiry := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)
	bookingID, auctionID := int64(2), int64(3)

	tests := []struct {
		name   string
		status model.RangeStatus
	}{
		{"reserved without expiry", model.RangeStatus{Status: model.DayReserved, LockReason: model.LockBookingHold, BookingID: &bookingID}},
		{"blocked with expiry", model.RangeStatus{Status: model.DayBlocked, LockReason: model.LockAuction, AuctionID: &auctionID, HoldExpiresAt: &expiry}},
		{"booking and auction", model.RangeStatus{Status: model.DayBooked, LockReason: model.LockBooking, BookingID: &bookingID, AuctionID: &auctionID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.ledger.SetRangeStatus(context.Background(), 1, day(t, "2025-01-10"), day(t, "2025-01-12"), tt.status)
			wantCode(t, err, apperrors.CodeInvalidInput)
			if cell := f.store.Day(1, day(t, "2025-01-10")); cell.Status != model.DayAvailable {
				t.Errorf("rejected write reached the calendar: %+v", cell)
			}
		})
	}
}

func TestFirstConflict_Priority(t *testing.T) {
	cells := func(statuses ...model.DayStatus) []model.CalendarDay {
		out := make([]model.CalendarDay, 0, len(statuses))
		for _, s := range statuses {
			out = append(out, model.CalendarDay{Status: s})
		}
		return out
	}

	tests := []struct {
		name string
		days []model.CalendarDay
		want model.DayStatus
	}{
		{"all available", cells(model.DayAvailable, model.DayAvailable), ""},
		{"reserved only", cells(model.DayAvailable, model.DayReserved), model.DayReserved},
		{"blocked beats reserved", cells(model.DayReserved, model.DayBlocked, model.DayReserved), model.DayBlocked},
		{"booked beats everything", cells(model.DayReserved, model.DayBlocked, model.DayBooked, model.DayAvailable), model.DayBooked},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstConflict(tt.days); got != tt.want {
				t.Errorf("firstConflict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRangeAvailable_MixedClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookingID := int64(9)
	f.set(t, "2025-01-10", "2025-01-11", f.hold(7, 30*time.Minute))
	f.set(t, "2025-01-11", "2025-01-12", model.RangeStatus{Status: model.DayBlocked, LockReason: model.LockMaintenance})
	f.set(t, "2025-01-12", "2025-01-13", model.RangeStatus{Status: model.DayBooked, LockReason: model.LockBooking, BookingID: &bookingID})

	tests := []struct {
		start, end string
		want       model.DayStatus
	}{
		{"2025-01-10", "2025-01-13", model.DayBooked},
		{"2025-01-10", "2025-01-12", model.DayBlocked},
		{"2025-01-10", "2025-01-11", model.DayReserved},
		{"2025-01-13", "2025-01-15", ""},
	}
	for _, tt := range tests {
		got, err := f.ledger.IsRangeAvailable(ctx, 1, day(t, tt.start), day(t, tt.end))
		if err != nil {
			t.Fatalf("IsRangeAvailable(%s, %s) error = %v", tt.start, tt.end, err)
		}
		if got.Reason != tt.want || got.Available != (tt.want == "") {
			t.Errorf("IsRangeAvailable(%s, %s) = available %v reason %q, want reason %q", tt.start, tt.end, got.Available, got.Reason, tt.want)
		}
		if got.HasAuction {
			t.Errorf("IsRangeAvailable(%s, %s) reported an auction", tt.start, tt.end)
		}
	}

	err := f.ledger.EnsureRangeFree(ctx, 1, model.NewStayRange(day(t, "2025-01-09"), day(t, "2025-01-12")))
	wantCode(t, err, apperrors.CodeRangeConflict)
	if reason := apperrors.AsAppError(err).Details["reason"]; reason != model.DayBlocked {
		t.Errorf("conflict reason = %v, want blocked", reason)
	}

	f.clock.Advance(31 * time.Minute)
	got, err := f.ledger.IsRangeAvailable(ctx, 1, day(t, "2025-01-10"), day(t, "2025-01-11"))
	if err != nil || !got.Available {
		t.Errorf("lapsed hold should read as available, got %+v, %v", got, err)
	}
}

func TestUnblock_LeavesOtherClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	auctionID, bookingID := int64(4), int64(5)
	f.set(t, "2025-01-10", "2025-01-12", model.RangeStatus{Status: model.DayBlocked, LockReason: model.LockAuction, AuctionID: &auctionID})
	f.set(t, "2025-01-12", "2025-01-13", model.RangeStatus{Status: model.DayBooked, LockReason: model.LockBooking, BookingID: &bookingID})
	f.set(t, "2025-01-13", "2025-01-14", f.hold(6, time.Hour))
	if err := f.ledger.Block(ctx, "villa-1", day(t, "2025-01-14"), day(t, "2025-01-16"), model.LockMaintenance); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	released, err := f.ledger.Unblock(ctx, "villa-1", day(t, "2025-01-10"), day(t, "2025-01-16"))
	if err != nil {
		t.Fatalf("Unblock() error = %v", err)
	}
	if released != 2 {
		t.Errorf("Unblock() released %d days, want 2", released)
	}

	want := map[string]model.LockReason{
		"2025-01-10": model.LockAuction,
		"2025-01-11": model.LockAuction,
		"2025-01-12": model.LockBooking,
		"2025-01-13": model.LockBookingHold,
		"2025-01-14": model.LockNone,
		"2025-01-15": model.LockNone,
	}
	for d, reason := range want {
		cell := f.store.Day(1, day(t, d))
		if cell.LockReason != reason {
			t.Errorf("%s lock = %q, want %q", d, cell.LockReason, reason)
		}
		if reason == model.LockNone && cell.Status != model.DayAvailable {
			t.Errorf("%s status = %s, want available", d, cell.Status)
		}
	}
}

func TestBlock_RejectsClaimedRangeAndBadReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.set(t, "2025-01-11", "2025-01-12", f.hold(3, time.Hour))

	err := f.ledger.Block(ctx, "villa-1", day(t, "2025-01-10"), day(t, "2025-01-13"), model.LockManual)
	wantCode(t, err, apperrors.CodeRangeConflict)
	if cell := f.store.Day(1, day(t, "2025-01-10")); cell.Status != model.DayAvailable {
		t.Errorf("conflicting block wrote %+v", cell)
	}

	err = f.ledger.Block(ctx, "villa-1", day(t, "2025-01-20"), day(t, "2025-01-21"), model.LockAuction)
	wantCode(t, err, apperrors.CodeInvalidInput)

	err = f.ledger.Block(ctx, "villa-9", day(t, "2025-01-20"), day(t, "2025-01-21"), model.LockManual)
	wantCode(t, err, apperrors.CodeNotFound)
}
