package service

import (
	"context"
	"testing"
	"time"

	"staybid/internal/bookings/validator"
	calendar "staybid/internal/calendar/service"
	"staybid/internal/events"
	"staybid/internal/testutil"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type fixture struct {
	store    *testutil.Store
	clock    *testutil.Clock
	params   *testutil.Parameters
	events   *testutil.Recorder
	calendar *testutil.CalendarRepo
	bookings *testutil.BookingRepo
	ledger   calendar.Ledger
	svc      BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	clock := testutil.NewClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	cfg := testutil.Config()
	tx := &testutil.TxManager{Store: store}
	catalog := &testutil.Catalog{Units: []model.Unit{testutil.Unit()}}
	calRepo := &testutil.CalendarRepo{Store: store}
	ledger := calendar.NewLedger(calRepo, tx, catalog, &testutil.AuctionRepo{Store: store}, cfg, calendar.WithClock(clock.Now))

	params := testutil.NewParameters()
	params.P.ServiceFeeFactor = 0.05
	rec := &testutil.Recorder{}
	bookingRepo := &testutil.BookingRepo{Store: store}

	svc := NewBookingService(
		bookingRepo,
		ledger,
		tx,
		catalog,
		params,
		rec,
		validator.NewBookingValidator(),
		cfg,
		WithClock(clock.Now),
	)
	return &fixture{store: store, clock: clock, params: params, events: rec, calendar: calRepo, bookings: bookingRepo, ledger: ledger, svc: svc}
}

func placeRequest(checkin, checkout string) *validator.PlaceRequest {
	return &validator.PlaceRequest{UnitUID: "villa-1", GuestID: "guest-1", Checkin: checkin, Checkout: checkout}
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := model.ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.IsCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func TestPlaceDraft_HoldsRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}

	wantExpiry := f.clock.Now().Add(30 * time.Minute)
	if !draft.HoldExpiresAt.Equal(wantExpiry) {
		t.Errorf("HoldExpiresAt = %s, want %s", draft.HoldExpiresAt, wantExpiry)
	}
	if draft.Amount != 2_000_000 || draft.ServiceFee != 100_000 || draft.Currency != "VND" {
		t.Errorf("unexpected pricing: %+v", draft)
	}

	for _, d := range []string{"2025-01-10", "2025-01-11"} {
		cell := f.store.Day(1, day(t, d))
		if cell.Status != model.DayReserved || cell.LockReason != model.LockBookingHold {
			t.Errorf("%s: status = %s/%s, want reserved/booking_hold", d, cell.Status, cell.LockReason)
		}
		if cell.BookingID == nil || *cell.BookingID != draft.BookingID {
			t.Errorf("%s: booking ref = %v, want %d", d, cell.BookingID, draft.BookingID)
		}
	}
	if got := f.store.Day(1, day(t, "2025-01-12")).Status; got != model.DayAvailable {
		t.Errorf("checkout day status = %s, want available", got)
	}

	b := f.store.Booking(draft.BookingID)
	if b.Status != model.BookingPending || b.Source != model.SourceDirect || b.Nights != 2 {
		t.Errorf("unexpected booking: %+v", b)
	}
	if f.events.Count(events.BookingHeld) != 1 {
		t.Errorf("events = %v, want one booking.held", f.events.Types())
	}
}

func TestPlaceDraft_OverlapConflictsAndRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12")); err != nil {
		t.Fatalf("first PlaceDraft() error = %v", err)
	}
	_, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-11", "2025-01-14"))
	wantCode(t, err, apperrors.CodeRangeConflict)

	if n := len(f.store.Bookings()); n != 1 {
		t.Errorf("bookings = %d, want 1", n)
	}
	if got := f.store.Day(1, day(t, "2025-01-13")).Status; got != model.DayAvailable {
		t.Errorf("day outside the first hold = %s, want available", got)
	}
}

func TestPlaceDraft_LapsedHoldIsReusable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}
	f.clock.Advance(31 * time.Minute)

	second, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() over a lapsed hold error = %v", err)
	}
	cell := f.store.Day(1, day(t, "2025-01-10"))
	if cell.BookingID == nil || *cell.BookingID != second.BookingID {
		t.Errorf("day belongs to %v, want booking %d (not %d)", cell.BookingID, second.BookingID, first.BookingID)
	}
}

func TestPlaceDraft_RejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *validator.PlaceRequest
		code string
	}{
		{"missing guest", &validator.PlaceRequest{UnitUID: "villa-1", Checkin: "2025-01-10", Checkout: "2025-01-12"}, apperrors.CodeValidation},
		{"checkout before checkin", placeRequest("2025-01-12", "2025-01-10"), apperrors.CodeInvalidInput},
		{"hold too long", &validator.PlaceRequest{UnitUID: "villa-1", GuestID: "g", Checkin: "2025-01-10", Checkout: "2025-01-12", HoldMinutes: 121}, apperrors.CodeInvalidInput},
		{"unknown unit", &validator.PlaceRequest{UnitUID: "nope", GuestID: "g", Checkin: "2025-01-10", Checkout: "2025-01-12"}, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.PlaceDraft(ctx, tt.req)
			wantCode(t, err, tt.code)
		})
	}
	if n := len(f.store.Bookings()); n != 0 {
		t.Errorf("bookings = %d, want 0", n)
	}
}

func TestPlaceDraft_LockContentionIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.calendar.LockUnitFunc = func(int64) error {
		return &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	}

	_, err := f.svc.PlaceDraft(context.Background(), placeRequest("2025-01-10", "2025-01-12"))
	wantCode(t, err, apperrors.CodeLockContention)
	if !apperrors.IsRetryable(err) {
		t.Error("lock contention should be retryable")
	}
	if apperrors.AsAppError(err).StatusCode() != 423 {
		t.Errorf("status = %d, want 423", apperrors.AsAppError(err).StatusCode())
	}
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}

	booking, err := f.svc.ConfirmPayment(ctx, draft.BookingID, "card-123")
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if booking.Status != model.BookingConfirmed || booking.PaidAt == nil || *booking.PaymentMethodRef != "card-123" {
		t.Errorf("unexpected booking after confirm: %+v", booking)
	}
	for _, d := range []string{"2025-01-10", "2025-01-11"} {
		cell := f.store.Day(1, day(t, d))
		if cell.Status != model.DayBooked || cell.HoldExpiresAt != nil {
			t.Errorf("%s: status = %s expiry = %v, want booked without expiry", d, cell.Status, cell.HoldExpiresAt)
		}
	}

	_, err = f.svc.ConfirmPayment(ctx, draft.BookingID, "card-123")
	wantCode(t, err, apperrors.CodeAlreadyFinalized)
	if got := apperrors.AsAppError(err).Details["status"]; got != "confirmed" {
		t.Errorf("details.status = %v, want confirmed", got)
	}

	_, err = f.svc.ConfirmPayment(ctx, 999, "card-123")
	wantCode(t, err, apperrors.CodeNotFound)
}

func TestConfirmPayment_LockTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}
	f.bookings.ConfirmFunc = func(int64) error {
		return &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	}

	_, err = f.svc.ConfirmPayment(ctx, draft.BookingID, "card-123")
	wantCode(t, err, apperrors.CodeLockContention)
	if !apperrors.IsRetryable(err) || apperrors.AsAppError(err).StatusCode() != 423 {
		t.Errorf("error = %v, want retryable 423", err)
	}
	if b := f.store.Booking(draft.BookingID); b.Status != model.BookingPending {
		t.Errorf("booking status = %s, want pending after the failed confirm", b.Status)
	}

	f.bookings.ConfirmFunc = nil
	if _, err := f.svc.ConfirmPayment(ctx, draft.BookingID, "card-123"); err != nil {
		t.Errorf("retry after the lock cleared: %v", err)
	}
}

func TestConfirmPayment_ReleasedHoldRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}
	if _, err := f.ledger.ReleaseExpiredHolds(ctx, f.clock.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ReleaseExpiredHolds() error = %v", err)
	}

	_, err = f.svc.ConfirmPayment(ctx, draft.BookingID, "card-123")
	wantCode(t, err, apperrors.CodeRangeConflict)
	if got := f.store.Booking(draft.BookingID).Status; got != model.BookingPending {
		t.Errorf("booking status = %s, want pending after rollback", got)
	}
	if f.events.Count(events.BookingConfirmed) != 0 {
		t.Error("rolled back confirmation must not publish")
	}
}

func TestFailPayment_ReleasesDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}

	booking, err := f.svc.FailPayment(ctx, draft.BookingID, "card declined")
	if err != nil {
		t.Fatalf("FailPayment() error = %v", err)
	}
	if booking.Status != model.BookingCancelled || booking.Note != "card declined" {
		t.Errorf("unexpected booking: %+v", booking)
	}
	if got := f.store.Day(1, day(t, "2025-01-10")).Status; got != model.DayAvailable {
		t.Errorf("day status = %s, want available", got)
	}

	_, err = f.svc.FailPayment(ctx, draft.BookingID, "again")
	wantCode(t, err, apperrors.CodeAlreadyFinalized)
}

func TestExpire_IsGuarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-10", "2025-01-12"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}

	expired, err := f.svc.Expire(ctx, draft.BookingID)
	if err != nil || !expired {
		t.Fatalf("Expire() = %v, %v, want true", expired, err)
	}
	expired, err = f.svc.Expire(ctx, draft.BookingID)
	if err != nil || expired {
		t.Fatalf("second Expire() = %v, %v, want false", expired, err)
	}
	if got := f.store.Day(1, day(t, "2025-01-11")).Status; got != model.DayAvailable {
		t.Errorf("day status = %s, want available", got)
	}
}

func TestCompleteFinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.PlaceDraft(ctx, placeRequest("2025-01-02", "2025-01-04"))
	if err != nil {
		t.Fatalf("PlaceDraft() error = %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, draft.BookingID, "card"); err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}

	n, err := f.svc.CompleteFinished(ctx, day(t, "2025-01-03").Add(12*time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("CompleteFinished() during the stay = %d, %v, want 0", n, err)
	}
	n, err = f.svc.CompleteFinished(ctx, day(t, "2025-01-04").Add(12*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("CompleteFinished() at checkout = %d, %v, want 1", n, err)
	}
	if got := f.store.Booking(draft.BookingID).Status; got != model.BookingCompleted {
		t.Errorf("status = %s, want completed", got)
	}
}

func TestListByGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, r := range [][2]string{{"2025-01-10", "2025-01-11"}, {"2025-01-12", "2025-01-13"}, {"2025-01-14", "2025-01-15"}} {
		if _, err := f.svc.PlaceDraft(ctx, placeRequest(r[0], r[1])); err != nil {
			t.Fatalf("PlaceDraft(%v) error = %v", r, err)
		}
	}

	bookings, total, err := f.svc.ListByGuest(ctx, "guest-1", 2, 0)
	if err != nil {
		t.Fatalf("ListByGuest() error = %v", err)
	}
	if total != 3 || len(bookings) != 2 {
		t.Fatalf("ListByGuest() = %d bookings, total %d, want 2 of 3", len(bookings), total)
	}
	if bookings[0].ID < bookings[1].ID {
		t.Error("bookings should be newest first")
	}

	_, _, err = f.svc.AdminList(ctx, "paid", 10, 0)
	wantCode(t, err, apperrors.CodeInvalidInput)
}
