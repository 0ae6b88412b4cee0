package model

import (
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDay(s)
	if err != nil {
		t.Fatalf("ParseDay(%q): %v", s, err)
	}
	return d
}

func TestStayRange_Nights(t *testing.T) {
	tests := []struct {
		name   string
		start  string
		end    string
		nights int
		valid  bool
	}{
		{"single night", "2025-01-10", "2025-01-11", 1, true},
		{"five nights", "2025-01-10", "2025-01-15", 5, true},
		{"month boundary", "2025-01-30", "2025-02-02", 3, true},
		{"empty range", "2025-01-10", "2025-01-10", 0, false},
		{"inverted range", "2025-01-12", "2025-01-10", -2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStayRange(day(t, tt.start), day(t, tt.end))
			if got := r.Nights(); got != tt.nights {
				t.Errorf("Nights() = %d, want %d", got, tt.nights)
			}
			if got := r.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStayRange_Overlaps(t *testing.T) {
	base := NewStayRange(day(t, "2025-01-10"), day(t, "2025-01-15"))

	tests := []struct {
		name  string
		other StayRange
		want  bool
	}{
		{"inside", NewStayRange(day(t, "2025-01-12"), day(t, "2025-01-14")), true},
		{"straddles start", NewStayRange(day(t, "2025-01-08"), day(t, "2025-01-11")), true},
		{"touches end", NewStayRange(day(t, "2025-01-15"), day(t, "2025-01-17")), false},
		{"touches start", NewStayRange(day(t, "2025-01-08"), day(t, "2025-01-10")), false},
		{"disjoint", NewStayRange(day(t, "2025-02-01"), day(t, "2025-02-03")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Overlaps(base); got != tt.want {
				t.Errorf("Overlaps() is not symmetric")
			}
		})
	}
}

func TestStayRange_Days(t *testing.T) {
	r := NewStayRange(day(t, "2025-01-30"), day(t, "2025-02-02"))
	days := r.Days()
	want := []string{"2025-01-30", "2025-01-31", "2025-02-01"}
	if len(days) != len(want) {
		t.Fatalf("Days() returned %d days, want %d", len(days), len(want))
	}
	for i, d := range days {
		if FormatDay(d) != want[i] {
			t.Errorf("Days()[%d] = %s, want %s", i, FormatDay(d), want[i])
		}
	}
	if !r.Contains(NewStayRange(days[1], days[2])) {
		t.Error("range should contain its own sub-range")
	}
}

func TestDayOf_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Date(2025, 1, 10, 3, 0, 0, 0, loc)
	if got := FormatDay(DayOf(local)); got != "2025-01-09" {
		t.Errorf("DayOf() = %s, want 2025-01-09", got)
	}
}

func TestBookingStatus_Transitions(t *testing.T) {
	tests := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{BookingPending, BookingConfirmed, true},
		{BookingPending, BookingExpired, true},
		{BookingPending, BookingCancelled, true},
		{BookingPending, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingPending, false},
		{BookingExpired, BookingConfirmed, false},
		{BookingCancelled, BookingPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}

	for _, s := range []BookingStatus{BookingCancelled, BookingCompleted, BookingExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if BookingStatus("paid").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestAuctionStatus_Transitions(t *testing.T) {
	if !AuctionActive.CanTransitionTo(AuctionEnded) || !AuctionActive.CanTransitionTo(AuctionCancelled) {
		t.Error("active auctions must be able to end or be cancelled")
	}
	if AuctionEnded.CanTransitionTo(AuctionActive) || AuctionCancelled.CanTransitionTo(AuctionEnded) {
		t.Error("terminal auctions must not transition")
	}
	if AuctionActive.Terminal() || !AuctionEnded.Terminal() {
		t.Error("unexpected terminal flags")
	}
}

func TestAuction_BidWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := &Auction{Status: AuctionActive, EndTime: now.Add(time.Hour), CurrentPrice: 700000, BidIncrement: 35000}

	if !a.AcceptsBidsAt(now) {
		t.Error("auction should accept bids before end time")
	}
	if a.AcceptsBidsAt(a.EndTime) {
		t.Error("auction must reject bids at end time")
	}
	if got := a.MinimumBid(); got != 735000 {
		t.Errorf("MinimumBid() = %d, want 735000", got)
	}
	a.Status = AuctionEnded
	if a.AcceptsBidsAt(now) {
		t.Error("ended auction must reject bids")
	}
}

func TestRangeStatus_Validate(t *testing.T) {
	expiry := time.Now().Add(30 * time.Minute)
	id := int64(7)

	tests := []struct {
		name    string
		status  RangeStatus
		wantErr error
	}{
		{"hold with expiry", RangeStatus{Status: DayReserved, LockReason: LockBookingHold, BookingID: &id, HoldExpiresAt: &expiry}, nil},
		{"hold without expiry", RangeStatus{Status: DayReserved, LockReason: LockBookingHold, BookingID: &id}, ErrHoldExpiryRequired},
		{"blocked with expiry", RangeStatus{Status: DayBlocked, LockReason: LockAuction, AuctionID: &id, HoldExpiresAt: &expiry}, ErrHoldExpiryForbidden},
		{"booked with expiry", RangeStatus{Status: DayBooked, LockReason: LockBooking, BookingID: &id, HoldExpiresAt: &expiry}, ErrHoldExpiryForbidden},
		{"both refs", RangeStatus{Status: DayBlocked, LockReason: LockAuction, AuctionID: &id, BookingID: &id}, ErrAmbiguousReference},
		{"released", RangeStatus{Status: DayAvailable}, nil},
		{"available with lock", RangeStatus{Status: DayAvailable, LockReason: LockManual}, ErrAvailableWithRef},
		{"unknown status", RangeStatus{Status: "gone"}, ErrUnknownDayStatus},
		{"unknown reason", RangeStatus{Status: DayBlocked, LockReason: "vip"}, ErrUnknownLockReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.status.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalendarDay_EffectiveStatus(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	lapsed := CalendarDay{Status: DayReserved, HoldExpiresAt: &past}
	if lapsed.EffectiveStatus(now) != DayAvailable || lapsed.Claimed(now) {
		t.Error("lapsed hold should read as available")
	}
	live := CalendarDay{Status: DayReserved, HoldExpiresAt: &future}
	if live.EffectiveStatus(now) != DayReserved || !live.Claimed(now) {
		t.Error("live hold should read as reserved")
	}
	atExpiry := CalendarDay{Status: DayReserved, HoldExpiresAt: &now}
	if !atExpiry.Claimed(now) {
		t.Error("hold should stay live at its expiry instant")
	}
	blocked := CalendarDay{Status: DayBlocked}
	if !blocked.Claimed(now) {
		t.Error("blocked day should be claimed")
	}
}

func TestDefaultParameters(t *testing.T) {
	p := DefaultParameters()
	if p.StartPriceFactor != 0.7 || p.BidIncrementFactor != 0.05 {
		t.Errorf("unexpected price factors: %+v", p)
	}
	if p.PaymentDeadline() != 30*time.Minute {
		t.Errorf("PaymentDeadline() = %s, want 30m", p.PaymentDeadline())
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		v    float64
		step int64
		want int64
	}{
		{700000, 1000, 700000},
		{35000, 1000, 35000},
		{34500, 1000, 35000},
		{34499, 1000, 34000},
		{-1500, 1000, -2000},
		{12.5, 1, 13},
		{12.4, 0, 12},
	}
	for _, tt := range tests {
		if got := RoundTo(tt.v, tt.step); got != tt.want {
			t.Errorf("RoundTo(%v, %d) = %d, want %d", tt.v, tt.step, got, tt.want)
		}
	}
}

func TestServiceFee(t *testing.T) {
	if got := ServiceFee(3_000_000, 0.05); got != 150_000 {
		t.Errorf("ServiceFee() = %d, want 150000", got)
	}
	if got := ServiceFee(3_000_000, 0); got != 0 {
		t.Errorf("ServiceFee() with zero factor = %d, want 0", got)
	}
	if got := StayPrice(1_000_000, 3); got != 3_000_000 {
		t.Errorf("StayPrice() = %d, want 3000000", got)
	}
}
