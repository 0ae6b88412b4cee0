package model

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingExpired   BookingStatus = "expired"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled, BookingExpired},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
	BookingCancelled: nil,
	BookingCompleted: nil,
	BookingExpired:   nil,
}

func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

func (s BookingStatus) Terminal() bool {
	return s.Valid() && len(bookingTransitions[s]) == 0
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type BookingSource string

const (
	SourceDirect     BookingSource = "direct"
	SourceAuctionWin BookingSource = "auction_win"
	SourceBuyNow     BookingSource = "buy_now"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings,alias:bk"`

	ID               int64         `bun:"id,pk,autoincrement" json:"booking_id"`
	BidID            *int64        `bun:"bid_id" json:"bid_id,omitempty"`
	AuctionID        *int64        `bun:"auction_id" json:"auction_id,omitempty"`
	GuestID          string        `bun:"guest_id,notnull" json:"guest_id"`
	UnitID           int64         `bun:"unit_id,notnull" json:"unit_id"`
	StayStart        time.Time     `bun:"stay_start,type:date,notnull" json:"stay_start"`
	StayEnd          time.Time     `bun:"stay_end,type:date,notnull" json:"stay_end"`
	Nights           int           `bun:"nights,notnull" json:"nights"`
	UnitPrice        int64         `bun:"unit_price,notnull" json:"unit_price"`
	Amount           int64         `bun:"amount,notnull" json:"amount"`
	ServiceFee       int64         `bun:"service_fee,notnull,default:0" json:"service_fee"`
	Currency         string        `bun:"currency,notnull" json:"currency"`
	Source           BookingSource `bun:"source,notnull" json:"source"`
	Status           BookingStatus `bun:"status,notnull" json:"status"`
	HoldExpiresAt    *time.Time    `bun:"hold_expires_at" json:"hold_expires_at,omitempty"`
	PaymentMethodRef *string       `bun:"payment_method_ref" json:"payment_method_ref,omitempty"`
	PaidAt           *time.Time    `bun:"paid_at" json:"paid_at,omitempty"`
	Note             string        `bun:"note,notnull,default:''" json:"note,omitempty"`
	CreatedAt        time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (b *Booking) Stay() StayRange {
	return NewStayRange(b.StayStart, b.StayEnd)
}
