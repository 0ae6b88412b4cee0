package model

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

type EndReason string

const (
	EndReasonNone      EndReason = ""
	EndReasonNatural   EndReason = "natural_end"
	EndReasonBuyNow    EndReason = "buy_now"
	EndReasonAdmin     EndReason = "admin"
	EndReasonCancelled EndReason = "cancelled"
)

var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionActive:    {AuctionEnded, AuctionCancelled},
	AuctionEnded:     nil,
	AuctionCancelled: nil,
}

func (s AuctionStatus) Valid() bool {
	_, ok := auctionTransitions[s]
	return ok
}

func (s AuctionStatus) Terminal() bool {
	return s.Valid() && len(auctionTransitions[s]) == 0
}

func (s AuctionStatus) CanTransitionTo(next AuctionStatus) bool {
	for _, allowed := range auctionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID            int64         `bun:"id,pk,autoincrement" json:"-"`
	UID           string        `bun:"uid,notnull,unique" json:"auction_uid"`
	UnitID        int64         `bun:"unit_id,notnull" json:"unit_id"`
	CreatorID     string        `bun:"creator_id,notnull" json:"creator_id"`
	StayStart     time.Time     `bun:"stay_start,type:date,notnull" json:"stay_start"`
	StayEnd       time.Time     `bun:"stay_end,type:date,notnull" json:"stay_end"`
	StartTime     time.Time     `bun:"start_time,notnull" json:"start_time"`
	EndTime       time.Time     `bun:"end_time,notnull" json:"end_time"`
	StartingPrice int64         `bun:"starting_price,notnull" json:"starting_price"`
	BidIncrement  int64         `bun:"bid_increment,notnull" json:"bid_increment"`
	CurrentPrice  int64         `bun:"current_price,notnull" json:"current_price"`
	WinningBidID  *int64        `bun:"winning_bid_id" json:"winning_bid_id,omitempty"`
	BidCount      int           `bun:"bid_count,notnull,default:0" json:"bid_count"`
	Status        AuctionStatus `bun:"status,notnull" json:"status"`
	EndReason     EndReason     `bun:"end_reason,notnull,default:''" json:"end_reason,omitempty"`
	EndNote       string        `bun:"end_note,notnull,default:''" json:"end_note,omitempty"`
	BasePrice     int64         `bun:"base_price,notnull" json:"base_price"`
	Currency      string        `bun:"currency,notnull" json:"currency"`
	ProvinceCode  string        `bun:"province_code,notnull,default:''" json:"province_code,omitempty"`
	DistrictCode  string        `bun:"district_code,notnull,default:''" json:"district_code,omitempty"`
	CreatedAt     time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

func (a *Auction) Stay() StayRange {
	return NewStayRange(a.StayStart, a.StayEnd)
}

// MinimumBid is the lowest amount the next bid may carry.
func (a *Auction) MinimumBid() int64 {
	return a.CurrentPrice + a.BidIncrement
}

// AcceptsBidsAt reports whether the bidding window is open at now.
func (a *Auction) AcceptsBidsAt(now time.Time) bool {
	return a.Status == AuctionActive && now.Before(a.EndTime)
}

func (a *Auction) WindowElapsed(now time.Time) bool {
	return !now.Before(a.EndTime)
}

type Bid struct {
	bun.BaseModel `bun:"table:bids,alias:b"`

	ID               int64     `bun:"id,pk,autoincrement" json:"bid_id"`
	AuctionID        int64     `bun:"auction_id,notnull" json:"-"`
	BidderID         string    `bun:"bidder_id,notnull" json:"bidder_id"`
	Amount           int64     `bun:"amount,notnull" json:"amount"`
	PaymentMethodRef *string   `bun:"payment_method_ref" json:"payment_method_ref,omitempty"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"bid_time"`
}

// UserBid is one bid joined with the auction it was placed on.
type UserBid struct {
	BidID         int64         `bun:"bid_id" json:"bid_id"`
	Amount        int64         `bun:"amount" json:"amount"`
	BidTime       time.Time     `bun:"created_at" json:"bid_time"`
	AuctionUID    string        `bun:"auction_uid" json:"auction_uid"`
	AuctionStatus AuctionStatus `bun:"auction_status" json:"auction_status"`
	CurrentPrice  int64         `bun:"current_price" json:"current_price"`
	EndTime       time.Time     `bun:"end_time" json:"end_time"`
	Winning       bool          `bun:"winning" json:"winning"`
}
