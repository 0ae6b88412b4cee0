package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	auctionserrors "staybid/internal/auctions/errors"
	"staybid/internal/auctions/repository"
	"staybid/internal/auctions/validator"
	bookings "staybid/internal/bookings/service"
	calendar "staybid/internal/calendar/service"
	"staybid/internal/events"
	"staybid/internal/units"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
	"staybid/pkg/sanitizer"

	"github.com/google/uuid"
)

type ParameterSource interface {
	GetParameters(ctx context.Context) (model.Parameters, error)
}

// BookingHolder turns auction days into a guest's payment hold.
type BookingHolder interface {
	HoldForAuction(ctx context.Context, hold bookings.AuctionHold) (*model.Booking, error)
}

const (
	ReasonLeadTime    = "lead_time"
	ReasonUnavailable = "unavailable"
)

type Preview struct {
	Eligible      bool   `json:"eligible"`
	Reason        string `json:"reason,omitempty"`
	EarliestStart string `json:"earliestStart,omitempty"`
	DurationDays  int    `json:"durationDays"`
	StartingPrice int64  `json:"startingPrice"`
	BidIncrement  int64  `json:"bidIncrement"`
	Currency      string `json:"currency"`
}

type BidResult struct {
	BidID        int64 `json:"bidId"`
	CurrentPrice int64 `json:"currentPrice"`
	MinimumBid   int64 `json:"minimumBid"`
}

type BuyNowResult struct {
	BookingID     int64     `json:"bookingId"`
	HoldExpiresAt time.Time `json:"holdExpiresAt"`
	Amount        int64     `json:"amount"`
	ServiceFee    int64     `json:"serviceFee"`
	Currency      string    `json:"currency"`
}

type AuctionService interface {
	PreviewCreate(ctx context.Context, req *validator.PreviewRequest) (*Preview, error)
	CreateAuction(ctx context.Context, req *validator.CreateRequest) (*model.Auction, error)
	PlaceBid(ctx context.Context, auctionUID string, req *validator.BidRequest) (*BidResult, error)
	BuyNow(ctx context.Context, auctionUID string, req *validator.BuyNowRequest) (*BuyNowResult, error)
	SetAuctionEnded(ctx context.Context, auctionUID string) (*model.Auction, error)
	CancelAuction(ctx context.Context, auctionUID, reason string) (*model.Auction, error)
	CloseExpired(ctx context.Context, now time.Time, batch int) (int, error)

	Projections
}

type auctionService struct {
	repo      repository.AuctionRepository
	ledger    calendar.Ledger
	bookings  BookingHolder
	txManager postgres.TransactionManager
	catalog   units.Catalog
	params    ParameterSource
	publisher events.Publisher
	validator *validator.AuctionValidator
	cfg       *config.Config
	now       func() time.Time
}

type Option func(*auctionService)

func WithClock(now func() time.Time) Option {
	return func(s *auctionService) { s.now = now }
}

func NewAuctionService(
	repo repository.AuctionRepository,
	ledger calendar.Ledger,
	bookings BookingHolder,
	txManager postgres.TransactionManager,
	catalog units.Catalog,
	params ParameterSource,
	publisher events.Publisher,
	validator *validator.AuctionValidator,
	cfg *config.Config,
	opts ...Option,
) AuctionService {
	s := &auctionService{
		repo:      repo,
		ledger:    ledger,
		bookings:  bookings,
		txManager: txManager,
		catalog:   catalog,
		params:    params,
		publisher: publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *auctionService) PreviewCreate(ctx context.Context, req *validator.PreviewRequest) (*Preview, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	stay, err := parseStay(req.Checkin, req.Checkout)
	if err != nil {
		return nil, err
	}
	params, err := s.params.GetParameters(ctx)
	if err != nil {
		return nil, err
	}
	unit, err := s.catalog.FindByUID(ctx, req.UnitUID)
	if err != nil {
		return nil, err
	}

	pricing := PriceFor(unit.BasePrice, params)
	preview := &Preview{
		Eligible:      true,
		DurationDays:  params.DurationDays,
		StartingPrice: pricing.StartingPrice,
		BidIncrement:  pricing.BidIncrement,
		Currency:      unit.Currency,
	}

	if err := checkLeadTime(s.now(), stay.Start, params); err != nil {
		preview.Eligible = false
		preview.Reason = ReasonLeadTime
		preview.EarliestStart, _ = apperrors.AsAppError(err).Details["earliest_start"].(string)
		return preview, nil
	}
	availability, err := s.ledger.IsRangeAvailable(ctx, unit.ID, stay.Start, stay.End)
	if err != nil {
		return nil, err
	}
	if !availability.Available {
		preview.Eligible = false
		preview.Reason = ReasonUnavailable
	}
	return preview, nil
}

func (s *auctionService) CreateAuction(ctx context.Context, req *validator.CreateRequest) (*model.Auction, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	stay, err := parseStay(req.Checkin, req.Checkout)
	if err != nil {
		return nil, err
	}
	params, err := s.params.GetParameters(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := checkLeadTime(now, stay.Start, params); err != nil {
		return nil, err
	}
	unit, err := s.catalog.FindByUID(ctx, req.UnitUID)
	if err != nil {
		return nil, err
	}
	uid, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate auction UID", err)
	}

	pricing := PriceFor(unit.BasePrice, params)
	auction := &model.Auction{
		UID:           uid.String(),
		UnitID:        unit.ID,
		CreatorID:     req.UserID,
		StayStart:     stay.Start,
		StayEnd:       stay.End,
		StartTime:     now,
		EndTime:       now.Add(time.Duration(params.DurationDays) * 24 * time.Hour),
		StartingPrice: pricing.StartingPrice,
		BidIncrement:  pricing.BidIncrement,
		CurrentPrice:  pricing.StartingPrice,
		Status:        model.AuctionActive,
		BasePrice:     unit.BasePrice,
		Currency:      unit.Currency,
		ProvinceCode:  unit.ProvinceCode,
		DistrictCode:  unit.DistrictCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.LockUnit(ctx, unit.ID); err != nil {
			return err
		}
		overlapping, err := s.repo.FindOverlappingActive(ctx, unit.ID, stay)
		if err != nil {
			return apperrors.Internal("Failed to check overlapping auctions", err)
		}
		if len(overlapping) > 0 {
			return apperrors.RangeConflict(fmt.Sprintf("an active auction already covers part of %s", stay)).
				WithDetails(map[string]any{"reason": "auction", "auction_uid": overlapping[0].UID})
		}
		if err := s.ledger.EnsureRangeFree(ctx, unit.ID, stay); err != nil {
			return err
		}

		if err := s.repo.Create(ctx, auction); err != nil {
			if postgres.IsExclusionViolation(err) {
				return apperrors.RangeConflict(fmt.Sprintf("an active auction already covers part of %s", stay))
			}
			return apperrors.Internal("Failed to create auction", err)
		}
		if err := s.ledger.SetRangeStatus(ctx, unit.ID, stay.Start, stay.End, model.RangeStatus{
			Status:     model.DayBlocked,
			LockReason: model.LockAuction,
			AuctionID:  &auction.ID,
		}); err != nil {
			return err
		}

		if req.InitialBid {
			bid := &model.Bid{BidderID: req.UserID, Amount: auction.StartingPrice}
			if err := s.repo.RecordBid(ctx, auction, bid, auction.StartingPrice, now); err != nil {
				return apperrors.Internal("Failed to record opening bid", err)
			}
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create auction", "unit_uid", req.UnitUID, "range", stay.String(), "error", err)
		return nil, err
	}

	events.PublishAfterCommit(ctx, s.publisher, events.Event{Type: events.AuctionCreated, Key: auction.UID, Payload: auction})
	s.cfg.Log.Info("Auction created",
		"auction_uid", auction.UID,
		"unit_id", unit.ID,
		"range", stay.String(),
		"starting_price", auction.StartingPrice,
		"bid_increment", auction.BidIncrement,
		"end_time", auction.EndTime,
	)
	return auction, nil
}

func (s *auctionService) PlaceBid(ctx context.Context, auctionUID string, req *validator.BidRequest) (*BidResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, apperrors.InvalidInput("amount must be positive")
	}
	if req.Checkin != "" || req.Checkout != "" {
		stay, err := parseStay(req.Checkin, req.Checkout)
		if err != nil {
			return nil, err
		}
		current, err := s.find(ctx, auctionUID)
		if err != nil {
			return nil, err
		}
		if !current.Stay().Equal(stay) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("stay range %s does not match the auction's %s", stay, current.Stay()))
		}
	}

	result := &BidResult{}
	var auction *model.Auction
	bid := &model.Bid{BidderID: req.UserID, Amount: req.Amount}
	if req.PaymentMethodRef != "" {
		bid.PaymentMethodRef = &req.PaymentMethodRef
	}

	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		auction, err = s.lock(ctx, auctionUID)
		if err != nil {
			return err
		}
		now := s.now()
		if !auction.AcceptsBidsAt(now) {
			return apperrors.AuctionEnded(auction.UID)
		}
		if req.Amount < auction.MinimumBid() {
			return apperrors.BidTooLow(auction.MinimumBid(), auction.CurrentPrice, auction.BidIncrement)
		}
		if err := s.repo.RecordBid(ctx, auction, bid, req.Amount, now); err != nil {
			if errors.Is(err, auctionserrors.ErrNotActive) {
				return apperrors.AuctionEnded(auction.UID)
			}
			return apperrors.Internal("Failed to record bid", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Debug("Bid rejected", "auction_uid", auctionUID, "bidder_id", req.UserID, "amount", req.Amount, "error", err)
		return nil, err
	}

	result.BidID = bid.ID
	result.CurrentPrice = auction.CurrentPrice
	result.MinimumBid = auction.MinimumBid()
	events.PublishAfterCommit(ctx, s.publisher, events.Event{
		Type:    events.BidPlaced,
		Key:     auction.UID,
		Payload: map[string]any{"auctionUid": auction.UID, "bidId": bid.ID, "bidderId": bid.BidderID, "amount": bid.Amount},
	})
	s.cfg.Log.Info("Bid accepted", "auction_uid", auction.UID, "bid_id", bid.ID, "amount", req.Amount)
	return result, nil
}

// BuyNow ends the auction early and holds the requested days for the guest
// at the base price snapshotted when the auction opened.
func (s *auctionService) BuyNow(ctx context.Context, auctionUID string, req *validator.BuyNowRequest) (*BuyNowResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	stay, err := parseStay(req.Checkin, req.Checkout)
	if err != nil {
		return nil, err
	}

	var auction *model.Auction
	var booking *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		auction, err = s.lock(ctx, auctionUID)
		if err != nil {
			return err
		}
		now := s.now()
		if !auction.AcceptsBidsAt(now) {
			return apperrors.AuctionEnded(auction.UID)
		}
		if !auction.Stay().Contains(stay) {
			return apperrors.InvalidInput(fmt.Sprintf("stay range %s is outside the auction's %s", stay, auction.Stay()))
		}

		if err := s.finish(ctx, auction, model.AuctionEnded, model.EndReasonBuyNow, ""); err != nil {
			return err
		}
		booking, err = s.bookings.HoldForAuction(ctx, bookings.AuctionHold{
			Auction:   auction,
			GuestID:   req.UserID,
			Source:    model.SourceBuyNow,
			Stay:      stay,
			UnitPrice: auction.BasePrice,
		})
		if err != nil {
			return err
		}
		if _, err := s.ledger.ReleaseAuctionDays(ctx, auction.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Buy-now failed", "auction_uid", auctionUID, "guest_id", req.UserID, "error", err)
		return nil, err
	}

	s.publishEnded(ctx, auction)
	s.cfg.Log.Info("Auction bought out", "auction_uid", auction.UID, "booking_id", booking.ID, "range", stay.String())
	return &BuyNowResult{
		BookingID:     booking.ID,
		HoldExpiresAt: *booking.HoldExpiresAt,
		Amount:        booking.Amount,
		ServiceFee:    booking.ServiceFee,
		Currency:      booking.Currency,
	}, nil
}

// SetAuctionEnded closes an active auction. Calling it on a finished auction
// returns the auction unchanged.
func (s *auctionService) SetAuctionEnded(ctx context.Context, auctionUID string) (*model.Auction, error) {
	var auction *model.Auction
	var ended bool
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		auction, err = s.lock(ctx, auctionUID)
		if err != nil {
			return err
		}
		if auction.Status.Terminal() {
			return nil
		}
		ended = true
		return s.end(ctx, auction, s.now())
	})
	if err != nil {
		s.cfg.Log.Error("Failed to end auction", "auction_uid", auctionUID, "error", err)
		return nil, err
	}
	if ended {
		s.publishEnded(ctx, auction)
	}
	return auction, nil
}

// end closes a leased active auction and hands its days to the winner, or
// back to the calendar when there were no bids.
func (s *auctionService) end(ctx context.Context, auction *model.Auction, now time.Time) error {
	reason := model.EndReasonAdmin
	if auction.WindowElapsed(now) {
		reason = model.EndReasonNatural
	}
	if err := s.finish(ctx, auction, model.AuctionEnded, reason, ""); err != nil {
		return err
	}

	if auction.WinningBidID == nil {
		if _, err := s.ledger.ReleaseAuctionDays(ctx, auction.ID); err != nil {
			return err
		}
		s.cfg.Log.Info("Auction ended without bids", "auction_uid", auction.UID, "reason", reason)
		return nil
	}

	winner, err := s.repo.FindBid(ctx, *auction.WinningBidID)
	if err != nil {
		return apperrors.Internal("Failed to read winning bid", err)
	}
	if winner.AuctionID != auction.ID {
		return apperrors.Internal("Winning bid belongs to another auction", fmt.Errorf("auction %s winning bid %d", auction.UID, winner.ID))
	}

	booking, err := s.bookings.HoldForAuction(ctx, bookings.AuctionHold{
		Auction:   auction,
		GuestID:   winner.BidderID,
		BidID:     &winner.ID,
		Source:    model.SourceAuctionWin,
		Stay:      auction.Stay(),
		UnitPrice: winner.Amount,
	})
	if err != nil {
		return err
	}
	s.cfg.Log.Info("Auction ended with a winner",
		"auction_uid", auction.UID,
		"reason", reason,
		"winner_id", winner.BidderID,
		"amount", winner.Amount,
		"booking_id", booking.ID,
	)
	return nil
}

func (s *auctionService) CancelAuction(ctx context.Context, auctionUID, reason string) (*model.Auction, error) {
	reason = sanitizer.NormalizeNote(reason)
	var auction *model.Auction
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		auction, err = s.lock(ctx, auctionUID)
		if err != nil {
			return err
		}
		if !auction.Status.CanTransitionTo(model.AuctionCancelled) {
			return apperrors.AlreadyFinalized("Auction", string(auction.Status))
		}
		if err := s.finish(ctx, auction, model.AuctionCancelled, model.EndReasonCancelled, reason); err != nil {
			return err
		}
		_, err = s.ledger.ReleaseAuctionDays(ctx, auction.ID)
		return err
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to cancel auction", "auction_uid", auctionUID, "error", err)
		return nil, err
	}

	events.PublishAfterCommit(ctx, s.publisher, events.Event{Type: events.AuctionCancelled, Key: auction.UID, Payload: auction})
	s.cfg.Log.Info("Auction cancelled", "auction_uid", auction.UID, "note", reason)
	return auction, nil
}

// CloseExpired ends up to batch auctions whose window closed by now, one
// transaction each. Auctions leased by another closer are skipped, and a
// failing auction is left for the next run.
func (s *auctionService) CloseExpired(ctx context.Context, now time.Time, batch int) (int, error) {
	var failed []int64
	closed := 0
	for closed+len(failed) < batch {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		var auction *model.Auction
		err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
			var err error
			auction, err = s.repo.NextExpired(ctx, now, failed)
			if err != nil {
				return err
			}
			return s.end(ctx, auction, now)
		})
		switch {
		case err == nil:
			closed++
			s.publishEnded(ctx, auction)
		case errors.Is(err, auctionserrors.ErrNotFound):
			return closed, nil
		case auction != nil:
			s.cfg.Log.Error("Failed to close expired auction", "auction_uid", auction.UID, "error", err)
			failed = append(failed, auction.ID)
		default:
			return closed, err
		}
	}
	return closed, nil
}

func (s *auctionService) finish(ctx context.Context, auction *model.Auction, status model.AuctionStatus, reason model.EndReason, note string) error {
	if err := s.repo.MarkFinished(ctx, auction, status, reason, note, s.now()); err != nil {
		if errors.Is(err, auctionserrors.ErrNotActive) {
			return apperrors.AlreadyFinalized("Auction", string(auction.Status))
		}
		return apperrors.Internal("Failed to update auction status", err)
	}
	return nil
}

func (s *auctionService) publishEnded(ctx context.Context, auction *model.Auction) {
	events.PublishAfterCommit(ctx, s.publisher, events.Event{Type: events.AuctionEnded, Key: auction.UID, Payload: auction})
}

// lock takes the exclusive lease on the auction row.
func (s *auctionService) lock(ctx context.Context, uid string) (*model.Auction, error) {
	if uid == "" {
		return nil, apperrors.InvalidInput("Auction UID cannot be empty")
	}
	auction, err := s.repo.LockByUID(ctx, uid)
	if err != nil {
		if postgres.IsLockContention(err) {
			return nil, apperrors.LockContention(err)
		}
		return nil, s.translate(err, uid)
	}
	return auction, nil
}

func (s *auctionService) find(ctx context.Context, uid string) (*model.Auction, error) {
	if uid == "" {
		return nil, apperrors.InvalidInput("Auction UID cannot be empty")
	}
	auction, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, s.translate(err, uid)
	}
	return auction, nil
}

func (s *auctionService) translate(err error, uid string) error {
	if errors.Is(err, auctionserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Auction", uid)
	}
	return apperrors.Internal("Failed to retrieve auction", err)
}

func (s *auctionService) validate(req any) error {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Auction request validation failed", "error", err)
		return apperrors.Validation("Invalid auction request", map[string]any{"errors": err})
	}
	return nil
}

func parseStay(checkin, checkout string) (model.StayRange, error) {
	start, err := model.ParseDay(checkin)
	if err != nil {
		return model.StayRange{}, apperrors.InvalidInput("invalid checkin (expected YYYY-MM-DD): " + checkin)
	}
	end, err := model.ParseDay(checkout)
	if err != nil {
		return model.StayRange{}, apperrors.InvalidInput("invalid checkout (expected YYYY-MM-DD): " + checkout)
	}
	return calendar.StayOf(start, end)
}
