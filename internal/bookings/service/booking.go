package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "staybid/internal/bookings/errors"
	"staybid/internal/bookings/repository"
	"staybid/internal/bookings/validator"
	calendar "staybid/internal/calendar/service"
	"staybid/internal/events"
	"staybid/internal/units"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
	"staybid/pkg/sanitizer"

	"golang.org/x/sync/errgroup"
)

type ParameterSource interface {
	GetParameters(ctx context.Context) (model.Parameters, error)
}

// Draft is the result of a direct booking hold.
type Draft struct {
	BookingID     int64     `json:"bookingId"`
	HoldExpiresAt time.Time `json:"holdExpiresAt"`
	Amount        int64     `json:"amount"`
	ServiceFee    int64     `json:"serviceFee"`
	Currency      string    `json:"currency"`
}

// AuctionHold asks for a pending booking over days an auction currently blocks.
type AuctionHold struct {
	Auction   *model.Auction
	GuestID   string
	BidID     *int64
	Source    model.BookingSource
	Stay      model.StayRange
	UnitPrice int64
}

type BookingService interface {
	PlaceDraft(ctx context.Context, req *validator.PlaceRequest) (*Draft, error)
	HoldForAuction(ctx context.Context, hold AuctionHold) (*model.Booking, error)
	ConfirmPayment(ctx context.Context, id int64, paymentMethodRef string) (*model.Booking, error)
	FailPayment(ctx context.Context, id int64, note string) (*model.Booking, error)

	Expire(ctx context.Context, id int64) (bool, error)
	ExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error)
	CompleteFinished(ctx context.Context, now time.Time) (int, error)

	GetByID(ctx context.Context, id int64) (*model.Booking, error)
	ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, int64, error)
	AdminList(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	ledger    calendar.Ledger
	txManager postgres.TransactionManager
	catalog   units.Catalog
	params    ParameterSource
	publisher events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

type Option func(*bookingService)

func WithClock(now func() time.Time) Option {
	return func(s *bookingService) { s.now = now }
}

func NewBookingService(
	repo repository.BookingRepository,
	ledger calendar.Ledger,
	txManager postgres.TransactionManager,
	catalog units.Catalog,
	params ParameterSource,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
	opts ...Option,
) BookingService {
	s := &bookingService{
		repo:      repo,
		ledger:    ledger,
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

func (s *bookingService) PlaceDraft(ctx context.Context, req *validator.PlaceRequest) (*Draft, error) {
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Invalid booking request", map[string]any{"errors": err})
	}
	stay, err := parseStay(req.Checkin, req.Checkout)
	if err != nil {
		return nil, err
	}

	params, err := s.params.GetParameters(ctx)
	if err != nil {
		return nil, err
	}
	holdMinutes := req.HoldMinutes
	if holdMinutes == 0 {
		holdMinutes = params.PaymentDeadlineMinutes
	}
	if holdMinutes < 1 || holdMinutes > s.cfg.MaxHoldMinutes {
		return nil, apperrors.InvalidInput(fmt.Sprintf("holdMinutes must be between 1 and %d", s.cfg.MaxHoldMinutes))
	}

	unit, err := s.catalog.FindByUID(ctx, req.UnitUID)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.EnsureRangeFree(ctx, unit.ID, stay); err != nil {
		return nil, err
	}

	now := s.now()
	holdExpiresAt := now.Add(time.Duration(holdMinutes) * time.Minute)
	amount := model.StayPrice(unit.BasePrice, stay.Nights())
	booking := &model.Booking{
		GuestID:       req.GuestID,
		UnitID:        unit.ID,
		StayStart:     stay.Start,
		StayEnd:       stay.End,
		Nights:        stay.Nights(),
		UnitPrice:     unit.BasePrice,
		Amount:        amount,
		ServiceFee:    model.ServiceFee(amount, params.ServiceFeeFactor),
		Currency:      unit.Currency,
		Source:        model.SourceDirect,
		Status:        model.BookingPending,
		HoldExpiresAt: &holdExpiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.ledger.LockUnit(ctx, unit.ID); err != nil {
			return err
		}
		if err := s.ledger.EnsureRangeFree(ctx, unit.ID, stay); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		if err := s.ledger.SetRangeStatus(ctx, unit.ID, stay.Start, stay.End, model.RangeStatus{
			Status:        model.DayReserved,
			LockReason:    model.LockBookingHold,
			BookingID:     &booking.ID,
			HoldExpiresAt: &holdExpiresAt,
		}); err != nil {
			return err
		}
		s.publish(ctx, events.BookingHeld, booking)
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to place booking", "unit_uid", req.UnitUID, "range", stay.String(), "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking hold placed",
		"booking_id", booking.ID,
		"unit_id", unit.ID,
		"range", stay.String(),
		"hold_expires_at", holdExpiresAt,
	)
	return &Draft{
		BookingID:     booking.ID,
		HoldExpiresAt: holdExpiresAt,
		Amount:        booking.Amount,
		ServiceFee:    booking.ServiceFee,
		Currency:      booking.Currency,
	}, nil
}

// HoldForAuction converts auction-blocked days into a payment hold for the
// guest. It joins the caller's transaction, which must already hold the
// auction lease.
func (s *bookingService) HoldForAuction(ctx context.Context, hold AuctionHold) (*model.Booking, error) {
	params, err := s.params.GetParameters(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	holdExpiresAt := now.Add(params.PaymentDeadline())

	var booking *model.Booking
	err = s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindPendingForAuction(ctx, hold.Auction.ID, hold.GuestID, hold.Source)
		switch {
		case err == nil && existing.Stay().Equal(hold.Stay):
			if err := s.repo.UpdateHold(ctx, existing.ID, holdExpiresAt, now); err != nil {
				return apperrors.Internal("Failed to extend booking hold", err)
			}
			existing.HoldExpiresAt = &holdExpiresAt
			booking = existing
			if err := s.ledger.SetRangeStatus(ctx, hold.Auction.UnitID, hold.Stay.Start, hold.Stay.End, model.RangeStatus{
				Status:        model.DayReserved,
				LockReason:    model.LockBookingHold,
				BookingID:     &existing.ID,
				HoldExpiresAt: &holdExpiresAt,
			}); err != nil {
				return err
			}
			return nil
		case err != nil && !errors.Is(err, bookingserrors.ErrNotFound):
			return apperrors.Internal("Failed to look up pending booking", err)
		}

		amount := model.StayPrice(hold.UnitPrice, hold.Stay.Nights())
		booking = &model.Booking{
			BidID:         hold.BidID,
			AuctionID:     &hold.Auction.ID,
			GuestID:       hold.GuestID,
			UnitID:        hold.Auction.UnitID,
			StayStart:     hold.Stay.Start,
			StayEnd:       hold.Stay.End,
			Nights:        hold.Stay.Nights(),
			UnitPrice:     hold.UnitPrice,
			Amount:        amount,
			ServiceFee:    model.ServiceFee(amount, params.ServiceFeeFactor),
			Currency:      hold.Auction.Currency,
			Source:        hold.Source,
			Status:        model.BookingPending,
			HoldExpiresAt: &holdExpiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repo.Create(ctx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		n, err := s.ledger.ReassignAuctionDays(ctx, hold.Auction.ID, hold.Stay, booking.ID, holdExpiresAt)
		if err != nil {
			return err
		}
		if n != hold.Stay.Nights() {
			return apperrors.RangeConflict(fmt.Sprintf("auction %s no longer holds %s", hold.Auction.UID, hold.Stay)).
				WithDetails(map[string]any{"held_days": n, "nights": hold.Stay.Nights()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.BookingHeld, booking)
	s.cfg.Log.Info("Auction booking hold placed",
		"booking_id", booking.ID,
		"auction_uid", hold.Auction.UID,
		"source", hold.Source,
		"hold_expires_at", holdExpiresAt,
	)
	return booking, nil
}

// ConfirmPayment settles a pending booking and books its held days. A hold
// the sweeper already released cannot be confirmed.
func (s *bookingService) ConfirmPayment(ctx context.Context, id int64, paymentMethodRef string) (*model.Booking, error) {
	if paymentMethodRef == "" {
		return nil, apperrors.InvalidInput("paymentMethodRef is required")
	}

	var booking *model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Confirm(ctx, id, paymentMethodRef, s.now())
		if err != nil {
			return apperrors.Internal("Failed to confirm booking", err)
		}
		if !ok {
			return s.transitionFailure(ctx, id)
		}

		booking, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return s.translate(err, id)
		}
		n, err := s.ledger.FinalizeBookingDays(ctx, id)
		if err != nil {
			return err
		}
		if n != booking.Nights {
			return apperrors.RangeConflict(fmt.Sprintf("%s for booking %d", bookingserrors.ErrHoldReleased, id)).
				WithDetails(map[string]any{"held_days": n, "nights": booking.Nights})
		}
		s.publish(ctx, events.BookingConfirmed, booking)
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to confirm booking payment", "booking_id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking payment confirmed", "booking_id", id, "unit_id", booking.UnitID)
	return booking, nil
}

func (s *bookingService) FailPayment(ctx context.Context, id int64, note string) (*model.Booking, error) {
	note = sanitizer.NormalizeNote(note)
	var booking *model.Booking
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Transition(ctx, id, model.BookingPending, model.BookingCancelled, note, s.now())
		if err != nil {
			return apperrors.Internal("Failed to cancel booking", err)
		}
		if !ok {
			return s.transitionFailure(ctx, id)
		}
		if _, err := s.ledger.ReleaseBookingDays(ctx, id); err != nil {
			return err
		}
		booking, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return s.translate(err, id)
		}
		s.publish(ctx, events.BookingCancelled, booking)
		return nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to record payment failure", "booking_id", id, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Booking cancelled after payment failure", "booking_id", id, "note", note)
	return booking, nil
}

// Expire moves a pending booking to expired and frees any day still held
// for it. It reports false when the booking was no longer pending.
func (s *bookingService) Expire(ctx context.Context, id int64) (bool, error) {
	var expired bool
	err := s.txManager.ExecuteTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Transition(ctx, id, model.BookingPending, model.BookingExpired, "", s.now())
		if err != nil {
			return apperrors.Internal("Failed to expire booking", err)
		}
		if !ok {
			return nil
		}
		if _, err := s.ledger.ReleaseBookingDays(ctx, id); err != nil {
			return err
		}
		expired = true
		s.publish(ctx, events.BookingExpired, map[string]any{"bookingId": id})
		return nil
	})
	return expired, err
}

func (s *bookingService) ExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	ids, err := s.repo.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to list expired bookings", err)
	}
	return ids, nil
}

func (s *bookingService) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.repo.CompleteFinished(ctx, model.DayOf(now), now)
	if err != nil {
		return 0, apperrors.Internal("Failed to complete finished bookings", err)
	}
	for _, id := range ids {
		s.publish(ctx, events.BookingCompleted, map[string]any{"bookingId": id})
	}
	return len(ids), nil
}

func (s *bookingService) GetByID(ctx context.Context, id int64) (*model.Booking, error) {
	if id <= 0 {
		return nil, apperrors.InvalidInput("Booking ID must be positive")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return booking, nil
}

func (s *bookingService) ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if guestID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}
	return s.page(ctx,
		func(ctx context.Context) ([]*model.Booking, error) { return s.repo.ListByGuest(ctx, guestID, limit, offset) },
		func(ctx context.Context) (int64, error) { return s.repo.CountByGuest(ctx, guestID) },
	)
}

func (s *bookingService) AdminList(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown booking status: %s", status))
	}
	return s.page(ctx,
		func(ctx context.Context) ([]*model.Booking, error) { return s.repo.AdminList(ctx, status, limit, offset) },
		func(ctx context.Context) (int64, error) { return s.repo.Count(ctx, status) },
	)
}

func (s *bookingService) page(
	ctx context.Context,
	list func(context.Context) ([]*model.Booking, error),
	count func(context.Context) (int64, error),
) ([]*model.Booking, int64, error) {
	var bookings []*model.Booking
	var total int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bookings, err = list(gctx)
		if err != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", err)
			return apperrors.Internal("Failed to retrieve bookings", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		total, err = count(gctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			return apperrors.Internal("Failed to count bookings", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// transitionFailure explains why a guarded update on a pending booking
// touched nothing.
func (s *bookingService) transitionFailure(ctx context.Context, id int64) error {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.translate(err, id)
	}
	return apperrors.AlreadyFinalized("Booking", string(booking.Status))
}

func (s *bookingService) translate(err error, id int64) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", fmt.Sprint(id))
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) publish(ctx context.Context, eventType string, payload any) {
	key := ""
	if b, ok := payload.(*model.Booking); ok {
		key = fmt.Sprint(b.ID)
	} else if m, ok := payload.(map[string]any); ok {
		key = fmt.Sprint(m["bookingId"])
	}
	events.PublishAfterCommit(ctx, s.publisher, events.Event{Type: eventType, Key: key, Payload: payload})
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
