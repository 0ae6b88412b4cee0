package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	bookingserrors "staybid/internal/bookings/errors"
	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/model"

	"github.com/uptrace/bun"
)

type BookingRepository interface {
	Create(ctx context.Context, b *model.Booking) error
	FindByID(ctx context.Context, id int64) (*model.Booking, error)
	FindPendingForAuction(ctx context.Context, auctionID int64, guestID string, source model.BookingSource) (*model.Booking, error)

	// Confirm moves a pending booking to confirmed. It reports false when the
	// booking was not pending.
	Confirm(ctx context.Context, id int64, paymentMethodRef string, now time.Time) (bool, error)
	// Transition moves the booking from one status to another only when it is
	// still in from.
	Transition(ctx context.Context, id int64, from, to model.BookingStatus, note string, now time.Time) (bool, error)
	UpdateHold(ctx context.Context, id int64, holdExpiresAt, now time.Time) error

	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error)
	CompleteFinished(ctx context.Context, today, now time.Time) ([]int64, error)

	ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error)
	CountByGuest(ctx context.Context, guestID string) (int64, error)
	AdminList(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error)
	Count(ctx context.Context, status model.BookingStatus) (int64, error)
}

type postgresBookingRepository struct {
	cfg *config.Config
	db  *bun.DB
}

func NewPostgresBookingRepository(cfg *config.Config, db *bun.DB) BookingRepository {
	return &postgresBookingRepository{cfg: cfg, db: db}
}

func (r *postgresBookingRepository) conn(ctx context.Context) bun.IDB {
	return postgres.Conn(ctx, r.db)
}

func (r *postgresBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if _, err := r.conn(ctx).NewInsert().Model(b).Returning("*").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	r.cfg.Log.Debug("Booking inserted", "type", "db", "booking_id", b.ID, "unit_id", b.UnitID, "source", b.Source)
	return nil
}

func (r *postgresBookingRepository) FindByID(ctx context.Context, id int64) (*model.Booking, error) {
	b := new(model.Booking)
	err := r.conn(ctx).NewSelect().Model(b).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", bookingserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

func (r *postgresBookingRepository) FindPendingForAuction(ctx context.Context, auctionID int64, guestID string, source model.BookingSource) (*model.Booking, error) {
	b := new(model.Booking)
	err := r.conn(ctx).NewSelect().
		Model(b).
		Where("auction_id = ?", auctionID).
		Where("guest_id = ?", guestID).
		Where("source = ?", source).
		Where("status = ?", model.BookingPending).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find pending booking: %w", err)
	}
	return b, nil
}

func (r *postgresBookingRepository) Confirm(ctx context.Context, id int64, paymentMethodRef string, now time.Time) (bool, error) {
	res, err := r.conn(ctx).NewUpdate().
		Model((*model.Booking)(nil)).
		Set("status = ?", model.BookingConfirmed).
		Set("payment_method_ref = ?", paymentMethodRef).
		Set("paid_at = ?", now).
		Set("hold_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", model.BookingPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to confirm booking: %w", err)
	}
	return affected(res)
}

func (r *postgresBookingRepository) Transition(ctx context.Context, id int64, from, to model.BookingStatus, note string, now time.Time) (bool, error) {
	q := r.conn(ctx).NewUpdate().
		Model((*model.Booking)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", from)
	if note != "" {
		q = q.Set("note = ?", note)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to move booking %d from %s to %s: %w", id, from, to, err)
	}
	return affected(res)
}

func (r *postgresBookingRepository) UpdateHold(ctx context.Context, id int64, holdExpiresAt, now time.Time) error {
	_, err := r.conn(ctx).NewUpdate().
		Model((*model.Booking)(nil)).
		Set("hold_expires_at = ?", holdExpiresAt).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", model.BookingPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to extend booking hold: %w", err)
	}
	return nil
}

func (r *postgresBookingRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]int64, error) {
	var ids []int64
	err := r.conn(ctx).NewSelect().
		Model((*model.Booking)(nil)).
		Column("id").
		Where("status = ?", model.BookingPending).
		Where("hold_expires_at < ?", now).
		Order("hold_expires_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired bookings: %w", err)
	}
	return ids, nil
}

// CompleteFinished marks confirmed stays that checked out by today as
// completed and returns their ids.
func (r *postgresBookingRepository) CompleteFinished(ctx context.Context, today, now time.Time) ([]int64, error) {
	var ids []int64
	_, err := r.conn(ctx).NewUpdate().
		Model((*model.Booking)(nil)).
		Set("status = ?", model.BookingCompleted).
		Set("updated_at = ?", now).
		Where("status = ?", model.BookingConfirmed).
		Where("stay_end <= ?", today).
		Returning("id").
		Exec(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to complete finished bookings: %w", err)
	}
	return ids, nil
}

func (r *postgresBookingRepository) ListByGuest(ctx context.Context, guestID string, limit int, offset int64) ([]*model.Booking, error) {
	var bookings []*model.Booking
	err := r.conn(ctx).NewSelect().
		Model(&bookings).
		Where("guest_id = ?", guestID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(int(offset)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings of guest %s: %w", guestID, err)
	}
	return bookings, nil
}

func (r *postgresBookingRepository) CountByGuest(ctx context.Context, guestID string) (int64, error) {
	n, err := r.conn(ctx).NewSelect().Model((*model.Booking)(nil)).Where("guest_id = ?", guestID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings of guest %s: %w", guestID, err)
	}
	return int64(n), nil
}

func (r *postgresBookingRepository) AdminList(ctx context.Context, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error) {
	var bookings []*model.Booking
	q := r.conn(ctx).NewSelect().
		Model(&bookings).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(int(offset))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

func (r *postgresBookingRepository) Count(ctx context.Context, status model.BookingStatus) (int64, error) {
	q := r.conn(ctx).NewSelect().Model((*model.Booking)(nil))
	if status != "" {
		q = q.Where("status = ?", status)
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return int64(n), nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}
