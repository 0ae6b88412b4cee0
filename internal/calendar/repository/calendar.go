package repository

import (
	"context"
	"fmt"
	"time"

	"staybid/pkg/config"
	"staybid/pkg/db/postgres"
	"staybid/pkg/model"

	"github.com/uptrace/bun"
)

// CalendarRepository persists day-cells. Every method runs on the ambient
// transaction when ctx carries one.
type CalendarRepository interface {
	LockUnit(ctx context.Context, unitID int64) error
	FindRange(ctx context.Context, unitID int64, r model.StayRange) ([]model.CalendarDay, error)
	UpsertRange(ctx context.Context, unitID int64, r model.StayRange, status model.RangeStatus, now time.Time) error
	ReleaseExpired(ctx context.Context, now time.Time) ([]model.ReleasedHold, error)

	ReassignAuctionDays(ctx context.Context, auctionID int64, r model.StayRange, bookingID int64, holdExpiresAt, now time.Time) (int, error)
	ReleaseAuctionDays(ctx context.Context, auctionID int64, now time.Time) (int, error)
	FinalizeBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error)
	ReleaseBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error)
	ReleaseManualBlocks(ctx context.Context, unitID int64, r model.StayRange, now time.Time) (int, error)
}

type postgresCalendarRepository struct {
	cfg *config.Config
	db  *bun.DB
}

func NewPostgresCalendarRepository(cfg *config.Config, db *bun.DB) CalendarRepository {
	return &postgresCalendarRepository{cfg: cfg, db: db}
}

func (r *postgresCalendarRepository) LockUnit(ctx context.Context, unitID int64) error {
	return postgres.LockUnit(ctx, postgres.Conn(ctx, r.db), unitID)
}

func (r *postgresCalendarRepository) FindRange(ctx context.Context, unitID int64, stay model.StayRange) ([]model.CalendarDay, error) {
	var days []model.CalendarDay
	err := postgres.Conn(ctx, r.db).NewSelect().
		Model(&days).
		Where("unit_id = ?", unitID).
		Where("day >= ? AND day < ?", stay.Start, stay.End).
		Order("day ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar range: %w", err)
	}
	return days, nil
}

// UpsertRange writes every day of r in a single statement.
func (r *postgresCalendarRepository) UpsertRange(ctx context.Context, unitID int64, stay model.StayRange, status model.RangeStatus, now time.Time) error {
	days := stay.Days()
	if len(days) == 0 {
		return nil
	}

	cells := make([]model.CalendarDay, 0, len(days))
	for _, day := range days {
		cells = append(cells, model.CalendarDay{
			UnitID:        unitID,
			Day:           day,
			Status:        status.Status,
			LockReason:    status.LockReason,
			BookingID:     status.BookingID,
			AuctionID:     status.AuctionID,
			HoldExpiresAt: status.HoldExpiresAt,
			UpdatedAt:     now,
		})
	}

	_, err := postgres.Conn(ctx, r.db).NewInsert().
		Model(&cells).
		On("CONFLICT (unit_id, day) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("lock_reason = EXCLUDED.lock_reason").
		Set("booking_id = EXCLUDED.booking_id").
		Set("auction_id = EXCLUDED.auction_id").
		Set("hold_expires_at = EXCLUDED.hold_expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert calendar range %s for unit %d: %w", stay, unitID, err)
	}
	return nil
}

const releaseExpiredSQL = `
WITH expired AS (
	SELECT unit_id, day, booking_id
	FROM calendar_days
	WHERE status = 'reserved' AND hold_expires_at < ?0
	FOR UPDATE SKIP LOCKED
)
UPDATE calendar_days AS cd
SET status = 'available', lock_reason = '', booking_id = NULL, auction_id = NULL,
	hold_expires_at = NULL, updated_at = ?0
FROM expired
WHERE cd.unit_id = expired.unit_id AND cd.day = expired.day
	AND cd.status = 'reserved' AND cd.hold_expires_at < ?0
RETURNING expired.unit_id, expired.day, expired.booking_id`

// ReleaseExpired frees lapsed holds and reports the booking each day belonged to.
// Rows locked by a concurrent sweep are skipped rather than waited on.
func (r *postgresCalendarRepository) ReleaseExpired(ctx context.Context, now time.Time) ([]model.ReleasedHold, error) {
	var released []model.ReleasedHold
	if err := postgres.Conn(ctx, r.db).NewRaw(releaseExpiredSQL, now).Scan(ctx, &released); err != nil {
		return nil, fmt.Errorf("failed to release expired holds: %w", err)
	}
	if len(released) > 0 {
		r.cfg.Log.Info("Released expired calendar holds", "type", "db", "days", len(released))
	}
	return released, nil
}

func (r *postgresCalendarRepository) ReassignAuctionDays(ctx context.Context, auctionID int64, stay model.StayRange, bookingID int64, holdExpiresAt, now time.Time) (int, error) {
	res, err := postgres.Conn(ctx, r.db).NewUpdate().
		Model((*model.CalendarDay)(nil)).
		Set("status = ?", model.DayReserved).
		Set("lock_reason = ?", model.LockBookingHold).
		Set("booking_id = ?", bookingID).
		Set("auction_id = NULL").
		Set("hold_expires_at = ?", holdExpiresAt).
		Set("updated_at = ?", now).
		Where("auction_id = ?", auctionID).
		Where("status = ?", model.DayBlocked).
		Where("day >= ? AND day < ?", stay.Start, stay.End).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign auction %d days: %w", auctionID, err)
	}
	return rowsAffected(res)
}

func (r *postgresCalendarRepository) ReleaseAuctionDays(ctx context.Context, auctionID int64, now time.Time) (int, error) {
	q := r.release(ctx, now).
		Where("auction_id = ?", auctionID).
		Where("status = ?", model.DayBlocked).
		Where("lock_reason = ?", model.LockAuction)
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to release auction %d days: %w", auctionID, err)
	}
	return rowsAffected(res)
}

// FinalizeBookingDays turns the booking's held days into booked days.
func (r *postgresCalendarRepository) FinalizeBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error) {
	res, err := postgres.Conn(ctx, r.db).NewUpdate().
		Model((*model.CalendarDay)(nil)).
		Set("status = ?", model.DayBooked).
		Set("lock_reason = ?", model.LockBooking).
		Set("hold_expires_at = NULL").
		Set("updated_at = ?", now).
		Where("booking_id = ?", bookingID).
		Where("status = ?", model.DayReserved).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to finalize booking %d days: %w", bookingID, err)
	}
	return rowsAffected(res)
}

func (r *postgresCalendarRepository) ReleaseBookingDays(ctx context.Context, bookingID int64, now time.Time) (int, error) {
	res, err := r.release(ctx, now).
		Where("booking_id = ?", bookingID).
		Where("status IN (?)", bun.In([]model.DayStatus{model.DayReserved, model.DayBooked})).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to release booking %d days: %w", bookingID, err)
	}
	return rowsAffected(res)
}

func (r *postgresCalendarRepository) ReleaseManualBlocks(ctx context.Context, unitID int64, stay model.StayRange, now time.Time) (int, error) {
	res, err := r.release(ctx, now).
		Where("unit_id = ?", unitID).
		Where("day >= ? AND day < ?", stay.Start, stay.End).
		Where("status = ?", model.DayBlocked).
		Where("lock_reason IN (?)", bun.In([]model.LockReason{model.LockManual, model.LockMaintenance})).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to unblock unit %d range %s: %w", unitID, stay, err)
	}
	return rowsAffected(res)
}

func (r *postgresCalendarRepository) release(ctx context.Context, now time.Time) *bun.UpdateQuery {
	return postgres.Conn(ctx, r.db).NewUpdate().
		Model((*model.CalendarDay)(nil)).
		Set("status = ?", model.DayAvailable).
		Set("lock_reason = ?", model.LockNone).
		Set("booking_id = NULL").
		Set("auction_id = NULL").
		Set("hold_expires_at = NULL").
		Set("updated_at = ?", now)
}

type result interface {
	RowsAffected() (int64, error)
}

func rowsAffected(res result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}
