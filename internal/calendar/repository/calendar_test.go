package repository_test

import (
	"context"
	"testing"
	"time"

	"staybid/internal/calendar/repository"
	schema "staybid/internal/migrations/postgres"
	"staybid/internal/testutil"
	"staybid/pkg/db/postgres"
	"staybid/pkg/model"
)

func TestPostgresCalendarRepository_RoundTrip(t *testing.T) {
	db := testutil.PostgresDB(t)
	cfg := testutil.Config()
	ctx := context.Background()
	if err := schema.InitializeSchema(ctx, db, cfg.Log); err != nil {
		t.Fatalf("InitializeSchema() error = %v", err)
	}

	repo := repository.NewPostgresCalendarRepository(cfg, db.Bun())
	tx := postgres.NewTransactionManager(db.Bun(), cfg.DBLockTimeout)
	unitID := 1_000_000 + time.Now().UnixNano()%1_000_000
	now := time.Now().UTC().Truncate(time.Second)
	start := model.DayOf(now).AddDate(0, 0, 30)

	blocked := model.NewStayRange(start, start.AddDate(0, 0, 3))
	held := model.NewStayRange(start.AddDate(0, 0, 5), start.AddDate(0, 0, 7))
	bookingID := unitID
	lapsed := now.Add(-time.Minute)

	err := tx.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := repo.LockUnit(ctx, unitID); err != nil {
			return err
		}
		if err := repo.UpsertRange(ctx, unitID, blocked, model.RangeStatus{Status: model.DayBlocked, LockReason: model.LockMaintenance}, now); err != nil {
			return err
		}
		return repo.UpsertRange(ctx, unitID, held, model.RangeStatus{
			Status:        model.DayReserved,
			LockReason:    model.LockBookingHold,
			BookingID:     &bookingID,
			HoldExpiresAt: &lapsed,
		}, now)
	})
	if err != nil {
		t.Fatalf("writing range: %v", err)
	}

	days, err := repo.FindRange(ctx, unitID, model.NewStayRange(blocked.Start, held.End))
	if err != nil {
		t.Fatalf("FindRange() error = %v", err)
	}
	if len(days) != 5 {
		t.Fatalf("FindRange() returned %d stored days, want 5", len(days))
	}
	if days[0].Status != model.DayBlocked || days[4].Status != model.DayReserved {
		t.Errorf("unexpected statuses: %s .. %s", days[0].Status, days[4].Status)
	}

	released, err := repo.ReleaseExpired(ctx, now)
	if err != nil {
		t.Fatalf("ReleaseExpired() error = %v", err)
	}
	var ours int
	for _, r := range released {
		if r.UnitID == unitID {
			ours++
			if r.BookingID == nil || *r.BookingID != bookingID {
				t.Errorf("released day lost its booking id: %+v", r)
			}
		}
	}
	if ours != 2 {
		t.Errorf("released %d held days, want 2", ours)
	}

	n, err := repo.ReleaseManualBlocks(ctx, unitID, blocked, now)
	if err != nil || n != 3 {
		t.Errorf("ReleaseManualBlocks() = %d, %v; want 3", n, err)
	}
	n, err = repo.ReleaseManualBlocks(ctx, unitID, blocked, now)
	if err != nil || n != 0 {
		t.Errorf("second ReleaseManualBlocks() = %d, %v; want 0", n, err)
	}
}

func TestPostgresCalendarRepository_RejectsInvalidCell(t *testing.T) {
	db := testutil.PostgresDB(t)
	cfg := testutil.Config()
	ctx := context.Background()
	if err := schema.InitializeSchema(ctx, db, cfg.Log); err != nil {
		t.Fatalf("InitializeSchema() error = %v", err)
	}

	repo := repository.NewPostgresCalendarRepository(cfg, db.Bun())
	unitID := 2_000_000 + time.Now().UnixNano()%1_000_000
	now := time.Now().UTC()
	start := model.DayOf(now).AddDate(0, 0, 40)

	// reserved without an expiry violates calendar_days_hold_expiry
	err := repo.UpsertRange(ctx, unitID, model.NewStayRange(start, start.AddDate(0, 0, 1)),
		model.RangeStatus{Status: model.DayReserved, LockReason: model.LockBookingHold}, now)
	if err == nil {
		t.Error("expected the hold expiry check to reject the row")
	}
}
