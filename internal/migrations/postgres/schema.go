package postgres

import (
	"context"
	"fmt"
	"staybid/pkg/db/postgres"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

var tables = []any{
	(*model.Unit)(nil),
	(*model.ParameterEntry)(nil),
	(*model.Auction)(nil),
	(*model.Bid)(nil),
	(*model.Booking)(nil),
	(*model.CalendarDay)(nil),
}

type constraint struct {
	table string
	name  string
	def   string
}

var constraints = []constraint{
	{"auctions", "auctions_stay_valid", "CHECK (stay_end > stay_start)"},
	{"auctions", "auctions_window_valid", "CHECK (end_time > start_time)"},
	{"auctions", "auctions_status_valid", "CHECK (status IN ('active', 'ended', 'cancelled'))"},
	{"auctions", "auctions_no_active_overlap",
		"EXCLUDE USING gist (unit_id WITH =, daterange(stay_start, stay_end, '[)') WITH &&) WHERE (status = 'active')"},
	{"bids", "bids_auction_fk", "FOREIGN KEY (auction_id) REFERENCES auctions (id)"},
	{"bids", "bids_amount_positive", "CHECK (amount > 0)"},
	{"bookings", "bookings_stay_valid", "CHECK (stay_end > stay_start AND nights > 0)"},
	{"bookings", "bookings_status_valid",
		"CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed', 'expired'))"},
	{"bookings", "bookings_confirmed_paid",
		"CHECK (status <> 'confirmed' OR (payment_method_ref IS NOT NULL AND paid_at IS NOT NULL))"},
	{"calendar_days", "calendar_days_status_valid",
		"CHECK (status IN ('available', 'reserved', 'blocked', 'booked'))"},
	{"calendar_days", "calendar_days_hold_expiry",
		"CHECK ((status <> 'reserved' OR hold_expires_at IS NOT NULL) AND (status NOT IN ('booked', 'blocked') OR hold_expires_at IS NULL))"},
	{"calendar_days", "calendar_days_single_ref", "CHECK (booking_id IS NULL OR auction_id IS NULL)"},
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_auctions_unit_status ON auctions(unit_id, status);",
	"CREATE INDEX IF NOT EXISTS idx_auctions_active_end_time ON auctions(end_time) WHERE status = 'active';",
	"CREATE INDEX IF NOT EXISTS idx_auctions_province ON auctions(province_code, status, end_time);",
	"CREATE INDEX IF NOT EXISTS idx_auctions_district ON auctions(district_code, status, end_time);",
	"CREATE INDEX IF NOT EXISTS idx_bids_auction ON bids(auction_id, created_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder_id, created_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_bookings_guest ON bookings(guest_id, created_at DESC);",
	"CREATE INDEX IF NOT EXISTS idx_bookings_pending_hold ON bookings(hold_expires_at) WHERE status = 'pending';",
	"CREATE INDEX IF NOT EXISTS idx_bookings_confirmed_stay_end ON bookings(stay_end) WHERE status = 'confirmed';",
	"CREATE INDEX IF NOT EXISTS idx_bookings_auction ON bookings(auction_id) WHERE auction_id IS NOT NULL;",
	"CREATE INDEX IF NOT EXISTS idx_calendar_days_reserved_hold ON calendar_days(hold_expires_at) WHERE status = 'reserved';",
	"CREATE INDEX IF NOT EXISTS idx_calendar_days_booking ON calendar_days(booking_id) WHERE booking_id IS NOT NULL;",
	"CREATE INDEX IF NOT EXISTS idx_calendar_days_auction ON calendar_days(auction_id) WHERE auction_id IS NOT NULL;",
}

// InitializeSchema creates tables, constraints, indexes and the default
// parameters. Every step is idempotent.
func InitializeSchema(ctx context.Context, db *postgres.DB, log *logger.Logger) error {
	if _, err := db.ExecWithLog(ctx, "CREATE EXTENSION IF NOT EXISTS btree_gist;"); err != nil {
		return fmt.Errorf("failed to enable btree_gist: %w", err)
	}

	for _, m := range tables {
		if _, err := db.Bun().NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	for _, c := range constraints {
		if _, err := db.ExecWithLog(ctx, addConstraintSQL(c)); err != nil {
			return fmt.Errorf("failed to add constraint %s: %w", c.name, err)
		}
	}

	for _, idx := range indexes {
		if _, err := db.ExecWithLog(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	seed := model.DefaultParameterEntries()
	if _, err := db.Bun().NewInsert().Model(&seed).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("failed to seed parameters: %w", err)
	}

	log.Info("Postgres schema is up to date",
		"tables", len(tables),
		"constraints", len(constraints),
		"indexes", len(indexes),
	)
	return nil
}

func addConstraintSQL(c constraint) string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
		ALTER TABLE %s ADD CONSTRAINT %s %s;
	END IF;
END $$;`, c.name, c.table, c.name, c.def)
}
