package service

import (
	"testing"
	"time"

	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
)

func TestPriceFor(t *testing.T) {
	defaults := model.DefaultParameters()

	tests := []struct {
		name          string
		base          int64
		mutate        func(*model.Parameters)
		wantStart     int64
		wantIncrement int64
	}{
		{"one million base", 1_000_000, nil, 700_000, 35_000},
		{"rounds half away from zero", 1_250_700, nil, 875_000, 44_000},
		{"increment floor applies", 10_000, nil, 7_000, 1_000},
		{"custom floor", 1_000_000, func(p *model.Parameters) { p.MinBidIncrement = 100_000 }, 700_000, 100_000},
		{"step of one", 999, func(p *model.Parameters) { p.PriceRoundingStep = 1; p.MinBidIncrement = 1 }, 699, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaults
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			got := PriceFor(tt.base, p)
			if got.StartingPrice != tt.wantStart || got.BidIncrement != tt.wantIncrement {
				t.Errorf("PriceFor(%d) = %+v, want start %d increment %d", tt.base, got, tt.wantStart, tt.wantIncrement)
			}
		})
	}
}

func TestCheckLeadTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)
	p := model.DefaultParameters()
	p.LeadTimeDays = 3

	if err := checkLeadTime(now, time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), p); err != nil {
		t.Errorf("exactly the lead time should pass, got %v", err)
	}

	err := checkLeadTime(now, time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC), p)
	if !apperrors.IsCode(err, apperrors.CodeLeadTimeViolation) {
		t.Fatalf("error = %v, want lead time violation", err)
	}
	if got := apperrors.AsAppError(err).Details["earliest_start"]; got != "2025-01-04" {
		t.Errorf("earliest_start = %v, want 2025-01-04", got)
	}

	p.LeadTimeDays = 0
	if err := checkLeadTime(now, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), p); err == nil {
		t.Error("a stay starting in the past must be rejected")
	}
}
