package service

import (
	"time"

	apperrors "staybid/pkg/errors"
	"staybid/pkg/model"
)

// Pricing is derived from the unit's nightly base price when an auction
// opens and is never recomputed. The increment is a fraction of the
// starting price, so a 1,000,000 base opens at 700,000 in steps of 35,000.
type Pricing struct {
	StartingPrice int64
	BidIncrement  int64
}

func PriceFor(basePrice int64, p model.Parameters) Pricing {
	start := model.RoundTo(float64(basePrice)*p.StartPriceFactor, p.PriceRoundingStep)
	increment := model.RoundTo(float64(start)*p.BidIncrementFactor, p.PriceRoundingStep)
	return Pricing{
		StartingPrice: start,
		BidIncrement:  max(increment, p.MinBidIncrement),
	}
}

// checkLeadTime requires stayStart to be at least LeadTimeDays after the
// UTC date of now.
func checkLeadTime(now, stayStart time.Time, p model.Parameters) error {
	today := model.DayOf(now)
	if model.DaysBetween(today, stayStart) >= p.LeadTimeDays && !stayStart.Before(today) {
		return nil
	}
	earliest := today.AddDate(0, 0, p.LeadTimeDays)
	return apperrors.LeadTimeViolation(p.LeadTimeDays, model.FormatDay(earliest))
}
