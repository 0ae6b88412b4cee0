package model

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

const (
	ParamLeadTimeDays       = "BidLeadTimeDays"
	ParamDurationDays       = "AuctionDurationDays"
	ParamStartPriceFactor   = "StartPriceFactor"
	ParamBidIncrementFactor = "BidIncrementFactor"
	ParamServiceFeeFactor   = "ServiceFeeFactor"
	ParamPaymentDeadline    = "PaymentDeadlineTime"
	ParamPriceRoundingStep  = "PriceRoundingStep"
	ParamMinBidIncrement    = "MinBidIncrement"
)

// ParameterEntry is one stored tunable. Values are kept as text.
type ParameterEntry struct {
	bun.BaseModel `bun:"table:system_parameters,alias:sp"`

	Name        string    `bun:"name,pk" bson:"name" json:"name"`
	Value       string    `bun:"value,notnull" bson:"value" json:"value"`
	Description string    `bun:"description,notnull,default:''" bson:"description" json:"description,omitempty"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" bson:"updated_at" json:"updated_at"`
}

// Parameters is a point-in-time snapshot of the tunables.
type Parameters struct {
	LeadTimeDays           int     `json:"leadTimeDays"`
	DurationDays           int     `json:"durationDays"`
	StartPriceFactor       float64 `json:"startPriceFactor"`
	BidIncrementFactor     float64 `json:"bidIncrementFactor"`
	ServiceFeeFactor       float64 `json:"serviceFeeFactor"`
	PaymentDeadlineMinutes int     `json:"paymentDeadlineMinutes"`
	PriceRoundingStep      int64   `json:"priceRoundingStep"`
	MinBidIncrement        int64   `json:"minBidIncrement"`
}

func DefaultParameters() Parameters {
	return Parameters{
		LeadTimeDays:           0,
		DurationDays:           5,
		StartPriceFactor:       0.7,
		BidIncrementFactor:     0.05,
		ServiceFeeFactor:       0,
		PaymentDeadlineMinutes: 30,
		PriceRoundingStep:      1000,
		MinBidIncrement:        1000,
	}
}

func (p Parameters) PaymentDeadline() time.Duration {
	return time.Duration(p.PaymentDeadlineMinutes) * time.Minute
}

// DefaultParameterEntries is the seed written by the migrations.
func DefaultParameterEntries() []ParameterEntry {
	d := DefaultParameters()
	return []ParameterEntry{
		{Name: ParamLeadTimeDays, Value: strconv.Itoa(d.LeadTimeDays), Description: "minimum days between today and stay start to open an auction"},
		{Name: ParamDurationDays, Value: strconv.Itoa(d.DurationDays), Description: "length of the bidding window in days"},
		{Name: ParamStartPriceFactor, Value: formatFactor(d.StartPriceFactor), Description: "starting price as a fraction of the nightly base price"},
		{Name: ParamBidIncrementFactor, Value: formatFactor(d.BidIncrementFactor), Description: "bid increment as a fraction of the nightly base price"},
		{Name: ParamServiceFeeFactor, Value: formatFactor(d.ServiceFeeFactor), Description: "service fee as a fraction of the booking amount"},
		{Name: ParamPaymentDeadline, Value: strconv.Itoa(d.PaymentDeadlineMinutes), Description: "minutes a guest has to pay for a held booking"},
		{Name: ParamPriceRoundingStep, Value: strconv.FormatInt(d.PriceRoundingStep, 10), Description: "derived prices are rounded to this step"},
		{Name: ParamMinBidIncrement, Value: strconv.FormatInt(d.MinBidIncrement, 10), Description: "floor for the derived bid increment"},
	}
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
