package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type PreviewRequest struct {
	UnitUID  string `json:"unitUid" validate:"required,max=64"`
	Checkin  string `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout string `json:"checkout" validate:"required,datetime=2006-01-02"`
}

type CreateRequest struct {
	UnitUID    string `json:"unitUid" validate:"required,max=64"`
	UserID     string `json:"userId" validate:"required,max=128"`
	Checkin    string `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout   string `json:"checkout" validate:"required,datetime=2006-01-02"`
	InitialBid bool   `json:"initialBid"`
}

// BidRequest may repeat the stay range the bidder saw. It must then match
// the auction's.
type BidRequest struct {
	UserID           string `json:"userId" validate:"required,max=128"`
	Amount           int64  `json:"amount"`
	Checkin          string `json:"checkin" validate:"omitempty,datetime=2006-01-02"`
	Checkout         string `json:"checkout" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethodRef string `json:"paymentMethodRef" validate:"max=128"`
}

type BuyNowRequest struct {
	UserID   string `json:"userId" validate:"required,max=128"`
	Checkin  string `json:"checkin" validate:"required,datetime=2006-01-02"`
	Checkout string `json:"checkout" validate:"required,datetime=2006-01-02"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AuctionValidator struct {
	validate *validator.Validate
}

func NewAuctionValidator() *AuctionValidator {
	return &AuctionValidator{validate: validator.New()}
}

func (v *AuctionValidator) Validate(req any) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translate(validationErrs)
		}
		return err
	}
	return nil
}

func translate(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		message := err.Error()
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD form", err.Field())
		}
		out = append(out, ValidationError{Field: err.Field(), Message: message})
	}
	return out
}
