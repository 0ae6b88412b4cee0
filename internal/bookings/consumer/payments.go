// Package consumer applies payment provider results to bookings.
package consumer

import (
	"context"
	"fmt"

	apperrors "staybid/pkg/errors"
	"staybid/pkg/kafka"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

const (
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
)

type PaymentResult struct {
	Type             string `json:"type"`
	BookingID        int64  `json:"bookingId"`
	PaymentMethodRef string `json:"paymentMethodRef"`
	Note             string `json:"note"`
}

type PaymentSettler interface {
	ConfirmPayment(ctx context.Context, id int64, paymentMethodRef string) (*model.Booking, error)
	FailPayment(ctx context.Context, id int64, note string) (*model.Booking, error)
}

type PaymentConsumer struct {
	bookings PaymentSettler
	log      *logger.Logger
}

func NewPaymentConsumer(bookings PaymentSettler, log *logger.Logger) *PaymentConsumer {
	return &PaymentConsumer{bookings: bookings, log: log.Component("payment-consumer", logger.TypeSys)}
}

// Handle is the kafka.MessageHandler for the payment results topic. A
// redelivered result for a booking that is already settled is acknowledged.
func (c *PaymentConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var result PaymentResult
	if err := msg.DecodeValue(&result); err != nil {
		return kafka.NewPermanentError("malformed payment result", err)
	}
	if result.Type == "" {
		result.Type = msg.GetEventType()
	}
	if result.BookingID <= 0 {
		return kafka.NewPermanentError(fmt.Sprintf("payment result without booking id (offset %d)", msg.Offset), nil)
	}

	var err error
	switch result.Type {
	case PaymentSucceeded:
		_, err = c.bookings.ConfirmPayment(ctx, result.BookingID, result.PaymentMethodRef)
	case PaymentFailed:
		_, err = c.bookings.FailPayment(ctx, result.BookingID, result.Note)
	default:
		return kafka.NewPermanentError("unknown payment result type: "+result.Type, nil)
	}

	if apperrors.IsCode(err, apperrors.CodeAlreadyFinalized) {
		c.log.Info("Payment result already applied", "booking_id", result.BookingID, "type", result.Type)
		return nil
	}
	if err != nil {
		return err
	}
	c.log.Info("Payment result applied", "booking_id", result.BookingID, "type", result.Type)
	return nil
}
