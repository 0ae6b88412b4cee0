package consumer

import (
	"context"
	"errors"
	"testing"

	apperrors "staybid/pkg/errors"
	"staybid/pkg/kafka"
	"staybid/pkg/logger"
	"staybid/pkg/model"
)

type fakeSettler struct {
	confirmed []int64
	failed    []int64
	err       error
}

func (f *fakeSettler) ConfirmPayment(_ context.Context, id int64, _ string) (*model.Booking, error) {
	f.confirmed = append(f.confirmed, id)
	return &model.Booking{ID: id}, f.err
}

func (f *fakeSettler) FailPayment(_ context.Context, id int64, _ string) (*model.Booking, error) {
	f.failed = append(f.failed, id)
	return &model.Booking{ID: id}, f.err
}

func message(t *testing.T, eventType string, value any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("k").WithEventType(eventType).WithValue(value).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return msg
}

func TestHandle_RoutesByType(t *testing.T) {
	settler := &fakeSettler{}
	c := NewPaymentConsumer(settler, logger.Discard())
	ctx := context.Background()

	if err := c.Handle(ctx, message(t, "", PaymentResult{Type: PaymentSucceeded, BookingID: 1, PaymentMethodRef: "pm_1"})); err != nil {
		t.Fatalf("Handle(succeeded) error = %v", err)
	}
	if err := c.Handle(ctx, message(t, PaymentFailed, PaymentResult{BookingID: 2, Note: "card declined"})); err != nil {
		t.Fatalf("Handle(failed from header) error = %v", err)
	}
	if len(settler.confirmed) != 1 || settler.confirmed[0] != 1 || len(settler.failed) != 1 || settler.failed[0] != 2 {
		t.Errorf("confirmed = %v, failed = %v", settler.confirmed, settler.failed)
	}
}

func TestHandle_AlreadyFinalizedIsAcknowledged(t *testing.T) {
	settler := &fakeSettler{err: apperrors.AlreadyFinalized("Booking", "confirmed")}
	c := NewPaymentConsumer(settler, logger.Discard())

	if err := c.Handle(context.Background(), message(t, "", PaymentResult{Type: PaymentSucceeded, BookingID: 1})); err != nil {
		t.Errorf("redelivery should succeed, got %v", err)
	}
}

func TestHandle_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		msg  func(t *testing.T) kafka.Message
		err  error
		want kafka.ErrorType
	}{
		{"malformed", func(t *testing.T) kafka.Message { return kafka.Message{Value: []byte("{")} }, nil, kafka.ErrorTypePermanent},
		{"no booking", func(t *testing.T) kafka.Message { return message(t, "", PaymentResult{Type: PaymentSucceeded}) }, nil, kafka.ErrorTypePermanent},
		{"unknown type", func(t *testing.T) kafka.Message { return message(t, "", PaymentResult{Type: "payment.refunded", BookingID: 1}) }, nil, kafka.ErrorTypePermanent},
		{"lock contention", func(t *testing.T) kafka.Message { return message(t, "", PaymentResult{Type: PaymentSucceeded, BookingID: 1}) }, apperrors.LockContention(errors.New("55P03")), kafka.ErrorTypeTransient},
		{"missing booking", func(t *testing.T) kafka.Message { return message(t, "", PaymentResult{Type: PaymentFailed, BookingID: 1}) }, apperrors.NotFoundWithID("Booking", "1"), kafka.ErrorTypePermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPaymentConsumer(&fakeSettler{err: tt.err}, logger.Discard())
			err := c.Handle(context.Background(), tt.msg(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := kafka.ClassifyError(err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}
