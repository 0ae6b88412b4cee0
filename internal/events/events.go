package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"staybid/pkg/db/postgres"
	"staybid/pkg/kafka"
	"staybid/pkg/logger"
)

const (
	AuctionCreated   = "auction.created"
	BidPlaced        = "auction.bid_placed"
	AuctionEnded     = "auction.ended"
	AuctionCancelled = "auction.cancelled"

	BookingHeld      = "booking.held"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingExpired   = "booking.expired"
	BookingCompleted = "booking.completed"
)

const (
	SchemaVersion = "1"
	Source        = "staybid"
)

// Event is a domain fact emitted after the state change it describes is
// committed. Key orders events of one aggregate on one partition.
type Event struct {
	Type    string
	Key     string
	Payload any
}

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublishAfterCommit hands event to p once the transaction in ctx commits.
// A rolled back transaction drops it.
func PublishAfterCommit(ctx context.Context, p Publisher, event Event) {
	postgres.AfterCommit(ctx, func() {
		p.Publish(context.WithoutCancel(ctx), event)
	})
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) {}

// KafkaPublisher routes auction.* events to the auction topic and the rest
// to the booking topic. Delivery is best effort: a failed publish is logged
// and never fails the operation that produced it.
type KafkaPublisher struct {
	auctions *kafka.Producer
	bookings *kafka.Producer
	timeout  time.Duration
	log      *logger.Logger
	wg       sync.WaitGroup
}

func NewKafkaPublisher(auctions, bookings *kafka.Producer, timeout time.Duration, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		auctions: auctions,
		bookings: bookings,
		timeout:  timeout,
		log:      log,
	}
}

func (p *KafkaPublisher) producerFor(eventType string) *kafka.Producer {
	if strings.HasPrefix(eventType, "auction.") {
		return p.auctions
	}
	return p.bookings
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	msg, err := kafka.NewMessage().
		WithKey(event.Key).
		WithValue(event.Payload).
		WithEventType(event.Type).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		Build()
	if err != nil {
		p.log.Error("Failed to build event", "event_type", event.Type, "key", event.Key, "error", err)
		return
	}

	producer := p.producerFor(event.Type)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		if err := producer.Publish(ctx, msg); err != nil {
			p.log.Warn("Failed to publish event",
				"event_type", event.Type,
				"key", event.Key,
				"topic", producer.Topic(),
				"error", err,
			)
		}
	}()
}

// Close waits for in-flight publishes and closes both producers.
func (p *KafkaPublisher) Close() error {
	p.wg.Wait()
	var firstErr error
	for _, producer := range []*kafka.Producer{p.auctions, p.bookings} {
		if err := producer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
