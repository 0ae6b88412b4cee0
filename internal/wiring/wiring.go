// Package wiring assembles the services shared by the reservations API and
// the standalone worker binary.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"time"

	auctionsrepo "staybid/internal/auctions/repository"
	"staybid/internal/auctions/scheduler"
	auctions "staybid/internal/auctions/service"
	auctionsvalidator "staybid/internal/auctions/validator"
	"staybid/internal/bookings/consumer"
	bookingsrepo "staybid/internal/bookings/repository"
	bookings "staybid/internal/bookings/service"
	bookingsvalidator "staybid/internal/bookings/validator"
	calendarrepo "staybid/internal/calendar/repository"
	calendar "staybid/internal/calendar/service"
	"staybid/internal/events"
	paramsrepo "staybid/internal/parameters/repository"
	params "staybid/internal/parameters/service"
	paramsvalidator "staybid/internal/parameters/validator"
	"staybid/internal/sweeper"
	"staybid/internal/units"
	"staybid/pkg/app"
	"staybid/pkg/config"
	"staybid/pkg/contracts"
	"staybid/pkg/db/postgres"
	"staybid/pkg/kafka"
	kafkamw "staybid/pkg/kafka/middleware"
	"staybid/pkg/logger"
)

const (
	catalogTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

type Services struct {
	TxManager  postgres.TransactionManager
	Parameters params.ParameterService
	Catalog    units.Catalog
	Ledger     calendar.Ledger
	Bookings   bookings.BookingService
	Auctions   auctions.AuctionService
	Sweeper    *sweeper.Sweeper
	Closer     *scheduler.Closer
	Publisher  events.Publisher

	closers []func() error
}

// Build wires repositories and services over the connected clients.
func Build(cfg *config.Config) (*Services, error) {
	db := cfg.Client.Postgres.Bun()
	s := &Services{TxManager: postgres.NewTransactionManager(db, cfg.DBLockTimeout)}

	var paramRepo paramsrepo.ParameterRepository
	switch cfg.ParameterStoreBackend {
	case config.BackendMongo:
		paramRepo = paramsrepo.NewMongoParameterRepository(cfg, cfg.Client.Mongo)
	default:
		paramRepo = paramsrepo.NewPostgresParameterRepository(cfg, db)
	}
	s.Parameters = params.NewParameterService(paramRepo, paramsvalidator.NewParameterValidator(), cfg)

	var source units.Source
	switch cfg.UnitCatalogBackend {
	case config.BackendHTTP:
		source = units.NewHTTPSource(cfg.CatalogBaseURL, catalogTimeout)
	default:
		source = units.NewPostgresSource(db)
	}
	catalog, err := units.NewCachedCatalog(source, cfg.UnitCacheSize, cfg.UnitCacheTTL, cfg.Log.Component("units", logger.TypeDB))
	if err != nil {
		return nil, fmt.Errorf("failed to build unit catalog: %w", err)
	}
	s.Catalog = catalog

	publisher, err := s.buildPublisher(cfg)
	if err != nil {
		return nil, err
	}
	s.Publisher = publisher

	auctionRepo := auctionsrepo.NewPostgresAuctionRepository(cfg, db)
	s.Ledger = calendar.NewLedger(calendarrepo.NewPostgresCalendarRepository(cfg, db), s.TxManager, s.Catalog, auctionRepo, cfg)
	s.Bookings = bookings.NewBookingService(
		bookingsrepo.NewPostgresBookingRepository(cfg, db),
		s.Ledger,
		s.TxManager,
		s.Catalog,
		s.Parameters,
		s.Publisher,
		bookingsvalidator.NewBookingValidator(),
		cfg,
	)
	s.Auctions = auctions.NewAuctionService(
		auctionRepo,
		s.Ledger,
		s.Bookings,
		s.TxManager,
		s.Catalog,
		s.Parameters,
		s.Publisher,
		auctionsvalidator.NewAuctionValidator(),
		cfg,
	)
	s.Sweeper = sweeper.New(s.Ledger, s.Bookings, s.TxManager, cfg)
	s.Closer = scheduler.NewCloser(s.Auctions, cfg)

	cfg.Log.Info("Services initialized",
		"parameter_store", cfg.ParameterStoreBackend,
		"unit_catalog", cfg.UnitCatalogBackend,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	return s, nil
}

func (s *Services) buildPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.KafkaEnabled {
		return events.NewNoopPublisher(), nil
	}

	log := cfg.Log.Component("events", logger.TypeSys)
	auctionProducer, err := kafka.NewProducer(cfg.Kafka, cfg.KafkaAuctionTopic, cfg.KafkaDLQTopic, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create auction producer: %w", err)
	}
	bookingProducer, err := kafka.NewProducer(cfg.Kafka, cfg.KafkaBookingTopic, cfg.KafkaDLQTopic, log)
	if err != nil {
		_ = auctionProducer.Close()
		return nil, fmt.Errorf("failed to create booking producer: %w", err)
	}
	if cfg.Kafka.EnableMiddleware {
		auctionProducer.Use(kafkamw.LoggingProducerMiddleware(log))
		bookingProducer.Use(kafkamw.LoggingProducerMiddleware(log))
	}

	publisher := events.NewKafkaPublisher(auctionProducer, bookingProducer, publishTimeout, log)
	s.closers = append(s.closers, publisher.Close)
	return publisher, nil
}

// PaymentWorker consumes payment results. It returns nil when Kafka is off.
func (s *Services) PaymentWorker(cfg *config.Config) (contracts.Worker, error) {
	if !cfg.KafkaEnabled {
		return nil, nil
	}

	log := cfg.Log.Component("payments", logger.TypeSys)
	handler := consumer.NewPaymentConsumer(s.Bookings, log)
	c, err := kafka.NewConsumer(cfg.Kafka, cfg.KafkaPaymentTopic, cfg.KafkaPaymentGroupID, cfg.KafkaDLQTopic, handler.Handle, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment consumer: %w", err)
	}
	if cfg.Kafka.EnableMiddleware {
		c.Use(kafkamw.LoggingConsumerMiddleware(log))
	}
	s.closers = append(s.closers, c.Close)

	return contracts.WorkerFunc(func(ctx context.Context) {
		if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Payment consumer stopped", "error", err)
		}
	}), nil
}

// RegisterWorkers adds the closer, the sweeper and, when enabled, the payment
// consumer to application.
func (s *Services) RegisterWorkers(cfg *config.Config, application *app.Application) error {
	closer := s.Closer.Worker()
	application.AddWorker(closer.Name, closer)
	sweep := s.Sweeper.Worker()
	application.AddWorker(sweep.Name, sweep)

	payments, err := s.PaymentWorker(cfg)
	if err != nil {
		return err
	}
	if payments != nil {
		application.AddWorker("payment-consumer", payments)
	}

	application.OnShutdown(s.Close)
	return nil
}

// HealthChecks lists the dependencies /ready pings.
func HealthChecks(cfg *config.Config) map[string]app.PingFunc {
	checks := map[string]app.PingFunc{
		"postgres": cfg.Client.Postgres.Ping,
	}
	if cfg.Client.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return cfg.Client.Mongo.Ping(ctx, nil) }
	}
	if cfg.Client.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return cfg.Client.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close flushes publishers and closes consumers, newest first.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
