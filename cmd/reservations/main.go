package main

import (
	auctionshandler "staybid/internal/auctions/handler"
	bookingshandler "staybid/internal/bookings/handler"
	calendarhandler "staybid/internal/calendar/handler"
	parametershandler "staybid/internal/parameters/handler"
	"staybid/internal/wiring"
	"staybid/pkg/app"
	"staybid/pkg/config"
	"staybid/pkg/logger"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetClients()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")
	services, err := wiring.Build(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	api := cfg.Log.Component("http", logger.TypeAPI)
	serverApp := app.NewApplication(cfg)
	if err := serverApp.SetApp(
		app.NewHealthHandler(wiring.HealthChecks(cfg), api),
		auctionshandler.NewAuctionHandler(services.Auctions, api),
		bookingshandler.NewBookingHandler(services.Bookings, api),
		calendarhandler.NewCalendarHandler(services.Ledger, services.Catalog, services.Sweeper, api),
		parametershandler.NewParameterHandler(services.Parameters, api),
	); err != nil {
		cfg.Log.Fatal("Failed to configure HTTP server", "error", err)
	}
	if err := services.RegisterWorkers(cfg, serverApp); err != nil {
		cfg.Log.Fatal("Failed to configure background workers", "error", err)
	}

	serverApp.Run()
}
