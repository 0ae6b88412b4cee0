package main

import (
	"staybid/internal/wiring"
	"staybid/pkg/app"
	"staybid/pkg/config"
)

const ServiceName = "reservations-workers"

// Runs the auction closer, the hold sweeper and the payment consumer without
// the HTTP API.
func main() {
	cfg := config.Load(ServiceName)
	cfg.SetClients()
	defer cfg.GracefulShutdown()

	services, err := wiring.Build(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize services", "error", err)
	}

	workers := app.NewApplication(cfg)
	if err := services.RegisterWorkers(cfg, workers); err != nil {
		cfg.Log.Fatal("Failed to configure background workers", "error", err)
	}

	cfg.Log.Info("Starting background workers")
	workers.RunWorkers()
}
