package main

import (
	"context"
	"time"

	mongoMigration "staybid/internal/migrations/mongo"
	postgresMigration "staybid/internal/migrations/postgres"
	"staybid/pkg/config"
	"staybid/pkg/logger"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	defer cfg.GracefulShutdown()
	log := cfg.Log.Component("migrate", logger.TypeDB)

	cfg.SetPostgres()
	log.Info("Starting Postgres migration")
	if err := postgresMigration.InitializeSchema(ctx, cfg.Client.Postgres, log); err != nil {
		log.Fatal("Postgres migration failed", "error", err)
	}

	if cfg.ParameterStoreBackend == config.BackendMongo {
		cfg.SetMongo()
		log.Info("Starting Mongo migration")
		if err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, log); err != nil {
			log.Fatal("Mongo migration failed", "error", err)
		}
	}

	log.Info("Migration completed successfully")
}
