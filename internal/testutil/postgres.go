package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"staybid/pkg/db/postgres"
)

const EnvTestPostgresDSN = "STAYBID_TEST_POSTGRES_DSN"

// PostgresDB connects to the database named by STAYBID_TEST_POSTGRES_DSN and
// skips the test when it is unset.
func PostgresDB(t *testing.T) *postgres.DB {
	t.Helper()
	dsn := os.Getenv(EnvTestPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvTestPostgresDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, postgres.Options{DSN: dsn, MaxConns: 4, MinConns: 1, ConnTimeout: 5 * time.Second}, Config().Log.Logger)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}
