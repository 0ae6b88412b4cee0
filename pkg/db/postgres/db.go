package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Options struct {
	DSN         string
	MaxConns    int
	MinConns    int
	ConnTimeout time.Duration
}

// DB pairs a pgx pool, used for pings and raw DDL, with a bun handle used by
// the repositories.
type DB struct {
	pool  *pgxpool.Pool
	bunDB *bun.DB
	log   *slog.Logger
}

func New(ctx context.Context, opts Options, log *slog.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.ConnTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = opts.ConnTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	driverOpts := []pgdriver.Option{pgdriver.WithDSN(opts.DSN)}
	if opts.ConnTimeout > 0 {
		driverOpts = append(driverOpts, pgdriver.WithDialTimeout(opts.ConnTimeout))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(driverOpts...))
	if opts.MaxConns > 0 {
		sqldb.SetMaxOpenConns(opts.MaxConns)
	}

	return &DB{
		pool:  pool,
		bunDB: bun.NewDB(sqldb, pgdialect.New()),
		log:   log,
	}, nil
}

// FromBun wraps an existing bun handle. Used by tests that bring their own
// connection.
func FromBun(bunDB *bun.DB, log *slog.Logger) *DB {
	return &DB{bunDB: bunDB, log: log}
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Bun() *bun.DB {
	return db.bunDB
}

func (db *DB) ExecWithLog(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if db.pool == nil {
		_, err := db.bunDB.ExecContext(ctx, query, args...)
		return pgconn.CommandTag{}, err
	}

	start := time.Now()
	result, err := db.pool.Exec(ctx, query, args...)
	took := time.Since(start)

	if err != nil {
		db.log.Error("Query failed",
			slog.String("type", "db"),
			slog.String("operation", "exec"),
			slog.String("query", query),
			slog.Duration("took", took),
			slog.Any("error", err),
		)
		return result, err
	}

	db.log.Debug("Query executed",
		slog.String("type", "db"),
		slog.String("operation", "exec"),
		slog.String("query", query),
		slog.Duration("took", took),
		slog.Int64("affected_rows", result.RowsAffected()),
	)
	return result, nil
}

// Ping verifies both connections are working.
func (db *DB) Ping(ctx context.Context) error {
	if db.pool != nil {
		if err := db.pool.Ping(ctx); err != nil {
			return fmt.Errorf("pgxpool ping failed: %w", err)
		}
	}
	if err := db.bunDB.PingContext(ctx); err != nil {
		return fmt.Errorf("bun ping failed: %w", err)
	}
	return nil
}

func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
	if db.bunDB != nil {
		db.bunDB.Close()
	}
}
