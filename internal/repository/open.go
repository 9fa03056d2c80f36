package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"account-balances/internal/repository/migrations"
)

// Options describes how to reach a SQL ledger.
type Options struct {
	Driver       string // DriverPostgres or DriverSQLite
	DSN          string // handed to sql.Open
	MigrationURL string // handed to golang-migrate; empty skips migrations
	MaxOpenConns int

	ConnectAttempts int
	RetryInterval   time.Duration
}

// Open connects to the database, applies migrations and returns a ready ledger.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*SQLLedger, error) {
	dialect, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	// Configure connection pool for better performance
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ping(ctx, db, opts, logger); err != nil {
		db.Close()
		return nil, err
	}

	if opts.MigrationURL != "" {
		if err := migrations.Up(opts.Driver, opts.MigrationURL); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("Successfully connected to database", "driver", opts.Driver)
	return NewSQLLedger(db, dialect, logger), nil
}

func ping(ctx context.Context, db *sql.DB, opts Options, logger *slog.Logger) error {
	attempts := max(opts.ConnectAttempts, 1)
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logger.Warn("Database not reachable, retrying",
			"driver", opts.Driver,
			"attempt", fmt.Sprintf("#%d / %d", attempt, attempts),
			"retry_in", interval,
			"error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("connect %s: %w", opts.Driver, ctx.Err())
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("connect %s after %d attempts: %w", opts.Driver, attempts, err)
}
