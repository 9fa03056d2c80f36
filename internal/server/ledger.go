package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"account-balances/internal/config"
	"account-balances/internal/domain"
	"account-balances/internal/repository"
	"account-balances/internal/repository/memory"
	"account-balances/internal/repository/redisstore"
)

const (
	connectAttempts = 5
	retryInterval   = 2 * time.Second
)

// OpenLedger builds the ledger store selected by cfg.StoreDriver. The caller
// owns the result and must Close it.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.LedgerStore, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		return repository.Open(ctx, repository.Options{
			Driver:       repository.DriverSQLite,
			DSN:          repository.SQLiteDSN(cfg.SQLitePath, cfg.SQLiteBusyTimeout),
			MigrationURL: repository.SQLiteMigrationURL(cfg.SQLitePath, cfg.SQLiteBusyTimeout),
			MaxOpenConns: cfg.DBMaxOpenConns,
		}, logger)

	case config.StorePostgres:
		connStr := cfg.GetDBConnectionString()
		return repository.Open(ctx, repository.Options{
			Driver:          repository.DriverPostgres,
			DSN:             connStr,
			MigrationURL:    connStr,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			ConnectAttempts: connectAttempts,
			RetryInterval:   retryInterval,
		}, logger)

	case config.StoreRedis:
		return redisstore.Open(ctx, redisstore.Options{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			KeyPrefix:  cfg.RedisKeyPrefix,
			MaxRetries: cfg.RedisMaxRetries,
		}, logger)

	case config.StoreMemory:
		logger.Warn("Using in-memory ledger; balances are lost on exit")
		return memory.NewLedger(logger), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
