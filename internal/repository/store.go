package repository

import (
	"context"
	"log/slog"

	"account-balances/internal/errors"
)

// Store provides a unified interface for all repository operations with transaction support
type Store struct {
	executor SQLExecutor
	dialect  Dialect
	logger   *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(db DB, dialect Dialect, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		dialect:  dialect,
		logger:   logger,
	}
}

// Account returns an AccountRepository using the current executor
func (s *Store) Account() AccountRepository {
	return newAccountRepository(s.executor, s.dialect, s.logger)
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	// A Store already inside a transaction holds a TxWrapper, which cannot nest.
	db, ok := s.executor.(DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return errors.ErrStoreUnavailable.WithCause(err)
	}

	txStore := &Store{
		executor: &TxWrapper{Tx: tx},
		dialect:  s.dialect,
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit transaction", "error", err)
		return errors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}
