package repository

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
)

// SQLLedger is a domain.LedgerStore over postgres or sqlite3.
type SQLLedger struct {
	db     DB
	store  *Store
	logger *slog.Logger
}

var _ domain.LedgerStore = (*SQLLedger)(nil)

func NewSQLLedger(db DB, dialect Dialect, logger *slog.Logger) *SQLLedger {
	return &SQLLedger{
		db:     db,
		store:  NewStore(db, dialect, logger),
		logger: logger,
	}
}

func (l *SQLLedger) Exists(ctx context.Context, id string) (bool, error) {
	return l.store.Account().AccountExists(ctx, id)
}

func (l *SQLLedger) Read(ctx context.Context, id string) (decimal.Decimal, error) {
	account, err := l.store.Account().GetAccount(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (l *SQLLedger) Insert(ctx context.Context, id string, initial decimal.Decimal) error {
	return l.store.Account().CreateAccount(ctx, &domain.Account{
		ID:      id,
		Balance: initial,
	})
}

// ApplyDelta locks the row, checks the resulting balance and writes it in one
// transaction. Concurrent callers on the same id queue on the row lock (postgres)
// or the database write lock (sqlite3), from this or any other process.
func (l *SQLLedger) ApplyDelta(ctx context.Context, id string, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	var newBalance decimal.Decimal

	err := l.store.WithTransaction(ctx, func(tx *Store) error {
		accountRepo := tx.Account()

		account, err := accountRepo.GetAccountForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next := account.Balance.Add(delta)
		if next.IsNegative() && !allowNegative {
			return domain.ErrNotEnoughBalance
		}

		if err := accountRepo.UpdateAccountBalance(ctx, id, next); err != nil {
			return err
		}

		newBalance = next
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	return newBalance, nil
}

func (l *SQLLedger) Ping(ctx context.Context) error {
	if err := l.db.PingContext(ctx); err != nil {
		return errors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

func (l *SQLLedger) Close() error {
	return l.db.Close()
}
