package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	AccountExists(ctx context.Context, id string) (bool, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*domain.Account, error)
	UpdateAccountBalance(ctx context.Context, id string, newBalance decimal.Decimal) error
}

type accountRepository struct {
	db      SQLExecutor
	dialect Dialect
	logger  *slog.Logger
}

func newAccountRepository(db SQLExecutor, dialect Dialect, logger *slog.Logger) AccountRepository {
	return &accountRepository{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}
}

func (r *accountRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := r.dialect.Rebind(`
		INSERT INTO accounts (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`)

	now := time.Now().UTC()
	_, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Balance.String(),
		now,
		now,
	)

	if err != nil {
		if r.dialect.IsUniqueViolation(err) {
			r.logger.Warn("Duplicate account creation attempt", "account_id", account.ID)
			return domain.ErrDuplicateKey
		}
		r.logger.Error("Failed to create account", "account_id", account.ID, "error", err)
		return errors.NewAppError(errors.StoreUnavailable, "failed to create account").WithCause(err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	r.logger.Debug("Account created", "account_id", account.ID)
	return nil
}

func (r *accountRepository) AccountExists(ctx context.Context, id string) (bool, error) {
	query := r.dialect.Rebind(`SELECT 1 FROM accounts WHERE id = $1`)

	var one int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		r.logger.Error("Failed to check account existence", "account_id", id, "error", err)
		return false, errors.NewAppError(errors.StoreUnavailable, "failed to check account").WithCause(err)
	}
	return true, nil
}

func (r *accountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts WHERE id = $1
	`

	return r.scanAccount(ctx, r.dialect.Rebind(query), id)
}

// GetAccountForUpdate reads the row and, where the engine supports it, locks
// it until the surrounding transaction ends.
func (r *accountRepository) GetAccountForUpdate(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, balance, created_at, updated_at
		FROM accounts WHERE id = $1` + r.dialect.LockClause

	return r.scanAccount(ctx, r.dialect.Rebind(query), id)
}

func (r *accountRepository) scanAccount(ctx context.Context, query string, id string) (*domain.Account, error) {
	var account domain.Account
	var balanceStr string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&balanceStr,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			r.logger.Debug("Account not found", "account_id", id)
			return nil, domain.ErrRecordNotFound
		}
		r.logger.Error("Failed to get account", "account_id", id, "error", err)
		return nil, errors.NewAppError(errors.StoreUnavailable, "failed to get account").WithCause(err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		r.logger.Error("Failed to parse balance", "account_id", id, "balance_str", balanceStr, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to parse balance").WithCause(err)
	}

	account.Balance = balance
	return &account, nil
}

func (r *accountRepository) UpdateAccountBalance(ctx context.Context, id string, newBalance decimal.Decimal) error {
	query := r.dialect.Rebind(`
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`)

	result, err := r.db.ExecContext(ctx, query, newBalance.String(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update account balance", "account_id", id, "error", err)
		return errors.NewAppError(errors.StoreUnavailable, "failed to update account balance").WithCause(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.StoreUnavailable, "failed to get rows affected").WithCause(err)
	}

	if rowsAffected == 0 {
		r.logger.Warn("No account found to update", "account_id", id)
		return domain.ErrRecordNotFound
	}

	r.logger.Debug("Account balance updated", "account_id", id, "new_balance", newBalance.String())
	return nil
}
