package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
)

// DemoAccount is an account created by SeedDemoAccounts.
type DemoAccount struct {
	ID      string
	Balance decimal.Decimal
}

var DemoAccounts = []DemoAccount{
	{ID: "12345", Balance: decimal.NewFromInt(10500)},
	{ID: "777", Balance: decimal.RequireFromString("12015.00")},
	{ID: "a111", Balance: decimal.RequireFromString("5040.00")},
	{ID: "007", Balance: decimal.RequireFromString("47000.00")},
}

// BalanceService validates requests, delegates every balance change to the
// ledger's atomic primitive and translates store outcomes into AppErrors.
type BalanceService struct {
	store  domain.LedgerStore
	logger *slog.Logger
}

func NewBalanceService(store domain.LedgerStore, logger *slog.Logger) *BalanceService {
	return &BalanceService{
		store:  store,
		logger: logger,
	}
}

func (s *BalanceService) CreateAccount(ctx context.Context, accountID string, initialBalance decimal.Decimal) (*domain.Account, error) {
	if !domain.ValidAccountID(accountID) {
		return nil, errors.ErrInvalidAccountID
	}
	if initialBalance.IsNegative() {
		return nil, errors.ErrNegativeInitial
	}
	// Checked before anything formats the value.
	if !domain.AmountInRange(initialBalance) {
		return nil, errors.ErrAmountOutOfRange
	}

	s.logger.Info("Creating account", "account_id", accountID, "initial_balance", initialBalance)

	if err := s.store.Insert(ctx, accountID, initialBalance); err != nil {
		return nil, s.translate(err, accountID)
	}

	s.logger.Info("Account created successfully", "account_id", accountID)
	return newAccount(accountID, initialBalance), nil
}

func (s *BalanceService) GetBalance(ctx context.Context, accountID string) (*domain.Account, error) {
	s.logger.Debug("Getting balance", "account_id", accountID)

	if !domain.ValidAccountID(accountID) {
		return nil, errors.ErrInvalidAccountID
	}

	balance, err := s.store.Read(ctx, accountID)
	if err != nil {
		return nil, s.translate(err, accountID)
	}
	return newAccount(accountID, balance), nil
}

func (s *BalanceService) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validateMutation(accountID, amount); err != nil {
		return nil, err
	}
	s.logger.Info("Processing deposit", "account_id", accountID, "amount", amount)

	balance, err := s.store.ApplyDelta(ctx, accountID, amount, false)
	if err != nil {
		return nil, s.translate(err, accountID)
	}

	s.logger.Info("Deposit completed", "account_id", accountID, "balance", domain.FormatBalance(balance))
	return newAccount(accountID, balance), nil
}

// Withdraw removes amount from the account. Whether funds suffice is decided
// inside the store's atomic update, never from an earlier read.
func (s *BalanceService) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	if err := validateMutation(accountID, amount); err != nil {
		return nil, err
	}
	s.logger.Info("Processing withdrawal", "account_id", accountID, "amount", amount)

	balance, err := s.store.ApplyDelta(ctx, accountID, amount.Neg(), false)
	if err != nil {
		return nil, s.translate(err, accountID)
	}

	s.logger.Info("Withdrawal completed", "account_id", accountID, "balance", domain.FormatBalance(balance))
	return newAccount(accountID, balance), nil
}

// SeedDemoAccounts creates DemoAccounts, leaving any that already exist
// untouched. It returns the ids it created.
func (s *BalanceService) SeedDemoAccounts(ctx context.Context) ([]string, error) {
	var created []string
	for _, demo := range DemoAccounts {
		err := s.store.Insert(ctx, demo.ID, demo.Balance)
		switch {
		case err == nil:
			created = append(created, demo.ID)
		case errors.Is(err, domain.ErrDuplicateKey):
			s.logger.Debug("Demo account already present", "account_id", demo.ID)
		default:
			return created, s.translate(err, demo.ID)
		}
	}

	s.logger.Info("Demo accounts seeded", "created", len(created))
	return created, nil
}

// Ping reports whether the ledger store is reachable.
func (s *BalanceService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func validateMutation(accountID string, amount decimal.Decimal) error {
	if !domain.ValidAccountID(accountID) {
		return errors.ErrInvalidAccountID
	}
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if !domain.AmountInRange(amount) {
		return errors.ErrAmountOutOfRange
	}
	return nil
}

func (s *BalanceService) translate(err error, accountID string) error {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return errors.ErrAccountNotFound.WithDetails(accountID)
	case errors.Is(err, domain.ErrDuplicateKey):
		return errors.ErrDuplicateAccount.WithDetails(accountID)
	case errors.Is(err, domain.ErrNotEnoughBalance):
		return errors.ErrInsufficientFunds
	}

	// Everything else, store_unavailable included, goes up unchanged.
	s.logger.Error("Ledger store failure", "account_id", accountID, "error", err)
	return err
}

func newAccount(accountID string, balance decimal.Decimal) *domain.Account {
	return &domain.Account{
		ID:      accountID,
		Balance: domain.Quantize(balance),
	}
}
