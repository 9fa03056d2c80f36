// Package memory provides a process-local LedgerStore. Each account is guarded
// by its own mutex; there is no lock shared between accounts.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
)

type record struct {
	mu      sync.Mutex
	balance decimal.Decimal
}

type Ledger struct {
	accounts sync.Map // string -> *record
	logger   *slog.Logger
}

var _ domain.LedgerStore = (*Ledger)(nil)

func NewLedger(logger *slog.Logger) *Ledger {
	return &Ledger{logger: logger}
}

func (l *Ledger) load(id string) (*record, bool) {
	v, ok := l.accounts.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

func (l *Ledger) Exists(_ context.Context, id string) (bool, error) {
	_, ok := l.load(id)
	return ok, nil
}

func (l *Ledger) Read(_ context.Context, id string) (decimal.Decimal, error) {
	rec, ok := l.load(id)
	if !ok {
		return decimal.Zero, domain.ErrRecordNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.balance, nil
}

func (l *Ledger) Insert(_ context.Context, id string, initial decimal.Decimal) error {
	if _, loaded := l.accounts.LoadOrStore(id, &record{balance: initial}); loaded {
		l.logger.Warn("Duplicate account creation attempt", "account_id", id)
		return domain.ErrDuplicateKey
	}

	l.logger.Debug("Account inserted", "account_id", id)
	return nil
}

func (l *Ledger) ApplyDelta(_ context.Context, id string, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	rec, ok := l.load(id)
	if !ok {
		return decimal.Zero, domain.ErrRecordNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.balance.Add(delta)
	if next.IsNegative() && !allowNegative {
		return decimal.Zero, domain.ErrNotEnoughBalance
	}
	rec.balance = next
	return next, nil
}

func (l *Ledger) Ping(context.Context) error {
	return nil
}

func (l *Ledger) Close() error {
	return nil
}
