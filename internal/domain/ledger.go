package domain

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Store-level signals. The balance service translates these into the
// application error taxonomy; any other error a store returns is passed
// through untouched.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrNotEnoughBalance = errors.New("not enough balance")
)

// LedgerStore is the durable id -> balance mapping. It is the only component
// allowed to mutate balances.
type LedgerStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Read returns ErrRecordNotFound when id has no record.
	Read(ctx context.Context, id string) (decimal.Decimal, error)
	// Insert returns ErrDuplicateKey when id already exists. Of two
	// concurrent inserts of the same id exactly one succeeds.
	Insert(ctx context.Context, id string, initial decimal.Decimal) error
	// ApplyDelta adds delta to the balance of id and returns the new balance.
	// The sufficiency check and the write are one indivisible step: when the
	// result would be negative and allowNegative is false it returns
	// ErrNotEnoughBalance and leaves the balance untouched.
	ApplyDelta(ctx context.Context, id string, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error)
	Ping(ctx context.Context) error
	Close() error
}
