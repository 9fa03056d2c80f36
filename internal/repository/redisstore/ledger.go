// Package redisstore keeps account balances in Redis, one string key per
// account. Balance updates are optimistic: WATCH the key, compute the new
// balance, and commit with MULTI/EXEC, retrying when another writer won.
package redisstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
)

const (
	DefaultKeyPrefix  = "balances:"
	DefaultMaxRetries = 50

	baseBackoff = time.Millisecond
	maxBackoff  = 20 * time.Millisecond
)

type Options struct {
	Addr       string
	Password   string
	DB         int
	KeyPrefix  string
	MaxRetries int // attempts for a contended ApplyDelta
}

type Ledger struct {
	client     *redis.Client
	prefix     string
	maxRetries int
	logger     *slog.Logger
}

var _ domain.LedgerStore = (*Ledger)(nil)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Ledger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	logger.Info("Successfully connected to redis", "addr", opts.Addr, "db", opts.DB)
	return New(client, opts, logger), nil
}

// New wraps an existing client. The ledger owns it from then on.
func New(client *redis.Client, opts Options, logger *slog.Logger) *Ledger {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	return &Ledger{
		client:     client,
		prefix:     prefix,
		maxRetries: retries,
		logger:     logger,
	}
}

func (l *Ledger) key(id string) string {
	return l.prefix + "account:" + id
}

func unavailable(message string, err error) error {
	return errors.NewAppError(errors.StoreUnavailable, message).WithCause(err)
}

func (l *Ledger) Exists(ctx context.Context, id string) (bool, error) {
	n, err := l.client.Exists(ctx, l.key(id)).Result()
	if err != nil {
		l.logger.Error("Failed to check account existence", "account_id", id, "error", err)
		return false, unavailable("failed to check account", err)
	}
	return n > 0, nil
}

func (l *Ledger) Read(ctx context.Context, id string) (decimal.Decimal, error) {
	raw, err := l.client.Get(ctx, l.key(id)).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return decimal.Zero, domain.ErrRecordNotFound
		}
		l.logger.Error("Failed to get account", "account_id", id, "error", err)
		return decimal.Zero, unavailable("failed to get account", err)
	}
	return parseBalance(id, raw)
}

func (l *Ledger) Insert(ctx context.Context, id string, initial decimal.Decimal) error {
	created, err := l.client.SetNX(ctx, l.key(id), initial.String(), 0).Result()
	if err != nil {
		l.logger.Error("Failed to create account", "account_id", id, "error", err)
		return unavailable("failed to create account", err)
	}
	if !created {
		l.logger.Warn("Duplicate account creation attempt", "account_id", id)
		return domain.ErrDuplicateKey
	}

	l.logger.Debug("Account inserted", "account_id", id)
	return nil
}

// ApplyDelta retries the WATCH/MULTI cycle until it commits, the balance check
// fails, or the retry budget is spent.
func (l *Ledger) ApplyDelta(ctx context.Context, id string, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	key := l.key(id)

	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		var next decimal.Decimal

		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Result()
			if err != nil {
				if stderrors.Is(err, redis.Nil) {
					return domain.ErrRecordNotFound
				}
				return unavailable("failed to get account", err)
			}

			current, err := parseBalance(id, raw)
			if err != nil {
				return err
			}

			next = current.Add(delta)
			if next.IsNegative() && !allowNegative {
				return domain.ErrNotEnoughBalance
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next.String(), 0)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			l.logger.Debug("Account balance updated", "account_id", id, "new_balance", next.String())
			return next, nil
		case stderrors.Is(err, redis.TxFailedErr):
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return decimal.Zero, unavailable("balance update interrupted", err)
			}
		case stderrors.Is(err, domain.ErrRecordNotFound),
			stderrors.Is(err, domain.ErrNotEnoughBalance):
			return decimal.Zero, err
		default:
			var appErr *errors.AppError
			if errors.As(err, &appErr) {
				return decimal.Zero, err
			}
			l.logger.Error("Failed to update account balance", "account_id", id, "error", err)
			return decimal.Zero, unavailable("failed to update account balance", err)
		}
	}

	l.logger.Error("Balance update kept conflicting", "account_id", id, "attempts", l.maxRetries)
	return decimal.Zero, unavailable("balance update kept conflicting", redis.TxFailedErr)
}

func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return errors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

func (l *Ledger) Close() error {
	return l.client.Close()
}

func parseBalance(id, raw string) (decimal.Decimal, error) {
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.NewAppErrorf(errors.InternalError, "stored balance of %s is not a decimal", id).WithCause(err)
	}
	return balance, nil
}

// backoff grows exponentially with full jitter.
func backoff(attempt int) time.Duration {
	d := baseBackoff << min(attempt-1, 5)
	d = min(d, maxBackoff)
	return time.Duration(rand.Int64N(int64(d)) + 1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
