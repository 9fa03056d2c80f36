package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-balances/internal/config"
	"account-balances/internal/domain"
	"account-balances/internal/errors"
	"account-balances/internal/repository/memory"
	"account-balances/internal/server"
)

// sharedLedger hands every command the same in-memory store and records the
// configuration it was opened with.
type sharedLedger struct {
	ledger *memory.Ledger
	cfg    *config.Config
}

func newSharedLedger() *sharedLedger {
	return &sharedLedger{ledger: memory.NewLedger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
}

func (l *sharedLedger) open(_ context.Context, cfg *config.Config, _ *slog.Logger) (domain.LedgerStore, error) {
	l.cfg = cfg
	return l.ledger, nil
}

func execute(t *testing.T, opener LedgerOpener, args ...string) (string, error) {
	t.Helper()
	t.Setenv(config.ConfigFileEnv, "")

	root := NewRoot(&CmdParams{
		Use:        "balancectl",
		OpenLedger: opener,
		LogOutput:  io.Discard,
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCreateDepositWithdrawBalance(t *testing.T) {
	l := newSharedLedger()

	out, err := execute(t, l.open, "create", "12345", "--initial", "105")
	require.NoError(t, err)
	assert.Equal(t, "12345 105.00\n", out)

	out, err = execute(t, l.open, "deposit", "12345", "0.10")
	require.NoError(t, err)
	assert.Equal(t, "12345 105.10\n", out)

	out, err = execute(t, l.open, "withdraw", "12345", "5.10")
	require.NoError(t, err)
	assert.Equal(t, "12345 100.00\n", out)

	out, err = execute(t, l.open, "balance", "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345 100.00\n", out)
}

func TestCommandErrors(t *testing.T) {
	l := newSharedLedger()

	_, err := execute(t, l.open, "balance", "missing")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)

	_, err = execute(t, l.open, "create", "a111", "--initial", "1")
	require.NoError(t, err)

	_, err = execute(t, l.open, "withdraw", "a111", "2")
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)

	_, err = execute(t, l.open, "deposit", "a111", "lots")
	require.Error(t, err)
	assert.Equal(t, errors.InvalidArgument, errors.AsAppError(err).Code)

	_, err = execute(t, l.open, "deposit", "a111")
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	l := newSharedLedger()

	out, err := execute(t, l.open, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "4 demo accounts created")

	out, err = execute(t, l.open, "seed")
	require.NoError(t, err)
	assert.Equal(t, "0 demo accounts created\n", out)
}

func TestFlagsOverrideConfig(t *testing.T) {
	l := newSharedLedger()
	t.Setenv("BALANCES_STORE_DRIVER", "postgres")

	_, err := execute(t, l.open, "--store-driver", "memory", "seed")
	require.NoError(t, err)
	assert.Equal(t, config.StoreMemory, l.cfg.StoreDriver)
	assert.Equal(t, "warn", l.cfg.LogLevel)
}

func TestInvalidConfigFails(t *testing.T) {
	l := newSharedLedger()

	_, err := execute(t, l.open, "--store-driver", "tape", "balance", "x")
	assert.ErrorContains(t, err, "unknown store_driver")
}

func TestAgainstSQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")

	_, err := execute(t, server.OpenLedger, "--store-driver", "sqlite3", "--sqlite-path", path, "create", "777", "--initial", "12015")
	require.NoError(t, err)

	// A second invocation sees what the first one committed.
	out, err := execute(t, server.OpenLedger, "--store-driver", "sqlite3", "--sqlite-path", path, "deposit", "777", "0.005")
	require.NoError(t, err)
	assert.Equal(t, "777 12015.01\n", out)
}
