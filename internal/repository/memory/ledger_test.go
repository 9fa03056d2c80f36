package memory

import (
	"io"
	"log/slog"
	"testing"

	"account-balances/internal/domain"
	"account-balances/internal/repository/ledgertest"
)

func TestLedgerConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) domain.LedgerStore {
		return NewLedger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})
}
