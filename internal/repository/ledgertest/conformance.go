// Package ledgertest holds the behaviour every domain.LedgerStore
// implementation must share. Store packages run it from their own tests.
package ledgertest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"account-balances/internal/domain"
)

// Factory returns an empty, ready store. It is called once per test.
type Factory func(t *testing.T) domain.LedgerStore

type ConformanceSuite struct {
	suite.Suite
	newStore Factory
	store    domain.LedgerStore
	ctx      context.Context
}

// Run executes the conformance suite against stores produced by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &ConformanceSuite{newStore: factory})
}

func (s *ConformanceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore(s.T())
}

func (s *ConformanceSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *ConformanceSuite) accountID() string {
	return "acct_" + uuid.NewString()[:12]
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (s *ConformanceSuite) mustInsert(id, initial string) {
	s.Require().NoError(s.store.Insert(s.ctx, id, dec(initial)))
}

func (s *ConformanceSuite) assertBalance(id, want string) {
	got, err := s.store.Read(s.ctx, id)
	s.Require().NoError(err)
	s.True(dec(want).Equal(got), "balance of %s: want %s, got %s", id, want, got)
}

func (s *ConformanceSuite) TestInsertAndRead() {
	id := s.accountID()
	s.mustInsert(id, "12.34")

	exists, err := s.store.Exists(s.ctx, id)
	s.Require().NoError(err)
	s.True(exists)
	s.assertBalance(id, "12.34")
}

func (s *ConformanceSuite) TestReadMissing() {
	_, err := s.store.Read(s.ctx, "never_created")
	s.ErrorIs(err, domain.ErrRecordNotFound)

	exists, err := s.store.Exists(s.ctx, "never_created")
	s.Require().NoError(err)
	s.False(exists)
}

func (s *ConformanceSuite) TestInsertDuplicateKeepsBalance() {
	id := s.accountID()
	s.mustInsert(id, "5")

	err := s.store.Insert(s.ctx, id, dec("999"))
	s.ErrorIs(err, domain.ErrDuplicateKey)
	s.assertBalance(id, "5")
}

func (s *ConformanceSuite) TestApplyDeltaMissing() {
	_, err := s.store.ApplyDelta(s.ctx, "never_created", dec("1"), false)
	s.ErrorIs(err, domain.ErrRecordNotFound)
}

func (s *ConformanceSuite) TestApplyDeltaDepositAndWithdraw() {
	id := s.accountID()
	s.mustInsert(id, "0")

	got, err := s.store.ApplyDelta(s.ctx, id, dec("100"), false)
	s.Require().NoError(err)
	s.True(dec("100").Equal(got))

	got, err = s.store.ApplyDelta(s.ctx, id, dec("-40"), false)
	s.Require().NoError(err)
	s.True(dec("60").Equal(got))
	s.assertBalance(id, "60")
}

func (s *ConformanceSuite) TestApplyDeltaInsufficientLeavesBalance() {
	id := s.accountID()
	s.mustInsert(id, "60.00")

	_, err := s.store.ApplyDelta(s.ctx, id, dec("-1000"), false)
	s.ErrorIs(err, domain.ErrNotEnoughBalance)
	s.assertBalance(id, "60.00")
}

func (s *ConformanceSuite) TestApplyDeltaExactBalanceLeavesZero() {
	id := s.accountID()
	s.mustInsert(id, "42.42")

	got, err := s.store.ApplyDelta(s.ctx, id, dec("-42.42"), false)
	s.Require().NoError(err)
	s.True(got.IsZero())
}

func (s *ConformanceSuite) TestApplyDeltaAllowNegative() {
	id := s.accountID()
	s.mustInsert(id, "1")

	got, err := s.store.ApplyDelta(s.ctx, id, dec("-3.5"), true)
	s.Require().NoError(err)
	s.True(dec("-2.5").Equal(got))
}

func (s *ConformanceSuite) TestSubCentPrecisionIsKept() {
	id := s.accountID()
	s.mustInsert(id, "0")

	for i := 0; i < 10; i++ {
		_, err := s.store.ApplyDelta(s.ctx, id, dec("0.0001"), false)
		s.Require().NoError(err)
	}
	s.assertBalance(id, "0.001")
}

func (s *ConformanceSuite) TestConcurrentDepositsLoseNothing() {
	id := s.accountID()
	s.mustInsert(id, "0")

	const deposits = 200
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(8)
	for i := 0; i < deposits; i++ {
		g.Go(func() error {
			_, err := s.store.ApplyDelta(ctx, id, dec("0.10"), false)
			return err
		})
	}
	s.Require().NoError(g.Wait())
	s.assertBalance(id, "20.00")
}

func (s *ConformanceSuite) TestConcurrentWithdrawalsNeverOverdraw() {
	id := s.accountID()
	s.mustInsert(id, "10")

	var succeeded, refused atomic.Int64
	g, ctx := errgroup.WithContext(s.ctx)
	g.SetLimit(8)
	for i := 0; i < 40; i++ {
		g.Go(func() error {
			_, err := s.store.ApplyDelta(ctx, id, dec("-1"), false)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, domain.ErrNotEnoughBalance):
				refused.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.EqualValues(10, succeeded.Load())
	s.EqualValues(30, refused.Load())
	s.assertBalance(id, "0")
}

func (s *ConformanceSuite) TestConcurrentInsertFirstWriterWins() {
	id := s.accountID()

	var created, duplicates atomic.Int64
	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			err := s.store.Insert(ctx, id, dec("1"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, domain.ErrDuplicateKey):
				duplicates.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.EqualValues(1, created.Load())
	s.EqualValues(15, duplicates.Load())
	s.assertBalance(id, "1")
}

func (s *ConformanceSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
