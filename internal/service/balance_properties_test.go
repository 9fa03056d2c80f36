package service

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
	"account-balances/internal/repository/memory"
)

// BalancePropertiesSuite runs the engine end to end against the in-memory
// ledger.
type BalancePropertiesSuite struct {
	suite.Suite
	service *BalanceService
	ctx     context.Context
}

func TestBalancePropertiesSuite(t *testing.T) {
	suite.Run(t, new(BalancePropertiesSuite))
}

func (s *BalancePropertiesSuite) SetupTest() {
	s.service = NewBalanceService(memory.NewLedger(discardLogger()), discardLogger())
	s.ctx = context.Background()
}

func (s *BalancePropertiesSuite) create(id, initial string) {
	_, err := s.service.CreateAccount(s.ctx, id, dec(initial))
	s.Require().NoError(err)
}

func (s *BalancePropertiesSuite) balance(id string) string {
	account, err := s.service.GetBalance(s.ctx, id)
	s.Require().NoError(err)
	return domain.FormatBalance(account.Balance)
}

func (s *BalancePropertiesSuite) TestConcurrentDepositsAllLand() {
	s.create("12345", "0")

	var g errgroup.Group
	for i := 0; i < 200; i++ {
		g.Go(func() error {
			_, err := s.service.Deposit(s.ctx, "12345", dec("0.10"))
			return err
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal("20.00", s.balance("12345"))
}

func (s *BalancePropertiesSuite) TestConcurrentMixConservesMoney() {
	s.create("777", "100")

	var g errgroup.Group
	var refused atomic.Int64
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := s.service.Deposit(s.ctx, "777", dec("2"))
			return err
		})
		g.Go(func() error {
			_, err := s.service.Withdraw(s.ctx, "777", dec("3.2"))
			if errors.Is(err, errors.ErrInsufficientFunds) {
				refused.Add(1)
				return nil
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())

	// 100 + 50*2 - (50-refused)*3.2
	want := dec("200").Sub(dec("3.2").Mul(decimal.NewFromInt(50 - refused.Load())))
	s.Equal(domain.FormatBalance(want), s.balance("777"))
	s.False(want.IsNegative())
}

func (s *BalancePropertiesSuite) TestSequenceConservesMoney() {
	s.create("seq", "0")

	for _, amount := range []string{"10", "20", "30.55"} {
		_, err := s.service.Deposit(s.ctx, "seq", dec(amount))
		s.Require().NoError(err)
	}
	for _, amount := range []string{"5", "15.55"} {
		_, err := s.service.Withdraw(s.ctx, "seq", dec(amount))
		s.Require().NoError(err)
	}

	s.Equal("40.00", s.balance("seq"))
}

func (s *BalancePropertiesSuite) TestRejectedWithdrawalIsNoOp() {
	s.create("a111", "60")

	_, err := s.service.Withdraw(s.ctx, "a111", dec("60.01"))
	s.ErrorIs(err, errors.ErrInsufficientFunds)
	s.Equal("60.00", s.balance("a111"))
}

func (s *BalancePropertiesSuite) TestWithdrawExactBalance() {
	s.create("007", "47000.00")

	account, err := s.service.Withdraw(s.ctx, "007", dec("47000"))
	s.Require().NoError(err)
	s.Equal("0.00", domain.FormatBalance(account.Balance))
}

func (s *BalancePropertiesSuite) TestRounding() {
	s.create("half", "1.005")
	s.Equal("1.01", s.balance("half"))

	s.create("tenths", "0")
	for i := 0; i < 10; i++ {
		_, err := s.service.Deposit(s.ctx, "tenths", dec("0.1"))
		s.Require().NoError(err)
	}
	s.Equal("1.00", s.balance("tenths"))

	s.create("tiny", "0")
	_, err := s.service.Deposit(s.ctx, "tiny", dec("0.0001"))
	s.Require().NoError(err)
	s.Equal("0.00", s.balance("tiny"))
}

func (s *BalancePropertiesSuite) TestSubCentAmountsAccumulate() {
	s.create("dust", "0")
	for i := 0; i < 50; i++ {
		_, err := s.service.Deposit(s.ctx, "dust", dec("0.0001"))
		s.Require().NoError(err)
	}

	// 0.005 exactly, which rounds half-up on display.
	s.Equal("0.01", s.balance("dust"))
}

func (s *BalancePropertiesSuite) TestReadsAreIdempotent() {
	s.create("reader", "12015.00")

	for i := 0; i < 3; i++ {
		s.Equal("12015.00", s.balance("reader"))
	}
}

func (s *BalancePropertiesSuite) TestOperationsRequireExistingAccount() {
	_, err := s.service.GetBalance(s.ctx, "nobody")
	s.ErrorIs(err, errors.ErrAccountNotFound)

	_, err = s.service.Deposit(s.ctx, "nobody", dec("1"))
	s.ErrorIs(err, errors.ErrAccountNotFound)

	_, err = s.service.Withdraw(s.ctx, "nobody", dec("1"))
	s.ErrorIs(err, errors.ErrAccountNotFound)
}

func (s *BalancePropertiesSuite) TestDuplicateCreateKeepsBalance() {
	s.create("dup", "10")

	_, err := s.service.CreateAccount(s.ctx, "dup", dec("99"))
	s.ErrorIs(err, errors.ErrDuplicateAccount)
	s.Equal("10.00", s.balance("dup"))
}

func (s *BalancePropertiesSuite) TestSeedIsRepeatable() {
	created, err := s.service.SeedDemoAccounts(s.ctx)
	s.Require().NoError(err)
	s.Len(created, len(DemoAccounts))
	s.Equal("10500.00", s.balance("12345"))

	created, err = s.service.SeedDemoAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(created)
}
