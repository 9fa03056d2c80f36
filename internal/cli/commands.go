package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"account-balances/internal/errors"
)

func parseAmount(arg string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(arg)
	if err != nil {
		return decimal.Zero, errors.NewAppErrorf(errors.InvalidArgument, "%q is not a decimal amount", arg)
	}
	return amount, nil
}

func newCreateCmd(s *session) *cobra.Command {
	var initial string

	cmd := &cobra.Command{
		Use:   "create <account_id>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(initial)
			if err != nil {
				return err
			}

			account, err := s.service.CreateAccount(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		}),
	}
	cmd.Flags().StringVar(&initial, "initial", "0", "initial balance")

	return cmd
}

func newBalanceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account_id>",
		Short: "Print an account balance",
		Args:  cobra.ExactArgs(1),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			account, err := s.service.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		}),
	}
}

func newDepositCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account_id> <amount>",
		Short: "Add funds to an account",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			account, err := s.service.Deposit(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		}),
	}
}

func newWithdrawCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <account_id> <amount>",
		Short: "Remove funds from an account",
		Args:  cobra.ExactArgs(2),
		RunE: s.run(func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}

			account, err := s.service.Withdraw(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			printAccount(cmd, account)
			return nil
		}),
	}
}

func newSeedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo accounts that do not exist yet",
		Args:  cobra.NoArgs,
		RunE: s.run(func(cmd *cobra.Command, _ []string) error {
			created, err := s.service.SeedDemoAccounts(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d demo accounts created\n", len(created))
			return nil
		}),
	}
}
