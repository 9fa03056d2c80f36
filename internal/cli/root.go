// Package cli implements balancectl, a command line client that talks to the
// ledger store directly through the balance service.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"account-balances/internal/config"
	"account-balances/internal/domain"
	"account-balances/internal/logger"
	"account-balances/internal/service"
)

// LedgerOpener builds the ledger store a command runs against.
type LedgerOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.LedgerStore, error)

// CmdParams carries what the commands need from main.
type CmdParams struct {
	Use        string
	Short      string
	OpenLedger LedgerOpener
	// LogOutput receives diagnostics; defaults to stderr.
	LogOutput io.Writer
}

// session is the per-invocation state built in PersistentPreRunE.
type session struct {
	params  *CmdParams
	cfgFile string
	ledger  domain.LedgerStore
	service *service.BalanceService
}

// flag name -> config key
var boundFlags = map[string]string{
	"store-driver": "store_driver",
	"sqlite-path":  "sqlite_path",
	"database-url": "database_url",
	"redis-addr":   "redis_addr",
	"log-level":    "log_level",
}

// NewRoot creates and configures the root command
func NewRoot(params *CmdParams) *cobra.Command {
	s := &session{params: params}

	rootCmd := &cobra.Command{
		Use:           params.Use,
		Short:         params.Short,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.cfgFile, "config", "", "config file (default $"+config.ConfigFileEnv+")")
	flags.String("store-driver", "", "ledger store: sqlite3, postgres, redis or memory")
	flags.String("sqlite-path", "", "sqlite3 database file")
	flags.String("database-url", "", "postgres connection URL")
	flags.String("redis-addr", "", "redis address host:port")
	flags.String("log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(
		newCreateCmd(s),
		newBalanceCmd(s),
		newDepositCmd(s),
		newWithdrawCmd(s),
		newSeedCmd(s),
	)

	return rootCmd
}

func (s *session) open(cmd *cobra.Command) error {
	v, err := config.New(s.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	// CLI diagnostics default to warnings only so command output stays clean.
	if !cmd.Flags().Changed("log-level") && os.Getenv(config.EnvPrefix+"_LOG_LEVEL") == "" {
		v.SetDefault("log_level", "warn")
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}

	out := s.params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(out, "text", cfg.LogLevel)

	ledger, err := s.params.OpenLedger(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}

	s.ledger = ledger
	s.service = service.NewBalanceService(ledger, log)
	return nil
}

// run wraps a command body so the ledger is closed whether or not it fails.
func (s *session) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if cerr := s.close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(cmd, args)
	}
}

func (s *session) close() error {
	if s.ledger == nil {
		return nil
	}
	err := s.ledger.Close()
	s.ledger = nil
	return err
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range boundFlags {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func printAccount(cmd *cobra.Command, account *domain.Account) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", account.ID, domain.FormatBalance(account.Balance))
}
