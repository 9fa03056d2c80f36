package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"account-balances/internal/cli"
	"account-balances/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRoot(&cli.CmdParams{
		Use:        "balancectl",
		Short:      "Create accounts and move balances from the command line",
		OpenLedger: server.OpenLedger,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
