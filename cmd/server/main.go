package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"account-balances/internal/config"
	"account-balances/internal/logger"
	"account-balances/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverInstance, err := server.NewServer(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	log.Info("Server starting", "port", cfg.ServerPort, "store_driver", cfg.StoreDriver)

	if err := serverInstance.Run(ctx, cfg.ServerPort, cfg.ShutdownTimeout); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped")
}
