package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"account-balances/internal/config"
	"account-balances/internal/domain"
	apperrors "account-balances/internal/errors"
	"account-balances/internal/handler"
	"account-balances/internal/logger"
	"account-balances/internal/service"
)

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	ledger domain.LedgerStore
	logger *slog.Logger
	port   string
}

// NewServer opens the configured ledger store and wires the HTTP API over it.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	ledger, err := OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s, err := NewServerWithLedger(ctx, cfg, ledger, logger)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	return s, nil
}

// NewServerWithLedger wires the HTTP API over an existing ledger store. The
// server takes ownership of ledger and closes it in Stop.
func NewServerWithLedger(ctx context.Context, cfg *config.Config, ledger domain.LedgerStore, logger *slog.Logger) (*Server, error) {
	balanceService := service.NewBalanceService(ledger, logger)

	if cfg.SeedDemoAccounts {
		if _, err := balanceService.SeedDemoAccounts(ctx); err != nil {
			return nil, err
		}
	}

	accountHandler := handler.NewAccountHandler(balanceService, logger)
	healthHandler := handler.NewHealthHandler(balanceService, logger)

	router := mux.NewRouter()

	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(logger))
	router.Use(recoveryMiddleware(logger))
	router.Use(requireJSONMiddleware(logger))
	router.Use(timeoutMiddleware(cfg.RequestTimeout))

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, logger, apperrors.NewAppErrorf(apperrors.RouteNotFound, "no route for %s", r.URL.Path))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, logger, apperrors.NewAppErrorf(apperrors.MethodNotAllowed, "method %s not allowed on %s", r.Method, r.URL.Path))
	})

	router.HandleFunc("/", healthHandler.Root).Methods("GET")
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// Account routes
	router.HandleFunc("/accounts/{account_id}", accountHandler.CreateAccount).Methods("POST")
	router.HandleFunc("/accounts/{account_id}", accountHandler.GetBalance).Methods("GET")
	router.HandleFunc("/accounts/{account_id}/balance", accountHandler.GetBalance).Methods("GET")
	router.HandleFunc("/accounts/{account_id}/deposit", accountHandler.Deposit).Methods("POST")
	router.HandleFunc("/accounts/{account_id}/withdraw", accountHandler.Withdraw).Methods("POST")

	return &Server{
		router: router,
		ledger: ledger,
		logger: logger,
	}, nil
}

func (s *Server) listen(port string) (net.Listener, error) {
	// Create listener first to get actual port
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, err
	}

	// Get the actual port being used
	addr := listener.Addr().(*net.TCPAddr)
	s.port = strconv.Itoa(addr.Port)

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("Starting server", "port", s.port)
	return listener, nil
}

func (s *Server) serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Server failed", "error", err)
		return err
	}
	return nil
}

// Start starts the HTTP server on the specified port in the background and
// returns the port actually bound.
func (s *Server) Start(port string) (string, error) {
	listener, err := s.listen(port)
	if err != nil {
		return "", err
	}

	go s.serve(listener)
	return s.port, nil
}

// Stop drains in-flight requests, then closes the ledger store.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var shutdownErr error
	if s.server != nil {
		shutdownErr = s.server.Shutdown(ctx)
	}

	if s.ledger != nil {
		if err := s.ledger.Close(); err != nil {
			s.logger.Error("Failed to close ledger store", "error", err)
			shutdownErr = errors.Join(shutdownErr, err)
		}
	}
	return shutdownErr
}

// Run serves on port until ctx is cancelled or serving fails, then stops
// within shutdownTimeout.
func (s *Server) Run(ctx context.Context, port string, shutdownTimeout time.Duration) error {
	listener, err := s.listen(port)
	if err != nil {
		s.ledger.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(stopCtx)
	})
	return g.Wait()
}

// GetPort returns the port the server is listening on
func (s *Server) GetPort() string {
	return s.port
}

// GetBaseURL returns the base URL for the server
func (s *Server) GetBaseURL() string {
	return "http://localhost:" + s.port
}

// GetRouter returns the router for testing purposes
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// StartServer builds a server from cfg and starts it on cfg.ServerPort. Port
// "0" picks a free port and silences logging, which is what tests want.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, string, error) {
	var log *slog.Logger
	if cfg.ServerPort == "0" {
		log = logger.Discard()
	} else {
		log = logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	}

	server, err := NewServer(ctx, cfg, log)
	if err != nil {
		return nil, "", err
	}

	port, err := server.Start(cfg.ServerPort)
	if err != nil {
		server.Stop(ctx)
		return nil, "", err
	}

	return server, port, nil
}
