package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"account-balances/internal/service"
)

type HealthHandler struct {
	balanceService *service.BalanceService
	logger         *slog.Logger
}

func NewHealthHandler(balanceService *service.BalanceService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Welcome to the account balances API",
		"health":  "/health",
	})
}

// Health pings the ledger store; the body is not enveloped so load balancers
// can read status directly.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.balanceService.Ping(r.Context()); err != nil {
		h.logger.Warn("Health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": "ledger store unavailable"})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
