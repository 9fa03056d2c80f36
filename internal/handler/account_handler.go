package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"account-balances/internal/domain"
	"account-balances/internal/errors"
	"account-balances/internal/service"
)

type AccountHandler struct {
	balanceService *service.BalanceService
	logger         *slog.Logger
}

func NewAccountHandler(balanceService *service.BalanceService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

type CreateAccountRequest struct {
	InitialBalance json.RawMessage `json:"initial_balance"`
}

type AmountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

type AccountResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

func newAccountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID: account.ID,
		Balance:   domain.FormatBalance(account.Balance),
	}
}

// CreateAccount handles POST /accounts/{account_id}. The body is optional;
// initial_balance defaults to zero.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	var req CreateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	initialBalance, _, err := parseAmount(req.InitialBalance, "initial_balance")
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	account, err := h.balanceService.CreateAccount(r.Context(), accountID, initialBalance)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, newAccountResponse(account))
}

// GetBalance handles GET /accounts/{account_id} and its /balance alias.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["account_id"]

	account, err := h.balanceService.GetBalance(r.Context(), accountID)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.balanceService.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.balanceService.Withdraw)
}

func (h *AccountHandler) mutate(w http.ResponseWriter, r *http.Request, apply func(context.Context, string, decimal.Decimal) (*domain.Account, error)) {
	accountID := mux.Vars(r)["account_id"]

	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, h.logger, err)
		return
	}

	amount, ok, err := parseAmount(req.Amount, "amount")
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	if !ok {
		WriteError(w, h.logger, errors.NewAppError(errors.InvalidArgument, "amount is required"))
		return
	}

	account, err := apply(r.Context(), accountID, amount)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newAccountResponse(account))
}
