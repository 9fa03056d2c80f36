package handler

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"account-balances/internal/errors"
)

// maxBodyBytes bounds request bodies; every payload here is a single amount.
const maxBodyBytes = 1 << 16

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

// WriteError renders err in the error envelope. Errors that are not an
// *errors.AppError are reported as internal errors without leaking their text.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	appErr := errors.AsAppError(err)
	statusCode := appErr.HTTPStatus()

	if statusCode >= http.StatusInternalServerError && logger != nil {
		logger.Error("Request failed", "code", appErr.Code, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}})
}

// decodeJSON reads an optional JSON object body into dst. An empty body
// leaves dst untouched; anything after the object is rejected.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		return errors.NewAppError(errors.InvalidRequestBody, "request body must be a JSON object").WithDetails(err.Error())
	}
	if err := dec.Decode(&struct{}{}); !stderrors.Is(err, io.EOF) {
		return errors.NewAppError(errors.InvalidRequestBody, "request body must hold a single JSON object")
	}
	return nil
}

// parseAmount accepts a JSON number or a string holding a decimal, keeping
// every digit. A missing or null value is reported as absent.
func parseAmount(raw json.RawMessage, field string) (decimal.Decimal, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, false, nil
	}

	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(raw); err != nil {
		return decimal.Zero, false, errors.NewAppErrorf(errors.InvalidArgument, "%s must be a decimal number", field).WithDetails(string(raw))
	}
	return amount, true, nil
}
