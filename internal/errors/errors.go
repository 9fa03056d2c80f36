package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	InvalidArgument      ErrorCode = "invalid_argument"
	AccountNotFound      ErrorCode = "account_not_found"
	DuplicateAccount     ErrorCode = "duplicate_account"
	InsufficientFunds    ErrorCode = "insufficient_funds"
	StoreUnavailable     ErrorCode = "store_unavailable"
	InternalError        ErrorCode = "internal_error"
	InvalidRequestBody   ErrorCode = "invalid_request_body"
	UnsupportedMediaType ErrorCode = "unsupported_media_type"
	MethodNotAllowed     ErrorCode = "method_not_allowed"
	RouteNotFound        ErrorCode = "route_not_found"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	cause error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *AppError carrying the same code, so
// errors.Is(err, ErrAccountNotFound) holds for any account_not_found error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) Unwrap() error {
	return e.cause
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetails returns a copy of e carrying details. Predefined errors are
// shared, so they are never mutated in place.
func (e *AppError) WithDetails(details string) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCause returns a copy of e wrapping err.
func (e *AppError) WithCause(err error) *AppError {
	clone := *e
	clone.cause = err
	return &clone
}

// HTTPStatus maps the error code onto the transport status vocabulary.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case InvalidArgument:
		return http.StatusUnprocessableEntity
	case InvalidRequestBody, InsufficientFunds:
		return http.StatusBadRequest
	case AccountNotFound, RouteNotFound:
		return http.StatusNotFound
	case DuplicateAccount:
		return http.StatusConflict
	case UnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case MethodNotAllowed:
		return http.StatusMethodNotAllowed
	case StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrInvalidAccountID       = NewAppError(InvalidArgument, "account id must be 1-64 characters of letters, digits, '_' or '-'")
	ErrInvalidAmount          = NewAppError(InvalidArgument, "amount must be greater than zero")
	ErrNegativeInitial        = NewAppError(InvalidArgument, "initial balance must not be negative")
	ErrAmountOutOfRange       = NewAppError(InvalidArgument, "amount must have at most 30 integer and 18 fractional digits")
	ErrAccountNotFound        = NewAppError(AccountNotFound, "account not found")
	ErrDuplicateAccount       = NewAppError(DuplicateAccount, "account already exists")
	ErrInsufficientFunds      = NewAppError(InsufficientFunds, "insufficient funds")
	ErrStoreUnavailable       = NewAppError(StoreUnavailable, "ledger store unavailable")
	ErrCannotBeginTransaction = NewAppError(InternalError, "executor cannot begin a transaction")
)

// AsAppError extracts an *AppError from err. Errors that carry none are
// reported as internal errors wrapping the original.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewAppError(InternalError, "an unexpected error occurred").WithCause(err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func New(text string) error {
	return stderrors.New(text)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
