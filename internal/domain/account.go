package domain

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// BalancePlaces is the number of fractional digits a balance is presented with.
const BalancePlaces = 2

const maxAccountIDLength = 64

// Amounts carry at most MaxAmountScale fractional digits and MaxAmountDigits
// integer digits.
const (
	MaxAmountScale  = 18
	MaxAmountDigits = 30
)

var accountIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Account struct {
	ID        string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidAccountID reports whether id is 1-64 characters drawn from
// letters, digits, underscore and hyphen.
func ValidAccountID(id string) bool {
	if len(id) == 0 || len(id) > maxAccountIDLength {
		return false
	}
	return accountIDPattern.MatchString(id)
}

// Quantize rounds d to BalancePlaces fractional digits, half away from zero.
// Balances are never negative, so this is round-half-up.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(BalancePlaces)
}

// FormatBalance renders d quantized with exactly BalancePlaces digits.
func FormatBalance(d decimal.Decimal) string {
	return d.StringFixed(BalancePlaces)
}

// AmountInRange reports whether d fits within MaxAmountScale fractional and
// MaxAmountDigits integer digits. It inspects only the coefficient length and
// exponent, so it stays cheap for values like 1e-2000000000.
func AmountInRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -MaxAmountScale {
		return false
	}
	if d.IsZero() {
		return true
	}
	return int64(d.NumDigits())+exp <= MaxAmountDigits
}
