package domain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// FeeRate is the escrow fee charged on top of the transaction amount.
var FeeRate = decimal.RequireFromString("0.01")

var msisdnPattern = regexp.MustCompile(`^\+?254[0-9]{9}$`)

var ErrInvalidAmount = errors.New("amount must be a number greater than zero")

// CalculateFee returns ceil(amount * 1%). Any positive amount yields at least 1.
func CalculateFee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(FeeRate).Ceil()
}

// ParseAmount parses user input into a strictly positive decimal.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}

// ValidMSISDN reports whether phone is a Kenyan mobile number (+254XXXXXXXXX or 254XXXXXXXXX).
func ValidMSISDN(phone string) bool {
	return msisdnPattern.MatchString(phone)
}
