package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	minAmount = decimal.New(1, -2)
	maxAmount = decimal.New(1, 10)
	hundred   = decimal.NewFromInt(100)
)

// ParseAmount reads a decimal amount, dropping thousands separators and
// surrounding whitespace. The sign is preserved.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ValidateAmount checks a stored money value: at least 0.01, two decimal
// places, twelve digits.
func ValidateAmount(d decimal.Decimal) error {
	if d.LessThan(minAmount) {
		return ErrAmountTooSmall
	}
	if !d.Equal(d.Round(2)) {
		return ErrAmountPrecision
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

// ToCents converts a two-place amount to integer cents.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer cents back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
