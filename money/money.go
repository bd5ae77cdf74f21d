package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// Minor unit exponent per ISO-4217 code. Anything not listed uses DefaultMinorUnits
var minorUnits = map[string]int32{
	"JPY":  0,
	"KRW":  0,
	"VND":  0,
	"CLP":  0,
	"BHD":  3,
	"KWD":  3,
	"JOD":  3,
	"USDC": 6,
}

const DefaultMinorUnits int32 = 2

// Normalize uppercases and validates a currency code
func Normalize(currency string) (code string, err error) {
	code = strings.ToUpper(strings.TrimSpace(currency))
	if len(code) < 3 || len(code) > 4 {
		return code, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return code, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return code, nil
}

func MinorUnits(currency string) (units int32) {
	units, found := minorUnits[strings.ToUpper(currency)]
	if !found {
		return DefaultMinorUnits
	}
	return units
}

// Round applies half-up rounding to the currency's minor unit.
// Only call it where an amount leaves the system
func Round(amount decimal.Decimal, currency string) (rounded decimal.Decimal) {
	return amount.Round(MinorUnits(currency))
}

// ToMinor converts an amount into integer minor units after rounding
func ToMinor(amount decimal.Decimal, currency string) (minor int64) {
	units := MinorUnits(currency)
	return amount.Round(units).Shift(units).IntPart()
}

func FromMinor(minor int64, currency string) (amount decimal.Decimal) {
	return decimal.NewFromInt(minor).Shift(-MinorUnits(currency))
}

// Format renders the rounded amount with the exact number of minor digits
func Format(amount decimal.Decimal, currency string) (s string) {
	return amount.StringFixed(MinorUnits(currency))
}

func ValidateAmount(amount decimal.Decimal) (err error) {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Parse reads a user supplied amount
func Parse(s string) (amount decimal.Decimal, err error) {
	amount, err = decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return amount, fmt.Errorf("failed to parse amount: %w", err)
	}
	return amount, nil
}
