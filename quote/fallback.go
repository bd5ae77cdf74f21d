package quote

import (
	"github.com/shopspring/decimal"
)

// Units of each currency per US dollar. Used only when the live source fails
func DefaultFallbackRates() (rates map[string]decimal.Decimal) {
	return map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("0.85"),
		"GBP": decimal.RequireFromString("0.79"),
		"CAD": decimal.RequireFromString("1.36"),
		"MXN": decimal.RequireFromString("17.10"),
		"INR": decimal.RequireFromString("83.20"),
		"PHP": decimal.RequireFromString("56.00"),
		"NGN": decimal.NewFromInt(1500),
		"JPY": decimal.NewFromInt(150),
	}
}

// Crosses both currencies through the dollar
func crossRate(table map[string]decimal.Decimal, from, to string) (rate decimal.Decimal, found bool) {
	perDollarFrom, foundFrom := table[from]
	perDollarTo, foundTo := table[to]
	if !foundFrom || !foundTo || !perDollarFrom.IsPositive() || !perDollarTo.IsPositive() {
		return rate, false
	}
	return perDollarTo.Div(perDollarFrom), true
}
