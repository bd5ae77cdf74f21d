package money_test

import (
	"testing"

	"github.com/RogueTeam/remit/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_Round(t *testing.T) {
	type Test struct {
		Reference string
		Currency  string
		Expect    string
	}
	tests := []Test{
		{Reference: `79.355`, Currency: "EUR", Expect: "79.36"},
		{Reference: `79.354999`, Currency: "EUR", Expect: "79.35"},
		{Reference: `0.005`, Currency: "USD", Expect: "0.01"},
		{Reference: `1234.5`, Currency: "JPY", Expect: "1235"},
		{Reference: `1.0005`, Currency: "KWD", Expect: "1.001"},
		{Reference: `10`, Currency: "usd", Expect: "10.00"},
	}
	for _, test := range tests {
		t.Run(test.Reference+test.Currency, func(t *testing.T) {
			assertions := assert.New(t)

			amount, err := money.Parse(test.Reference)
			if !assertions.Nil(err, "failed to parse amount") {
				return
			}
			rounded := money.Round(amount, test.Currency)
			assertions.Equal(test.Expect, money.Format(rounded, test.Currency))
		})
	}
}

func Test_Minor(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		assertions := assert.New(t)

		minor := money.ToMinor(decimal.RequireFromString("100.255"), "USD")
		assertions.EqualValues(10026, minor)
		assertions.Equal("100.26", money.FromMinor(minor, "USD").StringFixed(2))
	})
	t.Run("ZeroDecimals", func(t *testing.T) {
		assertions := assert.New(t)

		minor := money.ToMinor(decimal.RequireFromString("999.4"), "JPY")
		assertions.EqualValues(999, minor)
	})
}

func Test_Normalize(t *testing.T) {
	assertions := assert.New(t)

	code, err := money.Normalize(" eur ")
	assertions.Nil(err, "failed to normalize")
	assertions.Equal("EUR", code)

	_, err = money.Normalize("E1R")
	assertions.ErrorIs(err, money.ErrInvalidCurrency)

	_, err = money.Normalize("")
	assertions.ErrorIs(err, money.ErrInvalidCurrency)

	assertions.ErrorIs(money.ValidateAmount(decimal.Zero), money.ErrInvalidAmount)
	assertions.Nil(money.ValidateAmount(decimal.NewFromInt(1)))
}
