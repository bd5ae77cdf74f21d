package quote

import (
	"strings"

	"github.com/shopspring/decimal"
)

type FeeSchedule struct {
	// Card processing, percentage of the send amount plus a fixed amount
	CardPercent decimal.Decimal
	CardFixed   decimal.Decimal
	// Transfer fee, percentage of the send amount
	TransferPercent decimal.Decimal
	// Overrides of the built in payout table, in destination currency
	PayoutFees map[string]decimal.Decimal
}

func DefaultFeeSchedule() (s FeeSchedule) {
	return FeeSchedule{
		CardPercent:     decimal.RequireFromString("0.029"),
		CardFixed:       decimal.RequireFromString("0.30"),
		TransferPercent: decimal.RequireFromString("0.005"),
	}
}

// Payout fee charged by the destination corridor, in its own currency
func payoutFee(currency string) (fee decimal.Decimal) {
	switch currency {
	case "EUR":
		return decimal.RequireFromString("2.50")
	case "GBP":
		return decimal.RequireFromString("2.00")
	case "CAD":
		return decimal.RequireFromString("3.00")
	case "MXN":
		return decimal.NewFromInt(35)
	case "INR":
		return decimal.NewFromInt(150)
	case "PHP":
		return decimal.NewFromInt(100)
	case "NGN":
		return decimal.NewFromInt(2500)
	case "JPY":
		return decimal.NewFromInt(300)
	default:
		return decimal.RequireFromString("3.00")
	}
}

func (s FeeSchedule) PayoutFee(currency string) (fee decimal.Decimal) {
	currency = strings.ToUpper(currency)
	if override, found := s.PayoutFees[currency]; found {
		return override
	}
	return payoutFee(currency)
}

// Compute returns the unrounded fee breakdown and the amount the recipient receives.
//
//	receive = (amount - card) * rate - transfer * rate - payout
func (s FeeSchedule) Compute(amount, rate decimal.Decimal, from, to string) (fees Fees, receive decimal.Decimal) {
	fees.Currency = from
	if amount.IsZero() {
		return fees, decimal.Zero
	}

	fees.Percentage = amount.Mul(s.CardPercent)
	fees.Fixed = s.CardFixed
	fees.CardProcessing = fees.Percentage.Add(fees.Fixed)
	fees.Routing = amount.Mul(s.TransferPercent)
	fees.PayoutLocal = s.PayoutFee(to)
	fees.Payout = fees.PayoutLocal.Div(rate)
	fees.Total = fees.CardProcessing.Add(fees.Routing).Add(fees.Payout)

	receive = amount.Sub(fees.CardProcessing).Mul(rate).
		Sub(fees.Routing.Mul(rate)).
		Sub(fees.PayoutLocal)
	return fees, receive
}
