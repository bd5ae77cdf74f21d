package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RogueTeam/remit/money"
	"github.com/shopspring/decimal"
)

var (
	ErrPairUnsupported = errors.New("currency pair not supported")
	ErrSameCurrency    = errors.New("source and destination currencies are equal")
	ErrAmountTooSmall  = errors.New("amount does not cover the fees")
	ErrRateNotFound    = errors.New("rate lock not found or expired")
	ErrRateConsumed    = errors.New("rate lock already consumed")
)

// Where a rate came from
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

const (
	quotesPrefix = "/quotes/"
	locksPrefix  = "/locks/"
)

func QuoteKey(from, to string) (key string) {
	return fmt.Sprintf("%s%s-%s", quotesPrefix, from, to)
}

func LockKey(id string) (key string) {
	return locksPrefix + id
}

type (
	// Cached mid rate of a pair
	Rate struct {
		From       string
		To         string
		Rate       decimal.Decimal
		Source     Source
		ComputedAt time.Time
		ValidUntil time.Time
	}
	// Fee breakdown. Every field except PayoutLocal is in the send currency
	Fees struct {
		Currency string
		// Percentage part of the card fee
		Percentage decimal.Decimal
		// Fixed part of the card fee
		Fixed          decimal.Decimal
		CardProcessing decimal.Decimal
		// Transfer fee
		Routing decimal.Decimal
		Payout  decimal.Decimal
		// Payout fee in the destination currency
		PayoutLocal decimal.Decimal
		Total       decimal.Decimal
	}
	Quote struct {
		From          string
		To            string
		Rate          decimal.Decimal
		InverseRate   decimal.Decimal
		Fees          Fees
		SendAmount    decimal.Decimal
		ReceiveAmount decimal.Decimal
		Source        Source
		ComputedAt    time.Time
		ValidUntil    time.Time
	}
	LockedRate struct {
		Id            string
		Quote         Quote
		SendAmount    decimal.Decimal
		ReceiveAmount decimal.Decimal
		LockedAt      time.Time
		ExpiresAt     time.Time
		Consumed      bool
		ConsumedAt    time.Time
	}
)

// Rounded returns the copy shown to users. Amounts are rounded half-up to
// the minor unit of their currency, rates are left untouched
func (q Quote) Rounded() (rounded Quote) {
	rounded = q
	send := func(d decimal.Decimal) decimal.Decimal { return money.Round(d, q.From) }

	rounded.Fees.Percentage = send(q.Fees.Percentage)
	rounded.Fees.Fixed = send(q.Fees.Fixed)
	rounded.Fees.CardProcessing = send(q.Fees.CardProcessing)
	rounded.Fees.Routing = send(q.Fees.Routing)
	rounded.Fees.Payout = send(q.Fees.Payout)
	rounded.Fees.Total = send(q.Fees.Total)
	rounded.Fees.PayoutLocal = money.Round(q.Fees.PayoutLocal, q.To)
	rounded.SendAmount = send(q.SendAmount)
	rounded.ReceiveAmount = money.Round(q.ReceiveAmount, q.To)
	return rounded
}

func (l LockedRate) Rounded() (rounded LockedRate) {
	rounded = l
	rounded.Quote = l.Quote.Rounded()
	rounded.SendAmount = money.Round(l.SendAmount, l.Quote.From)
	rounded.ReceiveAmount = money.Round(l.ReceiveAmount, l.Quote.To)
	return rounded
}

func (l *LockedRate) Expired(now time.Time) (expired bool) {
	return !now.Before(l.ExpiresAt)
}

func (l *LockedRate) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(l)
	return bytes
}

func (l *LockedRate) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, l)
}
