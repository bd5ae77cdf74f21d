package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/RogueTeam/remit/cache"
	"github.com/RogueTeam/remit/money"
	"github.com/RogueTeam/remit/random"
	"github.com/RogueTeam/remit/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DefaultQuoteTTL     = 30 * time.Second
	DefaultFallbackTTL  = 10 * time.Second
	DefaultLockDuration = 10 * time.Minute
)

// Live rate provider. rails.Custodial satisfies it
type PricingSource interface {
	Rate(ctx context.Context, from, to string) (rate decimal.Decimal, err error)
}

type (
	Config struct {
		// Quote cache and lock map
		Store cache.Store
		// Optional. Without it only the fallback table is used
		Source PricingSource
		Clock  utils.Clock
		Logger logrus.FieldLogger
		Fees   FeeSchedule
		// Units per US dollar used when Source fails
		FallbackRates map[string]decimal.Decimal
		QuoteTTL      time.Duration
		FallbackTTL   time.Duration
		LockDuration  time.Duration
	}
	QuoteRequest struct {
		From string
		To   string
		// Optional. Zero returns the rate without a fee breakdown
		Amount decimal.Decimal
	}
	LockRequest struct {
		From   string
		To     string
		Amount decimal.Decimal
		// Zero uses the engine default
		Duration time.Duration
	}
)

type Engine struct {
	store         cache.Store
	source        PricingSource
	clock         utils.Clock
	logger        logrus.FieldLogger
	fees          FeeSchedule
	fallbackRates map[string]decimal.Decimal
	quoteTTL      time.Duration
	fallbackTTL   time.Duration
	lockDuration  time.Duration
}

func New(config Config) (e *Engine) {
	e = &Engine{
		store:         config.Store,
		source:        config.Source,
		clock:         config.Clock,
		logger:        config.Logger,
		fees:          config.Fees,
		fallbackRates: config.FallbackRates,
		quoteTTL:      config.QuoteTTL,
		fallbackTTL:   config.FallbackTTL,
		lockDuration:  config.LockDuration,
	}
	if e.clock == nil {
		e.clock = utils.SystemClock{}
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.fees.CardPercent.IsZero() && e.fees.CardFixed.IsZero() && e.fees.TransferPercent.IsZero() {
		overrides := e.fees.PayoutFees
		e.fees = DefaultFeeSchedule()
		e.fees.PayoutFees = overrides
	}
	if e.fallbackRates == nil {
		e.fallbackRates = DefaultFallbackRates()
	}
	if e.quoteTTL <= 0 {
		e.quoteTTL = DefaultQuoteTTL
	}
	if e.fallbackTTL <= 0 {
		e.fallbackTTL = DefaultFallbackTTL
	}
	if e.lockDuration <= 0 {
		e.lockDuration = DefaultLockDuration
	}
	return e
}

func normalizePair(from, to string) (f, t string, err error) {
	f, err = money.Normalize(from)
	if err != nil {
		return f, t, err
	}
	t, err = money.Normalize(to)
	if err != nil {
		return f, t, err
	}
	if f == t {
		return f, t, ErrSameCurrency
	}
	return f, t, nil
}

func (e *Engine) cachedRate(ctx context.Context, from, to string) (rate Rate, found bool) {
	contents, err := e.store.Get(ctx, QuoteKey(from, to))
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			e.logger.WithError(err).Warn("failed to read quote cache")
		}
		return rate, false
	}
	err = json.Unmarshal(contents, &rate)
	if err != nil {
		e.logger.WithError(err).Warn("discarding corrupted quote cache entry")
		return rate, false
	}
	return rate, e.clock.Now().Before(rate.ValidUntil)
}

// Rate returns the current rate of the pair, from cache when still valid
func (e *Engine) Rate(ctx context.Context, from, to string) (rate Rate, err error) {
	rate, found := e.cachedRate(ctx, from, to)
	if found {
		return rate, nil
	}

	now := e.clock.Now()
	rate = Rate{From: from, To: to, ComputedAt: now}

	var live decimal.Decimal
	if e.source != nil {
		live, err = e.source.Rate(ctx, from, to)
		if err != nil {
			e.logger.
				WithFields(logrus.Fields{"from": from, "to": to}).
				WithError(err).
				Warn("pricing source failed, using fallback rates")
		}
	}

	ttl := e.quoteTTL
	switch {
	case e.source != nil && err == nil && live.IsPositive():
		rate.Rate = live
		rate.Source = SourceLive
	default:
		fallback, found := crossRate(e.fallbackRates, from, to)
		if !found {
			return rate, fmt.Errorf("%w: %s-%s", ErrPairUnsupported, from, to)
		}
		rate.Rate = fallback
		rate.Source = SourceFallback
		ttl = e.fallbackTTL
	}
	rate.ValidUntil = now.Add(ttl)

	contents, _ := json.Marshal(rate)
	err = e.store.Set(ctx, QuoteKey(from, to), contents, ttl)
	if err != nil {
		e.logger.WithError(err).Warn("failed to cache quote")
	}
	return rate, nil
}

// GetQuote prices req. Amounts are kept unrounded
func (e *Engine) GetQuote(ctx context.Context, req QuoteRequest) (quote Quote, err error) {
	from, to, err := normalizePair(req.From, req.To)
	if err != nil {
		return quote, err
	}
	if req.Amount.IsNegative() {
		return quote, money.ErrInvalidAmount
	}

	rate, err := e.Rate(ctx, from, to)
	if err != nil {
		return quote, fmt.Errorf("failed to retrieve rate: %w", err)
	}

	fees, receive := e.fees.Compute(req.Amount, rate.Rate, from, to)
	quote = Quote{
		From:          from,
		To:            to,
		Rate:          rate.Rate,
		InverseRate:   decimal.NewFromInt(1).Div(rate.Rate),
		Fees:          fees,
		SendAmount:    req.Amount,
		ReceiveAmount: receive,
		Source:        rate.Source,
		ComputedAt:    rate.ComputedAt,
		ValidUntil:    rate.ValidUntil,
	}
	return quote, nil
}

// LockRate guarantees a quote for a limited time. Every call creates a new lock
func (e *Engine) LockRate(ctx context.Context, req LockRequest) (locked LockedRate, err error) {
	err = money.ValidateAmount(req.Amount)
	if err != nil {
		return locked, err
	}

	quote, err := e.GetQuote(ctx, QuoteRequest{From: req.From, To: req.To, Amount: req.Amount})
	if err != nil {
		return locked, err
	}
	if !quote.ReceiveAmount.IsPositive() {
		return locked, ErrAmountTooSmall
	}

	duration := req.Duration
	if duration <= 0 {
		duration = e.lockDuration
	}

	now := e.clock.Now()
	locked = LockedRate{
		Id:            random.Id("rl", 24),
		Quote:         quote,
		SendAmount:    quote.SendAmount,
		ReceiveAmount: quote.ReceiveAmount,
		LockedAt:      now,
		ExpiresAt:     now.Add(duration),
	}

	err = e.store.Set(ctx, LockKey(locked.Id), locked.Bytes(), duration)
	if err != nil {
		return locked, fmt.Errorf("failed to store rate lock: %w", err)
	}
	e.logger.WithFields(logrus.Fields{
		"rate_id":    locked.Id,
		"pair":       quote.From + "-" + quote.To,
		"expires_at": locked.ExpiresAt,
	}).Debug("rate locked")
	return locked, nil
}

// GetLockedRate returns ErrRateNotFound for unknown or expired locks
func (e *Engine) GetLockedRate(ctx context.Context, id string) (locked LockedRate, err error) {
	contents, err := e.store.Get(ctx, LockKey(id))
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return locked, ErrRateNotFound
	case err != nil:
		return locked, fmt.Errorf("failed to read rate lock: %w", err)
	}

	err = locked.FromBytes(contents)
	if err != nil {
		return locked, fmt.Errorf("failed to decode rate lock: %w", err)
	}

	if locked.Expired(e.clock.Now()) {
		err = e.store.Delete(ctx, LockKey(id))
		if err != nil {
			e.logger.WithError(err).Warn("failed to delete expired rate lock")
		}
		return LockedRate{}, ErrRateNotFound
	}
	return locked, nil
}

var errLockExpired = errors.New("lock expired")

// ConsumeLockedRate marks the lock used. Only the first call succeeds
func (e *Engine) ConsumeLockedRate(ctx context.Context, id string) (locked LockedRate, err error) {
	now := e.clock.Now()
	err = e.store.Update(ctx, LockKey(id), func(current []byte) (next []byte, err error) {
		err = locked.FromBytes(current)
		if err != nil {
			return nil, fmt.Errorf("failed to decode rate lock: %w", err)
		}
		switch {
		case locked.Expired(now):
			return nil, errLockExpired
		case locked.Consumed:
			return nil, ErrRateConsumed
		}
		locked.Consumed = true
		locked.ConsumedAt = now
		return locked.Bytes(), nil
	})
	switch {
	case err == nil:
		return locked, nil
	case errors.Is(err, cache.ErrNotFound), errors.Is(err, errLockExpired):
		return LockedRate{}, ErrRateNotFound
	case errors.Is(err, ErrRateConsumed):
		return LockedRate{}, ErrRateConsumed
	default:
		return LockedRate{}, fmt.Errorf("failed to consume rate lock: %w", err)
	}
}

// PurgeExpired drops expired locks and quotes
func (e *Engine) PurgeExpired(ctx context.Context) (purged int, err error) {
	for _, prefix := range []string{locksPrefix, quotesPrefix} {
		count, err := e.store.Purge(ctx, prefix)
		if err != nil {
			return purged, fmt.Errorf("failed to purge %s: %w", prefix, err)
		}
		purged += count
	}
	return purged, nil
}
