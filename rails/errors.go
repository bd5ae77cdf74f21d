package rails

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Closed taxonomy of provider failures
type Kind string

const (
	KindNetworkCongestion Kind = "NETWORK_CONGESTION"
	KindInsufficientGas   Kind = "INSUFFICIENT_GAS"
	KindBridgeUnavailable Kind = "BRIDGE_UNAVAILABLE"
	KindCardDeclined      Kind = "CARD_DECLINED"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindValidation        Kind = "VALIDATION"
	KindUnknown           Kind = "UNKNOWN"
)

func (k Kind) Valid() (valid bool) {
	switch k {
	case KindNetworkCongestion, KindInsufficientGas, KindBridgeUnavailable, KindCardDeclined,
		KindInsufficientFunds, KindRateLimited, KindValidation, KindUnknown:
		return true
	default:
		return false
	}
}

type kindDefaults struct {
	retryable        bool
	fallbackEligible bool
	suggestedDelay   time.Duration
	userMessage      string
}

func defaultsFor(kind Kind) (d kindDefaults) {
	switch kind {
	case KindNetworkCongestion:
		return kindDefaults{true, true, 5 * time.Second, "The network is congested. Your transfer is being retried."}
	case KindInsufficientGas:
		return kindDefaults{false, true, 0, "Your transfer is being routed through an alternative provider."}
	case KindBridgeUnavailable:
		return kindDefaults{false, true, 0, "Your transfer is being routed through an alternative provider."}
	case KindCardDeclined:
		return kindDefaults{false, false, 0, "Your card was declined. Please try a different card."}
	case KindInsufficientFunds:
		return kindDefaults{false, false, 0, "Your card has insufficient funds for this transfer."}
	case KindRateLimited:
		return kindDefaults{true, true, 10 * time.Second, "We are experiencing high demand. Your transfer is being retried."}
	case KindValidation:
		return kindDefaults{false, false, 0, "Some transfer details are invalid. Please review them and try again."}
	default:
		return kindDefaults{true, true, 2 * time.Second, "Something went wrong processing your transfer. Please try again."}
	}
}

// Error is the normalized form of every failure reported by a provider
type Error struct {
	Kind Kind
	// Rail and step that produced the failure. Empty before routing
	Rail Rail
	Step Step
	// Same rail retry may succeed
	Retryable bool
	// The alternate rail may succeed
	FallbackEligible bool
	// Minimum wait before the next attempt. Zero lets the backoff decide
	SuggestedDelay time.Duration
	// Safe to show to end users
	UserMessage string
	// Internal detail for logs
	Detail string
	Err    error
}

func NewError(kind Kind, detail string) (e *Error) {
	if !kind.Valid() {
		kind = KindUnknown
	}
	d := defaultsFor(kind)
	return &Error{
		Kind:             kind,
		Retryable:        d.retryable,
		FallbackEligible: d.fallbackEligible,
		SuggestedDelay:   d.suggestedDelay,
		UserMessage:      d.userMessage,
		Detail:           detail,
	}
}

func Wrap(kind Kind, err error) (e *Error) {
	e = NewError(kind, err.Error())
	e.Err = err
	return e
}

func (e *Error) Error() (s string) {
	var where string
	if e.Rail != "" {
		where = fmt.Sprintf(" [%s/%s]", e.Rail, e.Step)
	}
	if e.Detail == "" {
		return string(e.Kind) + where
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, where, e.Detail)
}

func (e *Error) Unwrap() (err error) { return e.Err }

// Stable machine readable code
func (e *Error) Code() (code string) { return string(e.Kind) }

// At returns a copy tagged with the rail and step that failed
func (e *Error) At(rail Rail, step Step) (tagged *Error) {
	copied := *e
	copied.Rail = rail
	copied.Step = step
	return &copied
}

// Classify coerces any error into an *Error. Unrecognized failures become
// UNKNOWN and retryable
func Classify(err error) (e *Error) {
	if err == nil {
		return nil
	}

	var providerErr *Error
	if errors.As(err, &providerErr) {
		copied := *providerErr
		return &copied
	}

	if errors.Is(err, context.Canceled) {
		e = Wrap(KindUnknown, err)
		e.Retryable = false
		e.FallbackEligible = false
		return e
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e = Wrap(KindUnknown, err)
		e.Detail = "timeout: " + e.Detail
		return e
	}
	return Wrap(KindUnknown, err)
}

func IsKind(err error, kind Kind) (is bool) {
	var providerErr *Error
	return errors.As(err, &providerErr) && providerErr.Kind == kind
}

// UserMessage returns the user safe message of err
func UserMessage(err error) (message string) {
	return Classify(err).UserMessage
}

// Recovery action for a failure
type Strategy string

const (
	// Same rail, same parameters, after a backoff
	StrategyRetry Strategy = "retry"
	// Same rail, once, with adjusted parameters
	StrategyAdjust Strategy = "adjust"
	// Re-execute on the alternate rail
	StrategyFallback Strategy = "fallback"
	// Surface the error unchanged
	StrategyAbort Strategy = "abort"
)

// Decide maps an error to its first recovery action. Callers move to
// StrategyFallback or StrategyAbort once retries are spent, following FallbackEligible
func Decide(e *Error) (strategy Strategy) {
	switch {
	case e == nil:
		return StrategyAbort
	case e.Kind == KindNetworkCongestion && e.Retryable:
		return StrategyAdjust
	case e.Retryable:
		return StrategyRetry
	case e.FallbackEligible:
		return StrategyFallback
	default:
		return StrategyAbort
	}
}

// Exhausted is the action once same rail recovery gave up
func Exhausted(e *Error) (strategy Strategy) {
	if e != nil && e.FallbackEligible {
		return StrategyFallback
	}
	return StrategyAbort
}
