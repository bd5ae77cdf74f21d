package routing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RogueTeam/remit/rails"
	"github.com/shopspring/decimal"
)

// ByAmount is the amount based choice. Monotonic around the threshold
func (r *Router) ByAmount(amount decimal.Decimal) (rail rails.Rail) {
	if amount.LessThan(r.threshold) {
		return r.below
	}
	return r.above
}

// unavailable returns why rail cannot serve currency, or empty when it can.
// The breaker is only inspected, see admit
func (r *Router) unavailable(rail rails.Rail, currency string) (reason string) {
	config := r.rails[rail]
	switch {
	case config.Disabled:
		return ReasonRailDisabled
	case len(config.Currencies) > 0 && !slices.ContainsFunc(config.Currencies, func(c string) bool {
		return strings.EqualFold(c, currency)
	}):
		return ReasonUnsupportedCurrency
	case !r.breakers[rail].Available():
		return ReasonCircuitOpen
	default:
		return ""
	}
}

// admit is unavailable for the rail about to run. It takes the half open
// trial slot of the breaker
func (r *Router) admit(rail rails.Rail, currency string) (reason string) {
	reason = r.unavailable(rail, currency)
	if reason == "" && !r.breakers[rail].Allow() {
		reason = ReasonCircuitOpen
	}
	return reason
}

// Select picks the rail for req. reason is set when the first choice could
// not serve the request and the alternate was taken instead
func (r *Router) Select(req *Request) (rail rails.Rail, reason string, err error) {
	first := req.PreferredRail
	if first == "" {
		first = r.ByAmount(req.SendAmount)
	}

	reason = r.admit(first, req.ReceiveCurrency)
	if reason == "" {
		return first, "", nil
	}

	alternate := first.Alternate()
	if alternateReason := r.admit(alternate, req.ReceiveCurrency); alternateReason != "" {
		kind := rails.KindValidation
		if reason == ReasonCircuitOpen || alternateReason == ReasonCircuitOpen {
			kind = rails.KindBridgeUnavailable
		}
		e := rails.NewError(kind, fmt.Sprintf("no rail can serve %s: %s=%s %s=%s",
			req.ReceiveCurrency, first, reason, alternate, alternateReason))
		e.UserMessage = "Transfers to this currency are temporarily unavailable."
		return "", "", e
	}
	return alternate, reason, nil
}
