package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/RogueTeam/remit/money"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Pseudo rail of the card leg, shared by both rails
const railCard rails.Rail = "card"

// One provider call. generation counts parameter adjustments
type call func(ctx context.Context, key string, generation int) (op rails.Operation, err error)

func (r *Router) backoff() (b retry.Backoff) {
	b = retry.NewExponential(r.baseDelay)
	if r.jitterPercent > 0 {
		b = retry.WithJitterPercent(r.jitterPercent, b)
	}
	b = retry.WithCappedDuration(r.maxDelay, b)
	return retry.WithMaxRetries(uint64(r.maxAttempts-1), b)
}

func abort(err error, rail rails.Rail, step rails.Step) (e *rails.Error) {
	e = rails.Classify(err).At(rail, step)
	e.Retryable = false
	e.FallbackEligible = false
	return e
}

// attempt runs fn applying the same rail part of the decision table
func (r *Router) attempt(ctx context.Context, req *Request, rail rails.Rail, step rails.Step, metadata *Metadata, fn call) (op rails.Operation, err error) {
	logger := r.logger.WithFields(logrus.Fields{
		"transaction_id": req.TransactionId,
		"rail":           rail,
		"step":           step,
	})

	backoff := r.backoff()
	var generation int
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return op, abort(ctx.Err(), rail, step)
		}

		metadata.Attempts++
		op, err = fn(ctx, IdempotencyKey(req.TransactionId, rail, step, generation), generation)
		if err == nil {
			return op, nil
		}

		e := rails.Classify(err).At(rail, step)
		strategy := rails.Decide(e)
		if strategy == rails.StrategyAdjust && !(rail == rails.RailBlockchain && step == rails.StepTransfer) {
			// Only the chain transfer has a price to bump
			strategy = rails.StrategyRetry
		}

		switch strategy {
		case rails.StrategyAdjust:
			if generation > 0 {
				return op, e
			}
			generation++
			logger.WithError(e).Warnf("[%s] Attempt %d underpriced, retrying with gas bumped", rail, attempt)
		case rails.StrategyRetry:
			delay, stop := backoff.Next()
			if stop || attempt >= r.maxAttempts {
				logger.WithError(e).Errorf("[%s] All %d attempts failed", rail, attempt)
				return op, e
			}
			if e.SuggestedDelay > delay {
				delay = e.SuggestedDelay
			}
			logger.WithError(e).Warnf("[%s] Attempt %d failed, retrying in %v", rail, attempt, delay)

			err = utils.Sleep(ctx, r.clock, delay)
			if err != nil {
				return op, abort(err, rail, step)
			}
		default:
			return op, e
		}
	}
}

// charge captures the card and waits for the acquirer to confirm it
func (r *Router) charge(ctx context.Context, req *Request, metadata *Metadata) (chargeId string, err error) {
	var charge rails.Charge
	_, err = r.attempt(ctx, req, railCard, rails.StepCharge, metadata, func(ctx context.Context, key string, _ int) (op rails.Operation, err error) {
		charge, err = r.acquirer.Charge(ctx, rails.ChargeRequest{
			IdempotencyKey: key,
			AmountMinor:    money.ToMinor(req.SendAmount, req.SendCurrency),
			Currency:       req.SendCurrency,
			CardToken:      req.CardToken,
			Description:    fmt.Sprintf("transfer %s", req.TransactionId),
		})
		return rails.Operation{Id: charge.Id}, err
	})
	if err != nil {
		return "", err
	}

	backoff := r.backoff()
	for polls := 1; ; polls++ {
		switch charge.Status {
		case rails.ChargeStatusSucceeded:
			return charge.Id, nil
		case rails.ChargeStatusFailed:
			e := rails.NewError(rails.KindCardDeclined, "charge failed: "+charge.DeclineCode).At(railCard, rails.StepCharge)
			return "", e
		}
		if polls > r.confirmAttempts {
			e := rails.NewError(rails.KindValidation, "charge still pending after confirmation window").At(railCard, rails.StepCharge)
			e.UserMessage = "Your card payment could not be confirmed. Please try again."
			return "", e
		}

		delay, stop := backoff.Next()
		if stop {
			delay = r.maxDelay
		}
		err = utils.Sleep(ctx, r.clock, delay)
		if err != nil {
			return "", abort(err, railCard, rails.StepCharge)
		}

		id := charge.Id
		_, err = r.attempt(ctx, req, railCard, rails.StepCharge, metadata, func(ctx context.Context, _ string, _ int) (op rails.Operation, err error) {
			charge, err = r.acquirer.GetCharge(ctx, id)
			return rails.Operation{Id: charge.Id}, err
		})
		if err != nil {
			return "", err
		}
	}
}

type stage struct {
	step rails.Step
	run  call
}

func (r *Router) stages(rail rails.Rail, req *Request, chargeId string, ref *rails.ProviderRef) (stages []stage) {
	payout := money.Round(req.ReceiveAmount, req.ReceiveCurrency)
	settlement := money.Round(req.SettlementAmount, SettlementCurrency)

	switch {
	case r.custodial != nil && rail == rails.RailCustodial:
		return []stage{
			{rails.StepPayment, func(ctx context.Context, key string, _ int) (rails.Operation, error) {
				return r.custodial.CreatePayment(ctx, rails.PaymentRequest{
					IdempotencyKey: key,
					ChargeId:       chargeId,
					Amount:         req.SendAmount,
					Currency:       req.SendCurrency,
				})
			}},
			{rails.StepTransfer, func(ctx context.Context, key string, _ int) (rails.Operation, error) {
				return r.custodial.CreateWalletTransfer(ctx, rails.WalletTransferRequest{
					IdempotencyKey: key,
					PaymentId:      ref.PaymentId,
					Amount:         settlement,
					Currency:       SettlementCurrency,
					Beneficiary:    req.Beneficiary,
				})
			}},
			{rails.StepPayout, func(ctx context.Context, key string, _ int) (rails.Operation, error) {
				return r.custodial.CreatePayout(ctx, rails.PayoutRequest{
					IdempotencyKey: key,
					TransferId:     ref.TransferId,
					Amount:         payout,
					Currency:       req.ReceiveCurrency,
					Beneficiary:    req.Beneficiary,
				})
			}},
		}
	case r.blockchain != nil && rail == rails.RailBlockchain:
		return []stage{
			{rails.StepPayment, func(ctx context.Context, key string, _ int) (rails.Operation, error) {
				return r.blockchain.ConvertToStablecoin(ctx, rails.ConvertRequest{
					IdempotencyKey: key,
					Amount:         req.NetAmount,
					From:           req.SendCurrency,
					To:             SettlementCurrency,
				})
			}},
			{rails.StepTransfer, func(ctx context.Context, key string, generation int) (rails.Operation, error) {
				gas := decimal.NewFromInt(1)
				for range generation {
					gas = gas.Mul(r.gasBump)
				}
				return r.blockchain.InitiateTransfer(ctx, rails.ChainTransferRequest{
					IdempotencyKey: key,
					SourceId:       ref.PaymentId,
					Amount:         settlement,
					Currency:       SettlementCurrency,
					Destination:    req.Beneficiary.WalletAddress,
					GasMultiplier:  gas,
				})
			}},
			{rails.StepPayout, func(ctx context.Context, key string, _ int) (rails.Operation, error) {
				return r.blockchain.ConvertFromStablecoin(ctx, rails.ConvertRequest{
					IdempotencyKey: key,
					Amount:         payout,
					From:           SettlementCurrency,
					To:             req.ReceiveCurrency,
				})
			}},
		}
	default:
		return nil
	}
}

// runRail executes every rail step. ref holds whatever completed, even on failure
func (r *Router) runRail(ctx context.Context, req *Request, rail rails.Rail, chargeId string, metadata *Metadata) (ref rails.ProviderRef, err error) {
	stages := r.stages(rail, req, chargeId, &ref)
	if len(stages) == 0 {
		return ref, rails.NewError(rails.KindBridgeUnavailable, "no client configured").At(rail, rails.StepPayment)
	}

	for _, stage := range stages {
		op, err := r.attempt(ctx, req, rail, stage.step, metadata, stage.run)
		if err != nil {
			r.breakers[rail].Record(err)
			return ref, err
		}
		ref = ref.With(stage.step, op.Id)
	}
	r.breakers[rail].Record(nil)
	return ref, nil
}

func validate(req *Request) (err error) {
	switch {
	case req.TransactionId == uuid.Nil:
		return rails.NewError(rails.KindValidation, "transaction id is required")
	case !req.SendAmount.IsPositive(), !req.ReceiveAmount.IsPositive():
		return rails.NewError(rails.KindValidation, "amounts must be positive")
	case req.SendCurrency == "", req.ReceiveCurrency == "":
		return rails.NewError(rails.KindValidation, "currencies are required")
	case req.CardToken == "":
		return rails.NewError(rails.KindValidation, "card token is required")
	case req.PreferredRail != "" && req.PreferredRail.Validate() != nil:
		return rails.NewError(rails.KindValidation, req.PreferredRail.Validate().Error())
	}

	if req.NetAmount.IsZero() {
		req.NetAmount = req.SendAmount
	}
	if req.SettlementAmount.IsZero() && strings.EqualFold(req.SendCurrency, "USD") {
		req.SettlementAmount = req.NetAmount
	}
	switch {
	case !req.NetAmount.IsPositive(), req.NetAmount.GreaterThan(req.SendAmount):
		return rails.NewError(rails.KindValidation, "net amount must be positive and within the send amount")
	case !req.SettlementAmount.IsPositive():
		return rails.NewError(rails.KindValidation, "settlement amount is required")
	}
	return nil
}

// Execute moves req through the card charge and one rail, falling back to the
// alternate rail when the failure allows it. Every error is a *rails.Error
func (r *Router) Execute(ctx context.Context, req Request) (result Result, err error) {
	err = validate(&req)
	if err != nil {
		return result, err
	}

	logger := r.logger.WithField("transaction_id", req.TransactionId)
	result.TransactionId = req.TransactionId

	rail, reason, err := r.Select(&req)
	if err != nil {
		return result, err
	}
	result.SelectedRail = rail
	if reason != "" {
		result.Metadata.FallbackTriggered = true
		result.Metadata.FallbackReason = reason
		result.Metadata.OriginalRail = rail.Alternate()
		logger.WithField("reason", reason).Infof("[%s] unavailable, selected %s", rail.Alternate(), rail)
	}

	result.ChargeId, err = r.charge(ctx, &req, &result.Metadata)
	if err != nil {
		return result, err
	}

	// ProviderRef keeps whatever completed, also when the rail failed
	result.ProviderRef, err = r.runRail(ctx, &req, rail, result.ChargeId, &result.Metadata)
	if err == nil {
		return result, nil
	}

	e := rails.Classify(err)
	alternate := rail.Alternate()
	if rails.Exhausted(e) != rails.StrategyFallback || result.Metadata.FallbackTriggered {
		return result, e
	}
	if unavailable := r.admit(alternate, req.ReceiveCurrency); unavailable != "" {
		logger.WithField("reason", unavailable).Warnf("[%s] cannot take the fallback", alternate)
		return result, e
	}

	logger.WithError(e).Warnf("[%s] failed, falling back to %s", rail, alternate)
	result.Metadata.FallbackTriggered = true
	result.Metadata.FallbackReason = strings.ToLower(string(e.Kind))
	result.Metadata.OriginalRail = rail
	if !result.ProviderRef.IsZero() {
		result.Metadata.Hybrid = true
		result.Metadata.AbandonedRef = result.ProviderRef
		result.ProviderRef = rails.ProviderRef{}
	}

	ref, err := r.runRail(ctx, &req, alternate, result.ChargeId, &result.Metadata)
	if !ref.IsZero() {
		result.SelectedRail = alternate
		result.ProviderRef = ref
	}
	if err != nil {
		return result, rails.Classify(err)
	}
	result.SelectedRail = alternate
	return result, nil
}
