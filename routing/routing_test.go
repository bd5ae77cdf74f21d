package routing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/mock"
	"github.com/RogueTeam/remit/rails/mocks"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	clock     *utils.FakeClock
	acquirer  *mock.Acquirer
	custodial *mock.Custodial
	chain     *mock.Blockchain
	router    *routing.Router
}

func newFixture(mutate func(config *routing.Config)) (f fixture) {
	logger, _ := test.NewNullLogger()

	f.clock = utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	f.acquirer = mock.NewAcquirer()
	f.custodial = mock.NewCustodial()
	f.chain = mock.NewBlockchain()

	config := routing.Config{
		Acquirer:   f.acquirer,
		Custodial:  f.custodial,
		Blockchain: f.chain,
		Clock:      f.clock,
		Logger:     logger,
	}
	if mutate != nil {
		mutate(&config)
	}
	f.router = routing.New(config)
	return f
}

func request(amount string) (req routing.Request) {
	send := decimal.RequireFromString(amount)
	return routing.Request{
		TransactionId:   uuid.New(),
		SenderId:        "user_1",
		CardToken:       "tok_visa",
		SendAmount:      send,
		SendCurrency:    "USD",
		ReceiveAmount:   send.Mul(decimal.RequireFromString("0.8")),
		ReceiveCurrency: "EUR",
		Beneficiary: rails.Beneficiary{
			Name:          "Grace Hopper",
			Email:         "grace@example.com",
			WalletAddress: "0xAbC0000000000000000000000000000000000001",
		},
	}
}

func Test_Select(t *testing.T) {
	t.Run("Monotonic", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		amounts := []string{"0.01", "10", "999.99", "1000", "1000.01", "50000"}
		var switched bool
		previous := f.router.ByAmount(decimal.RequireFromString(amounts[0]))
		for _, amount := range amounts[1:] {
			current := f.router.ByAmount(decimal.RequireFromString(amount))
			if current != previous {
				assertions.False(switched, "routing must switch rails exactly once")
				switched = true
			}
			previous = current
		}
		assertions.True(switched)
		assertions.Equal(rails.RailCustodial, f.router.ByAmount(decimal.RequireFromString("999.99")))
		assertions.Equal(rails.RailBlockchain, f.router.ByAmount(decimal.RequireFromString("1000")))
	})
	t.Run("Tunable", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(func(config *routing.Config) {
			config.Threshold = decimal.NewFromInt(50)
		})

		assertions.Equal(rails.RailCustodial, f.router.ByAmount(decimal.NewFromInt(49)))
		assertions.Equal(rails.RailBlockchain, f.router.ByAmount(decimal.NewFromInt(51)))
	})
	t.Run("Preference", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		req := request("10")
		req.PreferredRail = rails.RailBlockchain
		rail, reason, err := f.router.Select(&req)
		assertions.Nil(err, "failed to select")
		assertions.Equal(rails.RailBlockchain, rail)
		assertions.Empty(reason)
	})
	t.Run("Availability", func(t *testing.T) {
		type Test struct {
			Name   string
			Rails  map[rails.Rail]routing.RailConfig
			Expect rails.Rail
			Reason string
		}
		tests := []Test{
			{
				Name:   "Disabled",
				Rails:  map[rails.Rail]routing.RailConfig{rails.RailCustodial: {Disabled: true}},
				Expect: rails.RailBlockchain,
				Reason: routing.ReasonRailDisabled,
			},
			{
				Name:   "UnsupportedCurrency",
				Rails:  map[rails.Rail]routing.RailConfig{rails.RailCustodial: {Currencies: []string{"MXN", "INR"}}},
				Expect: rails.RailBlockchain,
				Reason: routing.ReasonUnsupportedCurrency,
			},
			{
				Name:   "SupportedCurrency",
				Rails:  map[rails.Rail]routing.RailConfig{rails.RailCustodial: {Currencies: []string{"eur"}}},
				Expect: rails.RailCustodial,
			},
		}
		for _, test := range tests {
			t.Run(test.Name, func(t *testing.T) {
				assertions := assert.New(t)
				f := newFixture(func(config *routing.Config) { config.Rails = test.Rails })

				result, err := f.router.Execute(context.TODO(), request("10"))
				if !assertions.Nil(err, "failed to execute") {
					return
				}
				assertions.Equal(test.Expect, result.SelectedRail)
				assertions.Equal(test.Reason != "", result.Metadata.FallbackTriggered)
				assertions.Equal(test.Reason, result.Metadata.FallbackReason)
			})
		}
	})
	t.Run("NoRail", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(func(config *routing.Config) {
			config.Rails = map[rails.Rail]routing.RailConfig{
				rails.RailCustodial:  {Disabled: true},
				rails.RailBlockchain: {Currencies: []string{"MXN"}},
			}
		})

		_, err := f.router.Execute(context.TODO(), request("10"))
		assertions.True(rails.IsKind(err, rails.KindValidation), "got %v", err)
		assertions.Equal(0, f.acquirer.Calls(mock.CallCharge), "nothing is charged without a rail")
	})
}

func Test_Execute(t *testing.T) {
	t.Run("Custodial", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		req := request("100")
		result, err := f.router.Execute(context.TODO(), req)
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(req.TransactionId, result.TransactionId)
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.NotEmpty(result.ChargeId)
		assertions.NotEmpty(result.ProviderRef.PaymentId)
		assertions.NotEmpty(result.ProviderRef.TransferId)
		assertions.NotEmpty(result.ProviderRef.PayoutId)
		assertions.False(result.Metadata.FallbackTriggered)
		assertions.Equal(4, result.Metadata.Attempts)
		assertions.Equal(0, f.chain.Executed())
	})
	t.Run("Blockchain", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		result, err := f.router.Execute(context.TODO(), request("5000"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.Equal(3, f.chain.Executed())
		assertions.Equal(0, f.custodial.Executed())
	})
	t.Run("Replay", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		req := request("100")
		first, err := f.router.Execute(context.TODO(), req)
		assertions.Nil(err, "failed to execute")
		second, err := f.router.Execute(context.TODO(), req)
		assertions.Nil(err, "failed to replay")

		assertions.Equal(first.ProviderRef, second.ProviderRef, "same transaction must not execute twice")
		assertions.Equal(1, f.acquirer.Charges())
		assertions.Equal(3, f.custodial.Executed())
	})
	t.Run("Invalid", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		req := request("100")
		req.TransactionId = uuid.Nil
		_, err := f.router.Execute(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindValidation))

		req = request("100")
		req.PreferredRail = "carrier-pigeon"
		_, err = f.router.Execute(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindValidation))

		req = request("100")
		req.SendCurrency = "EUR"
		_, err = f.router.Execute(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindValidation), "non USD sends need a settlement amount")

		req = request("100")
		req.NetAmount = decimal.RequireFromString("100.01")
		_, err = f.router.Execute(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindValidation))
	})
	t.Run("SettlementAmount", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		custodial := mocks.NewMockCustodial(ctrl)

		var transfer rails.WalletTransferRequest
		var payout rails.PayoutRequest
		gomock.InOrder(
			custodial.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).
				Return(rails.Operation{Id: "pay_1", Status: rails.OperationStatusComplete}, nil),
			custodial.EXPECT().CreateWalletTransfer(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req rails.WalletTransferRequest) (rails.Operation, error) {
					transfer = req
					return rails.Operation{Id: "tr_1", Status: rails.OperationStatusComplete}, nil
				}),
			custodial.EXPECT().CreatePayout(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req rails.PayoutRequest) (rails.Operation, error) {
					payout = req
					return rails.Operation{Id: "po_1", Status: rails.OperationStatusComplete}, nil
				}),
		)

		f := newFixture(func(config *routing.Config) { config.Custodial = custodial })
		req := request("100")
		req.SendCurrency = "EUR"
		req.NetAmount = decimal.RequireFromString("96.5")
		req.SettlementAmount = decimal.RequireFromString("104.2249")
		result, err := f.router.Execute(context.TODO(), req)
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.Equal("tr_1", result.ProviderRef.TransferId)
		assertions.Equal(routing.SettlementCurrency, transfer.Currency)
		assertions.True(decimal.RequireFromString("104.22").Equal(transfer.Amount), "got %s", transfer.Amount)
		assertions.Equal("EUR", payout.Currency)
		assertions.True(req.ReceiveAmount.Equal(payout.Amount), "got %s", payout.Amount)
	})
}

func Test_Retry(t *testing.T) {
	t.Run("SameRail", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayment, errors.New("connection reset"), errors.New("connection reset"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.False(result.Metadata.FallbackTriggered)
		assertions.Equal(3, f.custodial.Calls(mock.CallCreatePayment))
		assertions.Equal(3, f.custodial.Executed())

		waits := f.clock.Waits()
		if assertions.Len(waits, 2) {
			// UNKNOWN suggests a conservative delay above the first backoff steps
			assertions.Equal(2*time.Second, waits[0])
			assertions.Equal(2*time.Second, waits[1])
		}
	})
	t.Run("ExponentialBackoff", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(func(config *routing.Config) {
			config.BaseDelay = 4 * time.Second
			config.MaxAttempts = 4
		})
		f.custodial.Fail(mock.CallCreatePayout, errors.New("reset"), errors.New("reset"), errors.New("reset"))

		_, err := f.router.Execute(context.TODO(), request("100"))
		assertions.Nil(err, "failed to execute")

		waits := f.clock.Waits()
		if assertions.Len(waits, 3) {
			for index, base := range []time.Duration{4 * time.Second, 8 * time.Second, 16 * time.Second} {
				jitter := base / 10
				assertions.InDelta(float64(base), float64(waits[index]), float64(jitter), "wait %d", index)
			}
		}
	})
	t.Run("SuggestedDelay", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		limited := rails.NewError(rails.KindRateLimited, "slow down")
		limited.SuggestedDelay = 45 * time.Second
		f.custodial.Fail(mock.CallCreateWalletTransfer, limited)

		_, err := f.router.Execute(context.TODO(), request("100"))
		assertions.Nil(err, "failed to execute")
		assertions.Equal([]time.Duration{45 * time.Second}, f.clock.Waits())
	})
	t.Run("ExhaustedFallsBack", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayment, errors.New("a"), errors.New("b"), errors.New("c"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.True(result.Metadata.FallbackTriggered)
		assertions.Equal("unknown", result.Metadata.FallbackReason)
		assertions.Equal(rails.RailCustodial, result.Metadata.OriginalRail)
		assertions.False(result.Metadata.Hybrid)
	})
	t.Run("Canceled", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)

		ctx, cancel := context.WithCancel(context.TODO())
		cancel()

		_, err := f.router.Execute(ctx, request("100"))
		assertions.ErrorIs(err, context.Canceled)
		assertions.Equal(rails.StrategyAbort, rails.Decide(rails.Classify(err)))
		assertions.Equal(0, f.acquirer.Calls(mock.CallCharge))
	})
}

func Test_Fallback(t *testing.T) {
	t.Run("Eligible", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayment, rails.NewError(rails.KindBridgeUnavailable, "maintenance"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.True(result.Metadata.FallbackTriggered)
		assertions.Equal("bridge_unavailable", result.Metadata.FallbackReason)
		assertions.Equal(rails.RailCustodial, result.Metadata.OriginalRail)
		assertions.False(result.Metadata.Hybrid)
		assertions.Equal(1, f.acquirer.Charges(), "the card is charged once")
		assertions.Empty(f.clock.Waits(), "fallback does not wait")
	})
	t.Run("Hybrid", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayout, rails.NewError(rails.KindInsufficientGas, "treasury empty"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.True(result.Metadata.Hybrid)
		assertions.NotEmpty(result.Metadata.AbandonedRef.PaymentId)
		assertions.NotEmpty(result.Metadata.AbandonedRef.TransferId)
		assertions.Empty(result.Metadata.AbandonedRef.PayoutId)
		assertions.NotEqual(result.Metadata.AbandonedRef.PaymentId, result.ProviderRef.PaymentId)
	})
	t.Run("AlternateFails", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayment, rails.NewError(rails.KindBridgeUnavailable, "maintenance"))
		f.chain.Fail(mock.CallConvertToStablecoin, rails.NewError(rails.KindBridgeUnavailable, "bridge paused"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.True(rails.IsKind(err, rails.KindBridgeUnavailable))
		assertions.Equal(rails.RailBlockchain, rails.Classify(err).Rail)
		assertions.True(result.Metadata.FallbackTriggered)
		assertions.Equal(1, f.custodial.Calls(mock.CallCreatePayment), "no ping pong back to the first rail")
	})
	t.Run("PartialReferences", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayout, rails.NewError(rails.KindValidation, "invalid IBAN"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.True(rails.IsKind(err, rails.KindValidation))
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.NotEmpty(result.ProviderRef.PaymentId)
		assertions.NotEmpty(result.ProviderRef.TransferId)
		assertions.Empty(result.ProviderRef.PayoutId)
		assertions.True(result.Metadata.AbandonedRef.IsZero())
	})
	t.Run("AlternatePartialReferences", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayment, rails.NewError(rails.KindBridgeUnavailable, "maintenance"))
		f.chain.Fail(mock.CallInitiateTransfer, rails.NewError(rails.KindValidation, "bad destination"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.True(rails.IsKind(err, rails.KindValidation))
		assertions.Equal(rails.RailBlockchain, result.SelectedRail, "value already moved on the alternate")
		assertions.NotEmpty(result.ProviderRef.PaymentId)
		assertions.Empty(result.ProviderRef.TransferId)
		assertions.False(result.Metadata.Hybrid)
	})
	t.Run("HybridAlternateFails", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.custodial.Fail(mock.CallCreatePayout, rails.NewError(rails.KindInsufficientGas, "payout wallet empty"))
		f.chain.Fail(mock.CallConvertToStablecoin, rails.NewError(rails.KindBridgeUnavailable, "bridge paused"))

		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.True(rails.IsKind(err, rails.KindBridgeUnavailable))
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.True(result.Metadata.Hybrid)
		assertions.NotEmpty(result.Metadata.AbandonedRef.PaymentId)
		assertions.NotEmpty(result.Metadata.AbandonedRef.TransferId)
		assertions.True(result.ProviderRef.IsZero())
	})
	t.Run("IneligibleRailStep", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		chain := mocks.NewMockBlockchain(ctrl)

		f := newFixture(func(config *routing.Config) { config.Blockchain = chain })
		f.custodial.Fail(mock.CallCreatePayout, rails.NewError(rails.KindValidation, "invalid IBAN"))

		_, err := f.router.Execute(context.TODO(), request("100"))
		assertions.True(rails.IsKind(err, rails.KindValidation))
		assertions.Equal(rails.StepPayout, rails.Classify(err).Step)
		assertions.Equal(1, f.custodial.Calls(mock.CallCreatePayout), "validation errors are not retried")
	})
	t.Run("CardDeclined", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		acquirer := mocks.NewMockAcquirer(ctrl)
		custodial := mocks.NewMockCustodial(ctrl)
		chain := mocks.NewMockBlockchain(ctrl)

		declined := rails.NewError(rails.KindCardDeclined, "stolen card")
		acquirer.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(rails.Charge{}, declined).Times(1)

		f := newFixture(func(config *routing.Config) {
			config.Acquirer = acquirer
			config.Custodial = custodial
			config.Blockchain = chain
		})

		_, err := f.router.Execute(context.TODO(), request("100"))
		e := rails.Classify(err)
		assertions.Equal(rails.KindCardDeclined, e.Kind)
		assertions.Equal(declined.UserMessage, e.UserMessage)
		assertions.False(e.Retryable)
	})
	t.Run("PendingCharge", func(t *testing.T) {
		assertions := assert.New(t)
		ctrl := gomock.NewController(t)
		acquirer := mocks.NewMockAcquirer(ctrl)

		gomock.InOrder(
			acquirer.EXPECT().Charge(gomock.Any(), gomock.Any()).
				Return(rails.Charge{Id: "ch_9", Status: rails.ChargeStatusPending}, nil),
			acquirer.EXPECT().GetCharge(gomock.Any(), "ch_9").
				Return(rails.Charge{Id: "ch_9", Status: rails.ChargeStatusSucceeded}, nil),
		)

		f := newFixture(func(config *routing.Config) { config.Acquirer = acquirer })
		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.Nil(err, "failed to execute")
		assertions.Equal("ch_9", result.ChargeId)
		assertions.Len(f.clock.Waits(), 1)
	})
}

func Test_Adjust(t *testing.T) {
	t.Run("GasBump", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.chain.SetMinGasMultiplier(decimal.RequireFromString("1.2"))

		result, err := f.router.Execute(context.TODO(), request("5000"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.False(result.Metadata.FallbackTriggered)
		assertions.Equal(2, f.chain.Calls(mock.CallInitiateTransfer))
		assertions.Empty(f.clock.Waits(), "the adjusted retry is immediate")
	})
	t.Run("OnlyOnce", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(nil)
		f.chain.SetMinGasMultiplier(decimal.NewFromInt(3))

		result, err := f.router.Execute(context.TODO(), request("5000"))
		if !assertions.Nil(err, "failed to execute") {
			return
		}
		assertions.Equal(2, f.chain.Calls(mock.CallInitiateTransfer))
		assertions.Equal(rails.RailCustodial, result.SelectedRail)
		assertions.Equal("network_congestion", result.Metadata.FallbackReason)
		assertions.True(result.Metadata.Hybrid, "the stablecoin conversion already happened")
	})
}

func Test_Breaker(t *testing.T) {
	t.Run("Execute", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(func(config *routing.Config) {
			config.Breaker = routing.BreakerConfig{MaxFailures: 2, Cooldown: time.Minute}
		})

		for range 2 {
			f.custodial.Fail(mock.CallCreatePayment, rails.NewError(rails.KindBridgeUnavailable, "down"))
			_, err := f.router.Execute(context.TODO(), request("100"))
			assertions.Nil(err, "fallback must absorb the failure")
		}
		assertions.Equal(routing.BreakerOpen, f.router.Breaker(rails.RailCustodial).State())

		result, err := f.router.Execute(context.TODO(), request("100"))
		assertions.Nil(err, "failed to execute")
		assertions.Equal(rails.RailBlockchain, result.SelectedRail)
		assertions.Equal(routing.ReasonCircuitOpen, result.Metadata.FallbackReason)

		f.clock.Advance(time.Minute)
		result, err = f.router.Execute(context.TODO(), request("100"))
		assertions.Nil(err, "failed to execute")
		assertions.Equal(rails.RailCustodial, result.SelectedRail, "trial request after cooldown")
		assertions.Equal(routing.BreakerClosed, f.router.Breaker(rails.RailCustodial).State())
	})
	t.Run("SingleTrial", func(t *testing.T) {
		assertions := assert.New(t)
		logger, _ := test.NewNullLogger()
		clock := utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
		breaker := routing.NewBreaker(rails.RailCustodial, routing.BreakerConfig{MaxFailures: 1, Cooldown: time.Minute}, clock, logger)

		breaker.Record(rails.NewError(rails.KindBridgeUnavailable, "down"))
		assertions.Equal(routing.BreakerOpen, breaker.State())
		assertions.False(breaker.Available())
		assertions.False(breaker.Allow())

		clock.Advance(time.Minute)
		assertions.True(breaker.Available())
		assertions.True(breaker.Available())
		assertions.Equal(routing.BreakerOpen, breaker.State(), "Available must not change the state")

		assertions.True(breaker.Allow(), "the trial request")
		assertions.Equal(routing.BreakerHalfOpen, breaker.State())
		assertions.False(breaker.Allow(), "a trial is already in flight")
		assertions.False(breaker.Available())

		breaker.Record(nil)
		assertions.Equal(routing.BreakerClosed, breaker.State())
		assertions.True(breaker.Allow())
		assertions.True(breaker.Allow())
	})
	t.Run("TrialFails", func(t *testing.T) {
		assertions := assert.New(t)
		logger, _ := test.NewNullLogger()
		clock := utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
		breaker := routing.NewBreaker(rails.RailCustodial, routing.BreakerConfig{MaxFailures: 1, Cooldown: time.Minute}, clock, logger)

		breaker.Record(rails.NewError(rails.KindBridgeUnavailable, "down"))
		clock.Advance(time.Minute)
		assertions.True(breaker.Allow())
		breaker.Record(rails.NewError(rails.KindBridgeUnavailable, "still down"))
		assertions.Equal(routing.BreakerOpen, breaker.State())
		assertions.False(breaker.Allow())
	})
	t.Run("TrialExpires", func(t *testing.T) {
		assertions := assert.New(t)
		logger, _ := test.NewNullLogger()
		clock := utils.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
		breaker := routing.NewBreaker(rails.RailCustodial, routing.BreakerConfig{MaxFailures: 1, Cooldown: time.Minute}, clock, logger)

		breaker.Record(rails.NewError(rails.KindBridgeUnavailable, "down"))
		clock.Advance(time.Minute)
		assertions.True(breaker.Allow())
		assertions.False(breaker.Allow())

		clock.Advance(time.Minute)
		assertions.True(breaker.Allow(), "an unrecorded trial does not block the rail forever")
	})
	t.Run("SelectInspectsAlternate", func(t *testing.T) {
		assertions := assert.New(t)
		f := newFixture(func(config *routing.Config) {
			config.Breaker = routing.BreakerConfig{MaxFailures: 1, Cooldown: time.Minute}
		})

		chain := f.router.Breaker(rails.RailBlockchain)
		chain.Record(rails.NewError(rails.KindBridgeUnavailable, "down"))
		f.clock.Advance(time.Minute)

		req := request("100")
		rail, reason, err := f.router.Select(&req)
		assertions.Nil(err, "failed to select")
		assertions.Equal(rails.RailCustodial, rail)
		assertions.Empty(reason)
		assertions.Equal(routing.BreakerOpen, chain.State(), "the unused alternate keeps its state")
		assertions.True(chain.Allow(), "the trial slot is still free")
	})
}

func Test_IdempotencyKey(t *testing.T) {
	assertions := assert.New(t)

	id := uuid.New()
	key := routing.IdempotencyKey(id, rails.RailBlockchain, rails.StepTransfer, 0)
	assertions.Equal(key, routing.IdempotencyKey(id, rails.RailBlockchain, rails.StepTransfer, 0))
	assertions.NotEqual(key, routing.IdempotencyKey(id, rails.RailBlockchain, rails.StepTransfer, 1))
	assertions.NotEqual(key, routing.IdempotencyKey(id, rails.RailCustodial, rails.StepTransfer, 0))
	assertions.NotEqual(key, routing.IdempotencyKey(uuid.New(), rails.RailBlockchain, rails.StepTransfer, 0))
}
