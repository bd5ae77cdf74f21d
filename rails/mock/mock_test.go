package mock_test

import (
	"context"
	"testing"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/rails/mock"
	"github.com/RogueTeam/remit/rails/testsuite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_Contracts(t *testing.T) {
	t.Run("Custodial", func(t *testing.T) {
		custodial := mock.NewCustodial()
		custodial.SetRate("USD", "EUR", decimal.RequireFromString("0.85"))
		testsuite.TestCustodial(t, custodial)
	})
	t.Run("Blockchain", func(t *testing.T) {
		testsuite.TestBlockchain(t, mock.NewBlockchain())
	})
	t.Run("Acquirer", func(t *testing.T) {
		testsuite.TestAcquirer(t, mock.NewAcquirer(), "tok_visa")
	})
}

func Test_Failures(t *testing.T) {
	t.Run("Queued", func(t *testing.T) {
		assertions := assert.New(t)

		custodial := mock.NewCustodial()
		custodial.Fail(mock.CallCreatePayout, rails.NewError(rails.KindBridgeUnavailable, "maintenance"))

		req := rails.PayoutRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(1), Currency: "EUR"}
		_, err := custodial.CreatePayout(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindBridgeUnavailable))

		_, err = custodial.CreatePayout(context.TODO(), req)
		assertions.Nil(err, "only one failure was queued")
		assertions.Equal(2, custodial.Calls(mock.CallCreatePayout))
		assertions.Equal(1, custodial.Executed())
	})
	t.Run("Cards", func(t *testing.T) {
		assertions := assert.New(t)

		acquirer := mock.NewAcquirer()
		req := rails.ChargeRequest{IdempotencyKey: "k", AmountMinor: 100, Currency: "USD"}

		req.CardToken = mock.CardDeclined
		_, err := acquirer.Charge(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindCardDeclined))

		req.CardToken = mock.CardInsufficientFunds
		_, err = acquirer.Charge(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindInsufficientFunds))

		assertions.Equal(0, acquirer.Charges())
	})
	t.Run("UnderpricedGas", func(t *testing.T) {
		assertions := assert.New(t)

		chain := mock.NewBlockchain()
		chain.SetMinGasMultiplier(decimal.RequireFromString("1.2"))

		req := rails.ChainTransferRequest{
			IdempotencyKey: "k",
			Amount:         decimal.NewFromInt(1),
			Currency:       "USDC",
			GasMultiplier:  decimal.NewFromInt(1),
		}
		_, err := chain.InitiateTransfer(context.TODO(), req)
		assertions.True(rails.IsKind(err, rails.KindNetworkCongestion))

		req.GasMultiplier = decimal.RequireFromString("1.25")
		_, err = chain.InitiateTransfer(context.TODO(), req)
		assertions.Nil(err, "bumped gas must be accepted")
	})
	t.Run("StatusUpdates", func(t *testing.T) {
		assertions := assert.New(t)

		custodial := mock.NewCustodial()
		op, err := custodial.CreatePayment(context.TODO(), rails.PaymentRequest{IdempotencyKey: "k", Amount: decimal.NewFromInt(1)})
		assertions.Nil(err, "failed to create payment")

		err = custodial.SetStatus(op.Id, rails.OperationStatusConfirmed)
		assertions.Nil(err, "failed to set status")

		polled, err := custodial.Operation(context.TODO(), rails.OperationRequest{Step: rails.StepPayment, Id: op.Id})
		assertions.Nil(err, "failed to poll")
		assertions.Equal(rails.OperationStatusConfirmed, polled.Status)

		_, err = custodial.Operation(context.TODO(), rails.OperationRequest{Step: rails.StepPayout, Id: op.Id})
		assertions.True(rails.IsKind(err, rails.KindValidation))
	})
}
