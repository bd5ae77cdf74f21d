package testsuite

import (
	"testing"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/random"
	"github.com/RogueTeam/remit/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func key() (k string) {
	return random.String(random.CryptoRand(), random.CharsetAlphaNumeric, 16)
}

var beneficiary = rails.Beneficiary{
	Name:          "Ada Lovelace",
	Email:         "ada@example.com",
	Country:       "GB",
	BankAccount:   "GB33BUKB20201555555555",
	WalletAddress: "0x52908400098527886E0F7030069857D2E4169EE7",
}

// TestCustodial runs the contract every rails.Custodial implementation must satisfy
func TestCustodial(t *testing.T, custodial rails.Custodial) {
	t.Run("Pipeline", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		payment, err := custodial.CreatePayment(ctx, rails.PaymentRequest{
			IdempotencyKey: key(),
			ChargeId:       "ch_1",
			Amount:         decimal.NewFromInt(100),
			Currency:       "USD",
		})
		if !assertions.Nil(err, "failed to create payment") {
			return
		}
		assertions.NotEmpty(payment.Id)

		transfer, err := custodial.CreateWalletTransfer(ctx, rails.WalletTransferRequest{
			IdempotencyKey: key(),
			PaymentId:      payment.Id,
			Amount:         decimal.NewFromInt(96),
			Currency:       "USDC",
			Beneficiary:    beneficiary,
		})
		if !assertions.Nil(err, "failed to create transfer") {
			return
		}
		assertions.NotEmpty(transfer.Id)

		payout, err := custodial.CreatePayout(ctx, rails.PayoutRequest{
			IdempotencyKey: key(),
			TransferId:     transfer.Id,
			Amount:         decimal.RequireFromString("79.355"),
			Currency:       "EUR",
			Beneficiary:    beneficiary,
		})
		if !assertions.Nil(err, "failed to create payout") {
			return
		}
		assertions.NotEmpty(payout.Id)

		polled, err := custodial.Operation(ctx, rails.OperationRequest{Step: rails.StepPayout, Id: payout.Id})
		assertions.Nil(err, "failed to poll payout")
		assertions.Equal(payout.Id, polled.Id)
	})
	t.Run("Idempotent", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		req := rails.PaymentRequest{
			IdempotencyKey: key(),
			ChargeId:       "ch_2",
			Amount:         decimal.NewFromInt(5),
			Currency:       "USD",
		}
		first, err := custodial.CreatePayment(ctx, req)
		assertions.Nil(err, "failed to create payment")
		second, err := custodial.CreatePayment(ctx, req)
		assertions.Nil(err, "failed to replay payment")
		assertions.Equal(first.Id, second.Id, "same key must not execute twice")
	})
	t.Run("InvalidAmount", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		_, err := custodial.CreatePayment(ctx, rails.PaymentRequest{
			IdempotencyKey: key(),
			Amount:         decimal.Zero,
			Currency:       "USD",
		})
		assertions.True(rails.IsKind(err, rails.KindValidation), "expecting validation error: %v", err)
	})
	t.Run("Rate", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		rate, err := custodial.Rate(ctx, "USD", "EUR")
		assertions.Nil(err, "failed to fetch rate")
		assertions.True(rate.IsPositive())
	})
}

// TestBlockchain runs the contract every rails.Blockchain implementation must satisfy
func TestBlockchain(t *testing.T, chain rails.Blockchain) {
	t.Run("Pipeline", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		in, err := chain.ConvertToStablecoin(ctx, rails.ConvertRequest{
			IdempotencyKey: key(),
			Amount:         decimal.NewFromInt(2000),
			From:           "USD",
			To:             "USDC",
		})
		if !assertions.Nil(err, "failed to convert to stablecoin") {
			return
		}

		transfer, err := chain.InitiateTransfer(ctx, rails.ChainTransferRequest{
			IdempotencyKey: key(),
			SourceId:       in.Id,
			Amount:         decimal.NewFromInt(1990),
			Currency:       "USDC",
			Destination:    beneficiary.WalletAddress,
			GasMultiplier:  decimal.NewFromInt(1),
		})
		if !assertions.Nil(err, "failed to initiate transfer") {
			return
		}

		out, err := chain.ConvertFromStablecoin(ctx, rails.ConvertRequest{
			IdempotencyKey: key(),
			Amount:         decimal.NewFromInt(1990),
			From:           "USDC",
			To:             "EUR",
		})
		if !assertions.Nil(err, "failed to convert from stablecoin") {
			return
		}

		ids := map[string]struct{}{in.Id: {}, transfer.Id: {}, out.Id: {}}
		assertions.Len(ids, 3, "operations must have distinct ids")

		polled, err := chain.Operation(ctx, rails.OperationRequest{Step: rails.StepTransfer, Id: transfer.Id})
		assertions.Nil(err, "failed to poll transfer")
		assertions.Equal(transfer.Id, polled.Id)
	})
	t.Run("Idempotent", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		req := rails.ConvertRequest{IdempotencyKey: key(), Amount: decimal.NewFromInt(3), From: "USD", To: "USDC"}
		first, err := chain.ConvertToStablecoin(ctx, req)
		assertions.Nil(err, "failed to convert")
		second, err := chain.ConvertToStablecoin(ctx, req)
		assertions.Nil(err, "failed to replay conversion")
		assertions.Equal(first.Id, second.Id)
	})
}

// TestAcquirer runs the contract every rails.Acquirer implementation must satisfy
func TestAcquirer(t *testing.T, acquirer rails.Acquirer, approvedCard string) {
	t.Run("ChargeAndPoll", func(t *testing.T) {
		assertions := assert.New(t)

		ctx, cancel := utils.NewContext()
		defer cancel()

		req := rails.ChargeRequest{
			IdempotencyKey: key(),
			AmountMinor:    10_000,
			Currency:       "USD",
			CardToken:      approvedCard,
		}
		charge, err := acquirer.Charge(ctx, req)
		if !assertions.Nil(err, "failed to charge") {
			return
		}
		assertions.Equal(rails.ChargeStatusSucceeded, charge.Status)

		replay, err := acquirer.Charge(ctx, req)
		assertions.Nil(err, "failed to replay charge")
		assertions.Equal(charge.Id, replay.Id, "same key must not charge twice")

		polled, err := acquirer.GetCharge(ctx, charge.Id)
		assertions.Nil(err, "failed to poll charge")
		assertions.Equal(charge.Id, polled.Id)
	})
}
