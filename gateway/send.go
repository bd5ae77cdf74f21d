package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/routing"
	"github.com/RogueTeam/remit/transfer"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Fiat currency the settlement stablecoin is pegged to
const SettlementBase = "USD"

type Send struct {
	// Locked rate backing the amounts
	RateId   string
	SenderId string
	// Result of the identity checks run before the transfer
	KYCApproved bool
	CardToken   string
	Sender      transfer.Contact
	Recipient   transfer.Contact
	// Payout destination. The rail decides which one is used
	BankAccount   string
	WalletAddress string
	Country       string
	// Optional explicit rail
	PreferredRail rails.Rail
}

func (c *Controller) validateSend(req *Send) (err error) {
	switch {
	case !req.KYCApproved:
		return ErrKYCRequired
	case strings.TrimSpace(req.RateId) == "":
		return fmt.Errorf("%w: rate id is required", ErrInvalidRequest)
	case req.SenderId == "":
		return fmt.Errorf("%w: sender id is required", ErrInvalidRequest)
	case req.CardToken == "":
		return fmt.Errorf("%w: card token is required", ErrInvalidRequest)
	case req.Recipient.Name == "":
		return fmt.Errorf("%w: recipient name is required", ErrInvalidRequest)
	case req.BankAccount == "" && req.WalletAddress == "":
		return fmt.Errorf("%w: a bank account or wallet address is required", ErrInvalidRequest)
	case req.PreferredRail != "":
		err = req.PreferredRail.Validate()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

func (c *Controller) validateAmount(locked *quote.LockedRate) (err error) {
	amount := locked.SendAmount
	if c.minAmount.IsPositive() && amount.LessThan(c.minAmount) {
		return fmt.Errorf("%w: amount should be greater or equal than: %s", ErrAmountOutOfRange, c.minAmount)
	}
	if c.maxAmount.IsPositive() && amount.GreaterThan(c.maxAmount) {
		return fmt.Errorf("%w: amount should be less or equal than: %s", ErrAmountOutOfRange, c.maxAmount)
	}
	return nil
}

// settlement returns the send amount left after the card and transfer fees, in
// the send currency and in the settlement currency moved between the legs
func (c *Controller) settlement(ctx context.Context, locked *quote.LockedRate) (net, settlement decimal.Decimal, err error) {
	fees := locked.Quote.Fees
	net = locked.SendAmount.Sub(fees.CardProcessing).Sub(fees.Routing)
	if !net.IsPositive() {
		return net, settlement, fmt.Errorf("%w: %s", quote.ErrAmountTooSmall, locked.SendAmount)
	}
	if locked.Quote.From == SettlementBase {
		return net, net, nil
	}

	rate, err := c.quotes.Rate(ctx, locked.Quote.From, SettlementBase)
	if err != nil {
		return net, settlement, fmt.Errorf("failed to price settlement: %w", err)
	}
	return net, net.Mul(rate.Rate), nil
}

// Send executes a transfer at a previously locked rate. The lock is consumed
// before any money moves. When routing fails the transaction is still
// recorded as FAILED and returned together with the routing error
func (c *Controller) Send(ctx context.Context, req *Send) (t transfer.Transaction, err error) {
	err = c.validateSend(req)
	if err != nil {
		return t, err
	}

	locked, err := c.quotes.GetLockedRate(ctx, req.RateId)
	if err != nil {
		return t, err
	}
	err = c.validateAmount(&locked)
	if err != nil {
		return t, err
	}
	net, settlement, err := c.settlement(ctx, &locked)
	if err != nil {
		return t, err
	}
	locked, err = c.quotes.ConsumeLockedRate(ctx, req.RateId)
	if err != nil {
		return t, err
	}

	draft := transfer.Draft{
		Id:              uuid.New(),
		SenderId:        req.SenderId,
		Sender:          req.Sender,
		Recipient:       req.Recipient,
		SendAmount:      locked.SendAmount,
		SendCurrency:    locked.Quote.From,
		ReceiveAmount:   locked.ReceiveAmount,
		ReceiveCurrency: locked.Quote.To,
		ExchangeRate:    locked.Quote.Rate,
		RateId:          locked.Id,
	}
	if draft.Sender.UserId == "" {
		draft.Sender.UserId = req.SenderId
	}
	logger := c.logger.WithFields(logrus.Fields{
		"transaction_id": draft.Id,
		"rate_id":        locked.Id,
	})

	result, err := c.router.Execute(ctx, routing.Request{
		TransactionId:    draft.Id,
		SenderId:         req.SenderId,
		CardToken:        req.CardToken,
		SendAmount:       draft.SendAmount,
		SendCurrency:     draft.SendCurrency,
		NetAmount:        net,
		SettlementAmount: settlement,
		ReceiveAmount:    draft.ReceiveAmount,
		ReceiveCurrency:  draft.ReceiveCurrency,
		Beneficiary: rails.Beneficiary{
			Name:          req.Recipient.Name,
			Email:         req.Recipient.Email,
			Phone:         req.Recipient.Phone,
			Country:       req.Country,
			BankAccount:   req.BankAccount,
			WalletAddress: req.WalletAddress,
		},
		PreferredRail: req.PreferredRail,
	})
	if err != nil {
		failed, recordErr := c.machine.RecordFailure(ctx, draft, result, err)
		if recordErr != nil {
			logger.WithError(recordErr).Error("failed to record failed transfer")
			return t, err
		}
		return failed, err
	}

	t, err = c.machine.Record(ctx, draft, result)
	if err != nil {
		// Money already moved. The provider references are kept in the log for reconciliation
		logger.WithError(err).WithFields(logrus.Fields{
			"rail":         result.SelectedRail,
			"charge_id":    result.ChargeId,
			"provider_ref": result.ProviderRef,
		}).Error("failed to record routed transfer")
		return t, fmt.Errorf("failed to record transfer: %w", err)
	}
	logger.WithField("rail", t.SelectedRail).Info("transfer routed")
	return t, nil
}

func (c *Controller) Query(ctx context.Context, id uuid.UUID) (t transfer.Transaction, err error) {
	t, err = c.machine.Get(ctx, id)
	if errors.Is(err, transfer.ErrNotFound) {
		return t, fmt.Errorf("%w: %s", ErrTransferNotFound, id)
	}
	return t, err
}
