package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/RogueTeam/remit/rails"
	"github.com/shopspring/decimal"
)

// Custodial is an in memory custodial rail
type Custodial struct {
	*ledger
	rates map[string]decimal.Decimal
}

var _ rails.Custodial = (*Custodial)(nil)

func NewCustodial() (c *Custodial) {
	return &Custodial{
		ledger: newLedger("cus"),
		rates:  make(map[string]decimal.Decimal),
	}
}

func pairKey(from, to string) (key string) {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}

// SetRate configures the quoted rate of a pair
func (c *Custodial) SetRate(from, to string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[pairKey(from, to)] = rate
}

func (c *Custodial) CreatePayment(ctx context.Context, req rails.PaymentRequest) (op rails.Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.enter(CallCreatePayment)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	return c.create(rails.StepPayment, req.IdempotencyKey, rails.OperationStatusPending), nil
}

func (c *Custodial) CreateWalletTransfer(ctx context.Context, req rails.WalletTransferRequest) (op rails.Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.enter(CallCreateWalletTransfer)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	return c.create(rails.StepTransfer, req.IdempotencyKey, rails.OperationStatusPending), nil
}

func (c *Custodial) CreatePayout(ctx context.Context, req rails.PayoutRequest) (op rails.Operation, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.enter(CallCreatePayout)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	return c.create(rails.StepPayout, req.IdempotencyKey, rails.OperationStatusPending), nil
}

func (c *Custodial) Rate(ctx context.Context, from, to string) (rate decimal.Decimal, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.enter(CallRate)
	if err != nil {
		return rate, err
	}
	rate, found := c.rates[pairKey(from, to)]
	if !found {
		return rate, rails.NewError(rails.KindValidation, fmt.Sprintf("pair %s not quoted", pairKey(from, to)))
	}
	return rate, nil
}
