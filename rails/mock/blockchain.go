package mock

import (
	"context"

	"github.com/RogueTeam/remit/rails"
	"github.com/shopspring/decimal"
)

// Blockchain is an in memory blockchain rail
type Blockchain struct {
	*ledger
	// Transfers priced below this gas multiplier are rejected as underpriced
	minGasMultiplier decimal.Decimal
}

var _ rails.Blockchain = (*Blockchain)(nil)

func NewBlockchain() (b *Blockchain) {
	return &Blockchain{ledger: newLedger("0x")}
}

// SetMinGasMultiplier makes transfers below multiplier fail with NETWORK_CONGESTION
func (b *Blockchain) SetMinGasMultiplier(multiplier decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minGasMultiplier = multiplier
}

func (b *Blockchain) ConvertToStablecoin(ctx context.Context, req rails.ConvertRequest) (op rails.Operation, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.enter(CallConvertToStablecoin)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	return b.create(rails.StepPayment, req.IdempotencyKey, rails.OperationStatusPending), nil
}

func (b *Blockchain) InitiateTransfer(ctx context.Context, req rails.ChainTransferRequest) (op rails.Operation, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.enter(CallInitiateTransfer)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	if req.GasMultiplier.LessThan(b.minGasMultiplier) {
		return op, rails.NewError(rails.KindNetworkCongestion, "replacement transaction underpriced")
	}
	return b.create(rails.StepTransfer, req.IdempotencyKey, rails.OperationStatusPending), nil
}

func (b *Blockchain) ConvertFromStablecoin(ctx context.Context, req rails.ConvertRequest) (op rails.Operation, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.enter(CallConvertFromStablecoin)
	if err != nil {
		return op, err
	}
	err = validAmount(req.Amount)
	if err != nil {
		return op, err
	}
	return b.create(rails.StepPayout, req.IdempotencyKey, rails.OperationStatusPending), nil
}
