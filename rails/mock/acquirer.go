package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/RogueTeam/remit/rails"
)

// Acquirer is an in memory card acquirer
type Acquirer struct {
	mu      sync.Mutex
	ledger  *ledger
	charges map[string]rails.Charge
	byKey   map[string]string
}

var _ rails.Acquirer = (*Acquirer)(nil)

func NewAcquirer() (a *Acquirer) {
	return &Acquirer{
		ledger:  newLedger("ch"),
		charges: make(map[string]rails.Charge),
		byKey:   make(map[string]string),
	}
}

func (a *Acquirer) Fail(call Call, errs ...error) { a.ledger.Fail(call, errs...) }

func (a *Acquirer) Calls(call Call) (count int) { return a.ledger.Calls(call) }

// Charges returns the number of distinct charges created
func (a *Acquirer) Charges() (count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.charges)
}

func (a *Acquirer) Charge(ctx context.Context, req rails.ChargeRequest) (charge rails.Charge, err error) {
	a.ledger.mu.Lock()
	err = a.ledger.enter(CallCharge)
	a.ledger.mu.Unlock()
	if err != nil {
		return charge, err
	}

	if req.AmountMinor <= 0 {
		return charge, rails.NewError(rails.KindValidation, "amount must be positive")
	}

	switch req.CardToken {
	case CardDeclined:
		return charge, rails.NewError(rails.KindCardDeclined, "do_not_honor")
	case CardInsufficientFunds:
		return charge, rails.NewError(rails.KindInsufficientFunds, "insufficient_funds")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if id, found := a.byKey[req.IdempotencyKey]; found && req.IdempotencyKey != "" {
		return a.charges[id], nil
	}

	status := rails.ChargeStatusSucceeded
	if req.CardToken == CardPending {
		status = rails.ChargeStatusPending
	}
	charge = rails.Charge{
		Id:          fmt.Sprintf("ch_%d", len(a.charges)+1),
		Status:      status,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
	}
	a.charges[charge.Id] = charge
	a.byKey[req.IdempotencyKey] = charge.Id
	return charge, nil
}

func (a *Acquirer) GetCharge(ctx context.Context, id string) (charge rails.Charge, err error) {
	a.ledger.mu.Lock()
	err = a.ledger.enter(CallGetCharge)
	a.ledger.mu.Unlock()
	if err != nil {
		return charge, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	charge, found := a.charges[id]
	if !found {
		return charge, rails.Wrap(rails.KindValidation, fmt.Errorf("%w: %s", ErrChargeNotFound, id))
	}
	return charge, nil
}

// Settle marks a pending charge as succeeded
func (a *Acquirer) Settle(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	charge, found := a.charges[id]
	if !found {
		return
	}
	charge.Status = rails.ChargeStatusSucceeded
	a.charges[id] = charge
}
