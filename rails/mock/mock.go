package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RogueTeam/remit/rails"
	"github.com/shopspring/decimal"
)

var (
	ErrOperationNotFound = errors.New("operation not found")
	ErrChargeNotFound    = errors.New("charge not found")
)

// Card tokens with a fixed outcome
const (
	CardDeclined          = "tok_declined"
	CardInsufficientFunds = "tok_insufficient_funds"
	CardPending           = "tok_pending"
)

// Provider method names used to inject failures and count calls
type Call string

const (
	CallCharge                Call = "Charge"
	CallGetCharge             Call = "GetCharge"
	CallCreatePayment         Call = "CreatePayment"
	CallCreateWalletTransfer  Call = "CreateWalletTransfer"
	CallCreatePayout          Call = "CreatePayout"
	CallConvertToStablecoin   Call = "ConvertToStablecoin"
	CallInitiateTransfer      Call = "InitiateTransfer"
	CallConvertFromStablecoin Call = "ConvertFromStablecoin"
	CallOperation             Call = "Operation"
	CallRate                  Call = "Rate"
)

// ledger is the shared bookkeeping of the fake providers
type ledger struct {
	mu         sync.Mutex
	prefix     string
	next       uint64
	byKey      map[string]rails.Operation
	operations map[string]rails.Operation
	failures   map[Call][]error
	calls      map[Call]int
}

func newLedger(prefix string) (l *ledger) {
	return &ledger{
		prefix:     prefix,
		byKey:      make(map[string]rails.Operation),
		operations: make(map[string]rails.Operation),
		failures:   make(map[Call][]error),
		calls:      make(map[Call]int),
	}
}

// Must be called with the lock held. Consumes the next queued failure
func (l *ledger) enter(call Call) (err error) {
	l.calls[call]++
	queued := l.failures[call]
	if len(queued) == 0 {
		return nil
	}
	err, l.failures[call] = queued[0], queued[1:]
	return err
}

// Must be called with the lock held. Same key returns the same operation
func (l *ledger) create(step rails.Step, key string, status rails.OperationStatus) (op rails.Operation) {
	idemKey := string(step) + "/" + key
	if key != "" {
		if existing, found := l.byKey[idemKey]; found {
			return existing
		}
	}
	l.next++
	op = rails.Operation{
		Id:     fmt.Sprintf("%s_%s_%d", l.prefix, step, l.next),
		Status: status,
	}
	l.operations[op.Id] = op
	if key != "" {
		l.byKey[idemKey] = op
	}
	return op
}

func (l *ledger) Fail(call Call, errs ...error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[call] = append(l.failures[call], errs...)
}

func (l *ledger) Calls(call Call) (count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[call]
}

// Executed is the number of distinct operations created
func (l *ledger) Executed() (count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.operations)
}

// SetStatus simulates the provider moving an operation forward
func (l *ledger) SetStatus(id string, status rails.OperationStatus) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	op, found := l.operations[id]
	if !found {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	op.Status = status
	l.operations[id] = op
	for key, byKey := range l.byKey {
		if byKey.Id == id {
			l.byKey[key] = op
		}
	}
	return nil
}

func (l *ledger) Operation(ctx context.Context, req rails.OperationRequest) (op rails.Operation, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.enter(CallOperation)
	if err != nil {
		return op, err
	}
	op, found := l.operations[req.Id]
	if !found || !strings.Contains(req.Id, "_"+string(req.Step)+"_") {
		return op, rails.Wrap(rails.KindValidation, fmt.Errorf("%w: %s", ErrOperationNotFound, req.Id))
	}
	return op, nil
}

func validAmount(amount decimal.Decimal) (err error) {
	if !amount.IsPositive() {
		return rails.NewError(rails.KindValidation, "amount must be positive")
	}
	return nil
}
