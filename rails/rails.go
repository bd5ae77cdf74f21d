package rails

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrInvalidRail = errors.New("invalid rail")

// Settlement rail a transfer moves through
type Rail string

const (
	// Fiat to stablecoin conversion held by a custodian
	RailCustodial Rail = "custodial"
	// Stablecoin moved over a public chain
	RailBlockchain Rail = "blockchain"
)

func (r Rail) Validate() (err error) {
	switch r {
	case RailCustodial, RailBlockchain:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRail, string(r))
	}
}

func (r Rail) Alternate() (alternate Rail) {
	if r == RailCustodial {
		return RailBlockchain
	}
	return RailCustodial
}

// Step of the execution pipeline. The three rail steps map one to one to ProviderRef fields
type Step string

const (
	StepCharge   Step = "charge"
	StepPayment  Step = "payment"
	StepTransfer Step = "transfer"
	StepPayout   Step = "payout"
)

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusConfirmed OperationStatus = "confirmed"
	OperationStatusComplete  OperationStatus = "complete"
	OperationStatusFailed    OperationStatus = "failed"
)

type (
	ChargeRequest struct {
		// Token of the same logical charge attempt
		IdempotencyKey string
		// Amount in minor units of Currency
		AmountMinor int64
		Currency    string
		// Tokenized card supplied by the presentation layer
		CardToken   string
		Description string
	}
	Charge struct {
		Id          string
		Status      ChargeStatus
		AmountMinor int64
		Currency    string
		// Provider specific reason when Status is failed
		DeclineCode string
	}
	// Final receiver of the funds
	Beneficiary struct {
		Name          string
		Email         string
		Phone         string
		Country       string
		BankAccount   string
		WalletAddress string
	}
	PaymentRequest struct {
		IdempotencyKey string
		// Card charge backing the payment
		ChargeId string
		Amount   decimal.Decimal
		Currency string
	}
	WalletTransferRequest struct {
		IdempotencyKey string
		PaymentId      string
		// Amount in the settlement currency
		Amount      decimal.Decimal
		Currency    string
		Beneficiary Beneficiary
	}
	PayoutRequest struct {
		IdempotencyKey string
		TransferId     string
		// Amount to deliver in the destination currency
		Amount      decimal.Decimal
		Currency    string
		Beneficiary Beneficiary
	}
	ConvertRequest struct {
		IdempotencyKey string
		Amount         decimal.Decimal
		From           string
		To             string
	}
	ChainTransferRequest struct {
		IdempotencyKey string
		// Id of the conversion funding this transfer
		SourceId    string
		Amount      decimal.Decimal
		Currency    string
		Destination string
		// Multiplier applied to the network's suggested gas price
		GasMultiplier decimal.Decimal
	}
	OperationRequest struct {
		Step Step
		Id   string
	}
	// Asynchronous provider side operation
	Operation struct {
		Id     string
		Status OperationStatus
	}
)

// Card acquirer
type Acquirer interface {
	// Authorizes and captures a card charge
	Charge(ctx context.Context, req ChargeRequest) (charge Charge, err error)
	// Polls a charge by id
	GetCharge(ctx context.Context, id string) (charge Charge, err error)
}

// Rail A. Custodial stablecoin conversion
type Custodial interface {
	CreatePayment(ctx context.Context, req PaymentRequest) (op Operation, err error)
	CreateWalletTransfer(ctx context.Context, req WalletTransferRequest) (op Operation, err error)
	CreatePayout(ctx context.Context, req PayoutRequest) (op Operation, err error)
	// Polls any previously created operation
	Operation(ctx context.Context, req OperationRequest) (op Operation, err error)
	// Mid market rate quoted by the custodian
	Rate(ctx context.Context, from, to string) (rate decimal.Decimal, err error)
}

// Rail B. Public blockchain settlement
type Blockchain interface {
	ConvertToStablecoin(ctx context.Context, req ConvertRequest) (op Operation, err error)
	InitiateTransfer(ctx context.Context, req ChainTransferRequest) (op Operation, err error)
	ConvertFromStablecoin(ctx context.Context, req ConvertRequest) (op Operation, err error)
	Operation(ctx context.Context, req OperationRequest) (op Operation, err error)
}

// Provider side identifiers of a transaction. Every field is written once
// and is the join key of the webhooks for its step
type ProviderRef struct {
	PaymentId  string `json:"paymentId,omitempty"`
	TransferId string `json:"transferId,omitempty"`
	PayoutId   string `json:"payoutId,omitempty"`
}

func (r ProviderRef) IsZero() (zero bool) {
	return r.PaymentId == "" && r.TransferId == "" && r.PayoutId == ""
}

func (r ProviderRef) Get(step Step) (id string) {
	switch step {
	case StepPayment:
		return r.PaymentId
	case StepTransfer:
		return r.TransferId
	case StepPayout:
		return r.PayoutId
	default:
		return ""
	}
}

// With sets the field of step unless it was already written
func (r ProviderRef) With(step Step, id string) (ref ProviderRef) {
	ref = r
	if ref.Get(step) != "" {
		return ref
	}
	switch step {
	case StepPayment:
		ref.PaymentId = id
	case StepTransfer:
		ref.TransferId = id
	case StepPayout:
		ref.PayoutId = id
	}
	return ref
}

// Merge fills the empty fields of r with other's
func (r ProviderRef) Merge(other ProviderRef) (ref ProviderRef) {
	return r.
		With(StepPayment, other.PaymentId).
		With(StepTransfer, other.TransferId).
		With(StepPayout, other.PayoutId)
}
