package router

import (
	"errors"
	"net/http"
	"time"

	"github.com/RogueTeam/remit/gateway"
	"github.com/RogueTeam/remit/money"
	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/transfer"
	"github.com/RogueTeam/remit/webhook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stable error codes returned to clients
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeKYCRequired      = "KYC_REQUIRED"
	CodeAmountOutOfRange = "AMOUNT_OUT_OF_RANGE"
	CodePairUnsupported  = "PAIR_UNSUPPORTED"
	CodeRateNotFound     = "RATE_NOT_FOUND"
	CodeRateConsumed     = "RATE_CONSUMED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeInternal         = "INTERNAL"
)

type (
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Retryable bool   `json:"retryable"`
		// Set when the failure was recorded on a transaction
		TransactionId *uuid.UUID `json:"transactionId,omitempty"`
	}
	QuoteRequest struct {
		From   string          `json:"from"`
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount,omitzero"`
	}
	Fees struct {
		Currency       string          `json:"currency"`
		CardProcessing decimal.Decimal `json:"cardProcessing"`
		Routing        decimal.Decimal `json:"routing"`
		Payout         decimal.Decimal `json:"payout"`
		PayoutLocal    decimal.Decimal `json:"payoutLocal"`
		Total          decimal.Decimal `json:"total"`
	}
	Quote struct {
		From          string          `json:"from"`
		To            string          `json:"to"`
		Rate          decimal.Decimal `json:"rate"`
		InverseRate   decimal.Decimal `json:"inverseRate"`
		Fees          Fees            `json:"fees"`
		SendAmount    decimal.Decimal `json:"sendAmount,omitzero"`
		ReceiveAmount decimal.Decimal `json:"receiveAmount,omitzero"`
		Source        quote.Source    `json:"source"`
		ValidUntil    time.Time       `json:"validUntil"`
	}
	LockRequest struct {
		From   string          `json:"from"`
		To     string          `json:"to"`
		Amount decimal.Decimal `json:"amount"`
	}
	LockedRate struct {
		Id            string          `json:"id"`
		Quote         Quote           `json:"quote"`
		SendAmount    decimal.Decimal `json:"sendAmount"`
		ReceiveAmount decimal.Decimal `json:"receiveAmount"`
		ExpiresAt     time.Time       `json:"expiresAt"`
		Consumed      bool            `json:"consumed"`
	}
	Send struct {
		RateId        string           `json:"rateId"`
		SenderId      string           `json:"senderId"`
		KYCApproved   bool             `json:"kycApproved"`
		CardToken     string           `json:"cardToken"`
		Sender        transfer.Contact `json:"sender"`
		Recipient     transfer.Contact `json:"recipient"`
		BankAccount   string           `json:"bankAccount,omitempty"`
		WalletAddress string           `json:"walletAddress,omitempty"`
		Country       string           `json:"country,omitempty"`
		PreferredRail rails.Rail       `json:"preferredRail,omitempty"`
	}
	Transfer struct {
		Id              uuid.UUID       `json:"id"`
		Status          transfer.Status `json:"status"`
		SendAmount      decimal.Decimal `json:"sendAmount"`
		SendCurrency    string          `json:"sendCurrency"`
		ReceiveAmount   decimal.Decimal `json:"receiveAmount"`
		ReceiveCurrency string          `json:"receiveCurrency"`
		ExchangeRate    decimal.Decimal `json:"exchangeRate"`
		SelectedRail    rails.Rail      `json:"selectedRail,omitempty"`
		// Fallback details of the routing decision
		FallbackTriggered bool       `json:"fallbackTriggered"`
		FallbackReason    string     `json:"fallbackReason,omitempty"`
		OriginalRail      rails.Rail `json:"originalRail,omitempty"`
		FailureReason     string     `json:"failureReason,omitempty"`
		CreatedAt         time.Time  `json:"createdAt"`
		UpdatedAt         time.Time  `json:"updatedAt"`
	}
	WebhookAck struct {
		Received bool `json:"received"`
		// False for events the gateway does not handle
		Recognized bool            `json:"recognized"`
		Applied    bool            `json:"applied"`
		Status     transfer.Status `json:"status,omitempty"`
	}
)

func QuoteFromEngine(src quote.Quote) (out Quote) {
	src = src.Rounded()
	return Quote{
		From:        src.From,
		To:          src.To,
		Rate:        src.Rate,
		InverseRate: src.InverseRate,
		Fees: Fees{
			Currency:       src.Fees.Currency,
			CardProcessing: src.Fees.CardProcessing,
			Routing:        src.Fees.Routing,
			Payout:         src.Fees.Payout,
			PayoutLocal:    src.Fees.PayoutLocal,
			Total:          src.Fees.Total,
		},
		SendAmount:    src.SendAmount,
		ReceiveAmount: src.ReceiveAmount,
		Source:        src.Source,
		ValidUntil:    src.ValidUntil,
	}
}

func LockedRateFromEngine(src quote.LockedRate) (out LockedRate) {
	src = src.Rounded()
	return LockedRate{
		Id:            src.Id,
		Quote:         QuoteFromEngine(src.Quote),
		SendAmount:    src.SendAmount,
		ReceiveAmount: src.ReceiveAmount,
		ExpiresAt:     src.ExpiresAt,
		Consumed:      src.Consumed,
	}
}

func SendToGateway(src *Send) (out gateway.Send) {
	return gateway.Send{
		RateId:        src.RateId,
		SenderId:      src.SenderId,
		KYCApproved:   src.KYCApproved,
		CardToken:     src.CardToken,
		Sender:        src.Sender,
		Recipient:     src.Recipient,
		BankAccount:   src.BankAccount,
		WalletAddress: src.WalletAddress,
		Country:       src.Country,
		PreferredRail: src.PreferredRail,
	}
}

// Convert the stored transaction hiding provider references
func TransferFromGateway(src *transfer.Transaction) (out Transfer) {
	return Transfer{
		Id:                src.Id,
		Status:            src.Status,
		SendAmount:        money.Round(src.SendAmount, src.SendCurrency),
		SendCurrency:      src.SendCurrency,
		ReceiveAmount:     money.Round(src.ReceiveAmount, src.ReceiveCurrency),
		ReceiveCurrency:   src.ReceiveCurrency,
		ExchangeRate:      src.ExchangeRate,
		SelectedRail:      src.SelectedRail,
		FallbackTriggered: src.Routing.FallbackTriggered,
		FallbackReason:    src.Routing.FallbackReason,
		OriginalRail:      src.Routing.OriginalRail,
		FailureReason:     src.FailureReason,
		CreatedAt:         src.CreatedAt,
		UpdatedAt:         src.UpdatedAt,
	}
}

// ErrorFrom maps a controller error to its HTTP status and body
func ErrorFrom(err error) (status int, body Error) {
	body.Message = err.Error()

	var providerErr *rails.Error
	switch {
	case errors.Is(err, gateway.ErrKYCRequired):
		return http.StatusForbidden, Error{Code: CodeKYCRequired, Message: body.Message}
	case errors.Is(err, gateway.ErrAmountOutOfRange):
		return http.StatusUnprocessableEntity, Error{Code: CodeAmountOutOfRange, Message: body.Message}
	case errors.Is(err, gateway.ErrInvalidRequest),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, quote.ErrSameCurrency),
		errors.Is(err, quote.ErrAmountTooSmall),
		errors.Is(err, webhook.ErrInvalidPayload):
		return http.StatusBadRequest, Error{Code: CodeInvalidRequest, Message: body.Message}
	case errors.Is(err, quote.ErrPairUnsupported):
		return http.StatusUnprocessableEntity, Error{Code: CodePairUnsupported, Message: body.Message}
	case errors.Is(err, quote.ErrRateNotFound):
		return http.StatusNotFound, Error{Code: CodeRateNotFound, Message: body.Message}
	case errors.Is(err, quote.ErrRateConsumed):
		return http.StatusConflict, Error{Code: CodeRateConsumed, Message: body.Message}
	case errors.Is(err, gateway.ErrTransferNotFound):
		return http.StatusNotFound, Error{Code: CodeNotFound, Message: body.Message}
	case errors.Is(err, webhook.ErrInvalidSignature):
		return http.StatusUnauthorized, Error{Code: CodeInvalidSignature, Message: body.Message}
	case errors.As(err, &providerErr):
		body = Error{Code: providerErr.Code(), Message: rails.UserMessage(err), Retryable: providerErr.Retryable}
		switch providerErr.Kind {
		case rails.KindCardDeclined, rails.KindInsufficientFunds:
			return http.StatusPaymentRequired, body
		case rails.KindValidation:
			return http.StatusUnprocessableEntity, body
		case rails.KindRateLimited:
			return http.StatusTooManyRequests, body
		default:
			return http.StatusBadGateway, body
		}
	default:
		return http.StatusInternalServerError, Error{Code: CodeInternal, Message: "internal error", Retryable: true}
	}
}
