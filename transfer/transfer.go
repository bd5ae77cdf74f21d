package transfer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/routing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TransactionKey(id uuid.UUID) (key []byte) {
	return []byte(fmt.Sprintf("/transactions/%s", id))
}

// RefKey indexes a transaction by the provider id of one rail step
func RefKey(step rails.Step, id string) (key []byte) {
	return []byte(fmt.Sprintf("/refs/%s/%s", step, id))
}

type (
	// Contact details of a party. Empty fields disable the matching channel
	Contact struct {
		UserId string `json:"userId,omitempty"`
		Name   string `json:"name,omitempty"`
		Email  string `json:"email,omitempty"`
		Phone  string `json:"phone,omitempty"`
		// Push device token
		Device string `json:"device,omitempty"`
	}
	// Draft holds everything known about a transfer before it is routed
	Draft struct {
		Id              uuid.UUID
		SenderId        string
		Sender          Contact
		Recipient       Contact
		SendAmount      decimal.Decimal
		SendCurrency    string
		ReceiveAmount   decimal.Decimal
		ReceiveCurrency string
		ExchangeRate    decimal.Decimal
		// Locked rate backing the amounts
		RateId string
	}
	Transaction struct {
		Id              uuid.UUID         `json:"id"`
		SenderId        string            `json:"senderId"`
		Sender          Contact           `json:"sender"`
		Recipient       Contact           `json:"recipient"`
		SendAmount      decimal.Decimal   `json:"sendAmount"`
		SendCurrency    string            `json:"sendCurrency"`
		ReceiveAmount   decimal.Decimal   `json:"receiveAmount"`
		ReceiveCurrency string            `json:"receiveCurrency"`
		ExchangeRate    decimal.Decimal   `json:"exchangeRate"`
		RateId          string            `json:"rateId,omitempty"`
		Status          Status            `json:"status"`
		SelectedRail    rails.Rail        `json:"selectedRail,omitempty"`
		ChargeId        string            `json:"chargeId,omitempty"`
		ProviderRef     rails.ProviderRef `json:"providerRef"`
		Routing         routing.Metadata  `json:"routing"`
		// User safe reason of a FAILED transaction
		FailureReason string    `json:"failureReason,omitempty"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}
)

func (t *Transaction) Bytes() (bytes []byte) {
	bytes, _ = json.Marshal(t)
	return bytes
}

func (t *Transaction) FromBytes(b []byte) (err error) {
	return json.Unmarshal(b, t)
}

func (d *Draft) transaction(now time.Time) (t Transaction) {
	return Transaction{
		Id:              d.Id,
		SenderId:        d.SenderId,
		Sender:          d.Sender,
		Recipient:       d.Recipient,
		SendAmount:      d.SendAmount,
		SendCurrency:    d.SendCurrency,
		ReceiveAmount:   d.ReceiveAmount,
		ReceiveCurrency: d.ReceiveCurrency,
		ExchangeRate:    d.ExchangeRate,
		RateId:          d.RateId,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
