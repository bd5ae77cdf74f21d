package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/RogueTeam/remit/transfer"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPayload   = errors.New("invalid payload")
)

// Header carrying the hex encoded HMAC-SHA256 of the raw body
const SignatureHeader = "X-Signature"

type (
	Amount struct {
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	}
	Data struct {
		Id     string  `json:"id"`
		Status string  `json:"status"`
		Amount *Amount `json:"amount,omitempty"`
	}
	Payload struct {
		Type string `json:"Type"`
		// Delivery id assigned by the provider
		Id   string `json:"Id"`
		Data Data   `json:"Data"`
	}
	// Handler applies a verified provider event
	Handler interface {
		HandleEvent(ctx context.Context, event transfer.Event) (outcome transfer.Outcome, err error)
	}
	Config struct {
		// Shared with the provider
		Secret  []byte
		Handler Handler
		Logger  logrus.FieldLogger
	}
	Result struct {
		// The event type is one the gateway acts on
		Recognized bool
		Outcome    transfer.Outcome
	}
)

// Sign returns the signature a provider sends for payload
func Sign(secret, payload []byte) (signature string) {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against the raw payload in constant time
func Verify(secret, payload []byte, signature string) (err error) {
	if len(secret) == 0 {
		return fmt.Errorf("%w: no secret configured", ErrInvalidSignature)
	}
	received, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(received) == 0 {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	if !hmac.Equal(received, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Parse decodes the envelope. Fields are checked by Ingest once the event
// type is known to be handled
func Parse(payload []byte) (p Payload, err error) {
	err = json.Unmarshal(payload, &p)
	if err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return p, nil
}

type Ingestor struct {
	secret  []byte
	handler Handler
	logger  logrus.FieldLogger
}

func New(config Config) (i *Ingestor) {
	i = &Ingestor{
		secret:  config.Secret,
		handler: config.Handler,
		logger:  config.Logger,
	}
	if i.logger == nil {
		i.logger = logrus.StandardLogger()
	}
	return i
}

// Ingest verifies and applies one provider delivery. eventType comes from the
// delivery route and falls back to the payload Type when empty. Unknown types
// are acknowledged without being acted on
func (i *Ingestor) Ingest(ctx context.Context, eventType string, payload []byte, signature string) (result Result, err error) {
	err = Verify(i.secret, payload, signature)
	if err != nil {
		i.logger.WithField("event", eventType).Warn("rejected webhook with invalid signature")
		return result, err
	}

	p, err := Parse(payload)
	if err != nil {
		return result, err
	}
	switch {
	case eventType == "":
		eventType = p.Type
	case p.Type != "" && !strings.EqualFold(eventType, p.Type):
		i.logger.WithFields(logrus.Fields{"event": eventType, "payload_type": p.Type, "delivery": p.Id}).Warn("rejected webhook with mismatching event type")
		return result, fmt.Errorf("%w: event type %q does not match payload type %q", ErrInvalidPayload, eventType, p.Type)
	}

	kind := transfer.EventType(strings.ToLower(eventType))
	if _, ok := kind.Step(); !ok {
		i.logger.WithFields(logrus.Fields{"event": eventType, "delivery": p.Id}).Info("acknowledged unhandled event type")
		return result, nil
	}
	if p.Data.Id == "" {
		return result, fmt.Errorf("%w: missing object id", ErrInvalidPayload)
	}

	result.Recognized = true
	result.Outcome, err = i.handler.HandleEvent(ctx, transfer.Event{
		Type:     kind,
		ObjectId: p.Data.Id,
		Status:   p.Data.Status,
	})
	if err != nil {
		return result, fmt.Errorf("failed to handle event: %w", err)
	}
	return result, nil
}
