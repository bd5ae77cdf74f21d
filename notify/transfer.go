package notify

import (
	"context"

	"github.com/RogueTeam/remit/money"
	"github.com/RogueTeam/remit/transfer"
)

var _ transfer.Notifier = (*Engine)(nil)

// EventFor returns the notification event of a transaction status
func EventFor(status transfer.Status) (eventType string, ok bool) {
	switch status {
	case transfer.StatusPaymentProcessing:
		return EventProcessing, true
	case transfer.StatusPaymentConfirmed:
		return EventPaymentConfirmed, true
	case transfer.StatusTransferring:
		return EventTransferring, true
	case transfer.StatusPayingOut:
		return EventPayingOut, true
	case transfer.StatusCompleted:
		return EventCompleted, true
	case transfer.StatusFailed:
		return EventFailed, true
	default:
		return "", false
	}
}

func recipient(contact transfer.Contact) (r Recipient) {
	return Recipient{
		UserId: contact.UserId,
		Name:   contact.Name,
		Email:  contact.Email,
		Phone:  contact.Phone,
		Device: contact.Device,
	}
}

// StatusChanged queues the notifications of a transaction status change for
// both the sender and the recipient
func (e *Engine) StatusChanged(ctx context.Context, t transfer.Transaction, previous transfer.Status) (err error) {
	eventType, ok := EventFor(t.Status)
	if !ok {
		return nil
	}

	tc := TransferContext{
		TransactionId:   t.Id,
		Status:          string(t.Status),
		SenderName:      t.Sender.Name,
		RecipientName:   t.Recipient.Name,
		SendAmount:      money.Format(money.Round(t.SendAmount, t.SendCurrency), t.SendCurrency),
		SendCurrency:    t.SendCurrency,
		ReceiveAmount:   money.Format(money.Round(t.ReceiveAmount, t.ReceiveCurrency), t.ReceiveCurrency),
		ReceiveCurrency: t.ReceiveCurrency,
		FailureReason:   t.FailureReason,
	}
	sender := recipient(t.Sender)
	if sender.UserId == "" {
		sender.UserId = t.SenderId
	}
	_, err = e.Notify(ctx, eventType, tc, []Recipient{sender, recipient(t.Recipient)}, Channels)
	return err
}
