package notify

import (
	"regexp"
)

// Notification event types. One per notifiable transaction status
const (
	EventProcessing       = "transfer.processing"
	EventPaymentConfirmed = "transfer.payment_confirmed"
	EventTransferring     = "transfer.transferring"
	EventPayingOut        = "transfer.paying_out"
	EventCompleted        = "transfer.completed"
	EventFailed           = "transfer.failed"
)

// Class groups event types for preference checks
type Class string

const (
	ClassStatusUpdates Class = "status_updates"
	ClassAlerts        Class = "alerts"
)

func ClassOf(eventType string) (class Class) {
	if eventType == EventFailed {
		return ClassAlerts
	}
	return ClassStatusUpdates
}

type (
	Template struct {
		Subject string
		Body    string
	}
	// Templates by event type and channel
	Templates map[string]map[Channel]Template
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Render replaces every {{name}} with vars[name]. Missing variables render empty
func Render(text string, vars map[string]string) (rendered string) {
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		return vars[name]
	})
}

// Lookup returns the template of eventType for channel
func (t Templates) Lookup(eventType string, channel Channel) (template Template, found bool) {
	byChannel, found := t[eventType]
	if !found {
		return template, false
	}
	template, found = byChannel[channel]
	return template, found
}

func short(text string) (templates map[Channel]Template) {
	return map[Channel]Template{
		ChannelEmail: {Subject: "Transfer {{transaction_id}}", Body: "Hi {{name}}, " + text},
		ChannelSMS:   {Body: text},
		ChannelPush:  {Subject: "Transfer update", Body: text},
	}
}

var DefaultTemplates = Templates{
	EventProcessing:       short("your transfer of {{send_amount}} {{send_currency}} is being processed."),
	EventPaymentConfirmed: short("the payment of {{send_amount}} {{send_currency}} was confirmed."),
	EventTransferring:     short("{{receive_amount}} {{receive_currency}} are on their way to {{recipient_name}}."),
	EventPayingOut:        short("{{receive_amount}} {{receive_currency}} are being paid out to {{recipient_name}}."),
	EventCompleted:        short("{{recipient_name}} received {{receive_amount}} {{receive_currency}}."),
	EventFailed:           short("the transfer to {{recipient_name}} failed. {{failure_reason}}"),
}
