package gateway

import (
	"context"

	"github.com/RogueTeam/remit/quote"
	"github.com/RogueTeam/remit/webhook"
)

func (c *Controller) Quote(ctx context.Context, req quote.QuoteRequest) (q quote.Quote, err error) {
	return c.quotes.GetQuote(ctx, req)
}

func (c *Controller) LockRate(ctx context.Context, req quote.LockRequest) (locked quote.LockedRate, err error) {
	return c.quotes.LockRate(ctx, req)
}

func (c *Controller) LockedRate(ctx context.Context, id string) (locked quote.LockedRate, err error) {
	return c.quotes.GetLockedRate(ctx, id)
}

// Webhook ingests one signed provider delivery
func (c *Controller) Webhook(ctx context.Context, eventType string, payload []byte, signature string) (result webhook.Result, err error) {
	return c.webhooks.Ingest(ctx, eventType, payload, signature)
}
