package gateway

import (
	"context"
	"fmt"

	"github.com/RogueTeam/remit/notify"
)

// ProcessNotifications delivers every due notification job
func (c *Controller) ProcessNotifications(ctx context.Context) (report notify.SweepReport, err error) {
	report, err = c.notifications.Sweep(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to sweep notifications: %w", err)
	}
	return report, nil
}

// ProcessExpiredLocks drops expired rate locks and cached quotes
func (c *Controller) ProcessExpiredLocks(ctx context.Context) (purged int, err error) {
	purged, err = c.quotes.PurgeExpired(ctx)
	if err != nil {
		return purged, fmt.Errorf("failed to purge locks: %w", err)
	}
	return purged, nil
}

// ProcessDeliveredNotifications reaps jobs past their retention
func (c *Controller) ProcessDeliveredNotifications(ctx context.Context) (reaped int, err error) {
	reaped, err = c.notifications.Reap(ctx)
	if err != nil {
		return reaped, fmt.Errorf("failed to reap notifications: %w", err)
	}
	return reaped, nil
}

func (c *Controller) NotificationStats(ctx context.Context) (stats notify.Stats, err error) {
	return c.notifications.Stats(ctx)
}
