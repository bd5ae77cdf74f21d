package utils

import (
	"context"
	"time"
)

const DefaultTimeout = 5 * time.Minute

func NewContext() (ctx context.Context, cancel func()) {
	return context.WithTimeout(context.TODO(), DefaultTimeout)
}

// Detach keeps the values of parent but drops its cancellation. Used for work
// that must finish even when the request that triggered it is gone
func Detach(parent context.Context) (ctx context.Context, cancel func()) {
	return context.WithTimeout(context.WithoutCancel(parent), DefaultTimeout)
}
