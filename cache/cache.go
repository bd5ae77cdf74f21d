package cache

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Receives the current value and returns the replacement. Returning an error aborts the update
type UpdateFunc func(current []byte) (next []byte, err error)

// Store is a key/value cache with per entry expiration.
// A ttl of zero means the entry never expires
type Store interface {
	// Returns ErrNotFound for missing or expired keys. Expired keys are removed on lookup
	Get(ctx context.Context, key string) (value []byte, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (err error)
	Delete(ctx context.Context, key string) (err error)
	// Atomic read-modify-write of an existing key. The expiration is preserved
	Update(ctx context.Context, key string, fn UpdateFunc) (err error)
	// Removes every expired entry under prefix
	Purge(ctx context.Context, prefix string) (purged int, err error)
}
