// Package idempotency reserves client submission keys so a duplicate
// request either waits out the first one or receives its result.
package idempotency

import (
	"context"
	"errors"
)

// ErrInFlight is returned by Reserve when the key is held by a request that
// has not finished yet.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// Store records idempotency keys.
type Store interface {
	// Reserve claims key. It returns the stored result if the key already
	// completed, ErrInFlight if another request holds it, or "" and nil if
	// the caller now owns the key.
	Reserve(ctx context.Context, key string) (string, error)
	// Complete stores the result for a key owned by the caller.
	Complete(ctx context.Context, key, result string) error
	// Release drops a reservation so the client can retry.
	Release(ctx context.Context, key string) error
}

const pendingMarker = "\x00pending"
