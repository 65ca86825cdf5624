// Package corrstore is the ephemeral key/value store used to hand a
// result envelope from a worker back to the producer that is polling
// for it. Values are write-once-then-read-many and expire on a TTL;
// after expiry a read behaves exactly as if the key was never written.
package corrstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("corrstore: key not found")

// Store is the contract the pipeline consumes.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL writes value at key with the given time to live.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
