// Package retry wraps fallible operations in capped exponential backoff
// with an overall deadline.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy parameterizes a retry loop: first wait, per-attempt cap,
// growth factor, and a hard overall deadline measured from the first
// attempt. A zero Deadline retries until the context is done.
type Policy struct {
	InitialWait time.Duration
	Multiplier  float64
	MaxWait     time.Duration
	Deadline    time.Duration
}

// BackOff builds the context-aware backoff for one retry loop.
// Randomization is disabled: waits are deterministic and never exceed
// MaxWait, which callers rely on for their latency bounds.
func (p Policy) BackOff(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialWait
	bo.Multiplier = p.Multiplier
	bo.MaxInterval = p.MaxWait
	bo.MaxElapsedTime = p.Deadline
	bo.RandomizationFactor = 0
	bo.Reset()
	return backoff.WithContext(bo, ctx)
}

// Do runs op until it succeeds, returns a permanent error, or the
// policy's deadline elapses. On deadline it returns op's last error.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	return backoff.Retry(func() error { return op(ctx) }, p.BackOff(ctx))
}

// Permanent marks err as non-retryable: Do stops and returns it as-is.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
