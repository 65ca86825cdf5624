// Package producer implements the enqueue side of the pipeline: publish
// a batch to the bus, then poll the correlation store until the result
// envelope appears or the deadline passes.
package producer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/roach88/qpipe/internal/bus"
	"github.com/roach88/qpipe/internal/corrstore"
	"github.com/roach88/qpipe/internal/retry"
	"github.com/roach88/qpipe/internal/timing"
	"github.com/roach88/qpipe/internal/wire"
)

// ErrLookupTimeout is returned when no result envelope appears within
// the poll deadline. The publish is not retried: the batch may still
// execute, but nobody is waiting for it anymore.
var ErrLookupTimeout = errors.New("producer: result lookup timed out")

// errNotReady is the retryable "keep polling" error inside the wait loop.
var errNotReady = errors.New("producer: result not ready")

// DefaultPollPolicy is the result wait: 100ms first check, doubling up
// to 2500ms between checks, 30s overall.
var DefaultPollPolicy = retry.Policy{
	InitialWait: 100 * time.Millisecond,
	Multiplier:  2,
	MaxWait:     2500 * time.Millisecond,
	Deadline:    30 * time.Second,
}

// Enqueuer publishes batches and waits for their results.
type Enqueuer struct {
	ServerID string
	Bus      bus.Bus
	Store    corrstore.Store

	// Poll bounds the wait for a correlated result.
	Poll retry.Policy

	// SlowThreshold is the round-trip time past which the non-internal
	// timers are dumped to the slow-call sink.
	SlowThreshold time.Duration

	// Slow receives one line per timer for slow calls. Nil disables it.
	Slow SlowCallSink

	Log logrus.FieldLogger

	clock func() time.Time
}

// New creates an enqueuer with the default poll policy and a 10s slow
// threshold.
func New(serverID string, b bus.Bus, s corrstore.Store, log logrus.FieldLogger) *Enqueuer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Enqueuer{
		ServerID:      serverID,
		Bus:           b,
		Store:         s,
		Poll:          DefaultPollPolicy,
		SlowThreshold: 10 * time.Second,
		Log:           log,
		clock:         time.Now,
	}
}

// NewTransactionID returns a fresh transaction id.
func NewTransactionID() string {
	return uuid.NewString()
}

// EnqueueAndWait publishes the batch under transID and blocks until the
// result envelope appears in the correlation store or the poll deadline
// passes. On success the envelope's handoff timer marks are resolved to
// elapsed durations and the producer-side timers are merged in.
//
// On timeout it returns ErrLookupTimeout; the publish is not retried.
func (e *Enqueuer) EnqueueAndWait(ctx context.Context, transID string, b wire.Batch) (*wire.Result, error) {
	key := wire.CorrelationKey(e.ServerID, transID)
	log := e.Log.WithField("key", key)

	start := e.now()
	body, err := wire.EncodeBatch(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch %s: %w", key, err)
	}

	err = e.Bus.Publish(ctx, bus.Message{
		Data: body,
		Attributes: map[string]string{
			wire.AttrServerID:      e.ServerID,
			wire.AttrTransactionID: transID,
			wire.AttrInsertionTime: wire.FormatInsertionTime(start),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("publish batch %s: %w", key, err)
	}
	publishDone := e.now()
	log.Debugf("%.03f - publish", publishDone.Sub(start).Seconds())

	var res *wire.Result
	err = retry.Do(ctx, e.Poll, func(ctx context.Context) error {
		raw, err := e.Store.Get(ctx, key)
		if errors.Is(err, corrstore.ErrNotFound) {
			return errNotReady
		}
		if err != nil {
			return err
		}
		decoded, err := wire.DecodeResult(raw)
		if err != nil {
			return retry.Permanent(err)
		}
		res = decoded
		return nil
	})
	if err != nil {
		if errors.Is(err, errNotReady) {
			log.Warnf("no result within %s", e.Poll.Deadline)
			return nil, fmt.Errorf("%w: %s after %s", ErrLookupTimeout, key, e.Poll.Deadline)
		}
		return nil, fmt.Errorf("lookup result %s: %w", key, err)
	}

	now := e.now()
	if res.Timers == nil {
		res.Timers = make(map[string]float64)
	}
	// The worker published these as absolute timestamps.
	for _, name := range []string{wire.TimerTotal, wire.TimerStoreWrite} {
		if v, ok := res.Timers[name]; ok {
			res.Timers[name] = wire.EpochSeconds(now) - v
		}
	}
	res.Timers["ack_check"] = now.Sub(publishDone).Seconds()
	roundtrip := now.Sub(start)
	res.Timers["roundtrip"] = roundtrip.Seconds()

	if roundtrip > e.SlowThreshold {
		e.reportSlow(log, res.Timers)
	}
	return res, nil
}

// reportSlow dumps the non-internal timers, sorted by name, to the
// slow-call sink and the log.
func (e *Enqueuer) reportSlow(log logrus.FieldLogger, timers map[string]float64) {
	names := make([]string, 0, len(timers))
	for name := range timers {
		if timing.IsInternalName(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		line := fmt.Sprintf("%06.3f - %s", timers[name], name)
		log.Warn(line)
		if e.Slow != nil {
			e.Slow.Record(line)
		}
	}
}

func (e *Enqueuer) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
