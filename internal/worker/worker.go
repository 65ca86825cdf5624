// Package worker implements the consumer side of the pipeline: pull one
// message, execute its batch transactionally, publish the result
// envelope, repeat.
//
// A worker processes exactly one message at a time. Throughput scales
// horizontally: independent worker processes share one subscription and
// the bus handles fan-out and redelivery.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/roach88/qpipe/internal/bus"
	"github.com/roach88/qpipe/internal/corrstore"
	"github.com/roach88/qpipe/internal/timing"
	"github.com/roach88/qpipe/internal/wire"
)

// Config bounds the worker's shedding and reporting behavior.
type Config struct {
	// StaleAfter is the message age past which the batch is dropped
	// without executing: the producer's wait has already expired, so
	// doing the work would burn a transaction nobody reads.
	StaleAfter time.Duration

	// ResultTTL bounds the result envelope's lifetime in the store.
	ResultTTL time.Duration

	// WarnEvery rate-limits the no-message warning on idle loops.
	WarnEvery time.Duration
}

// pullErrorPause keeps the loop from spinning hot when the bus is
// unreachable: an erroring Pull returns immediately, unlike an empty
// one, which blocks for the provider's wait window.
const pullErrorPause = 100 * time.Millisecond

// Worker is one consumer loop instance.
type Worker struct {
	id    string
	bus   bus.Bus
	store corrstore.Store
	exec  *Executor
	cfg   Config
	log   logrus.FieldLogger

	clock func() time.Time

	// Idle-warning state, touched only by the loop goroutine.
	idleSince time.Time
	lastWarn  time.Duration
}

// New creates a worker. Zero config durations get the defaults the rest
// of the pipeline assumes (30s staleness, 30s TTL, 10s warn interval).
func New(id string, b bus.Bus, s corrstore.Store, exec *Executor, cfg Config, log logrus.FieldLogger) *Worker {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 30 * time.Second
	}
	if cfg.WarnEvery <= 0 {
		cfg.WarnEvery = 10 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Worker{
		id:    id,
		bus:   b,
		store: s,
		exec:  exec,
		cfg:   cfg,
		log:   log.WithField("worker", id),
		clock: time.Now,
	}
}

// Run loops until the context is done. Every failure mode inside an
// iteration is absorbed: a worker only exits on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker ready, polling for messages")
	w.idleSince = w.clock()
	for {
		if err := ctx.Err(); err != nil {
			w.log.Info("worker stopping")
			return err
		}
		w.RunOnce(ctx)
	}
}

// RunOnce performs a single loop iteration and reports whether a
// message was handled. A no-op iteration (nothing to pull) is normal.
func (w *Worker) RunOnce(ctx context.Context) bool {
	timers := timing.NewSetAt(w.clock)
	timers.StartInternal("worker_processing")

	timers.StartInternal("pull_wait")
	ds, err := w.bus.Pull(ctx, 1)
	timers.Stop("pull_wait")
	if err != nil {
		if ctx.Err() == nil {
			w.log.WithError(err).Error("pull failed")
			time.Sleep(pullErrorPause)
		}
		return false
	}
	if len(ds) == 0 {
		w.warnIdle()
		return false
	}
	w.idleSince = w.clock()
	w.lastWarn = 0

	d := ds[0]
	if err := w.process(ctx, d, timers); err != nil {
		// Drop the message whatever went wrong: stale and malformed
		// messages can never succeed, and a poison batch must not be
		// redelivered to the next worker. The producer observes the
		// missing result as a lookup timeout.
		var stale *StaleMessageError
		var malformed *MalformedBatchError
		switch {
		case errors.As(err, &stale):
			w.log.WithField("key", stale.Key).Errorf("ack, %.0f secs old", stale.Age.Seconds())
		case errors.As(err, &malformed):
			w.log.WithError(malformed.Err).WithField("key", malformed.Key).Error("unable to decode message, dropping")
		default:
			w.log.WithError(err).Error("unable to process message, dropping")
		}
		if ackErr := w.bus.Acknowledge(ctx, []string{d.AckID}); ackErr != nil {
			w.log.WithError(ackErr).Error("acknowledge failed for dropped message")
		}
	}
	return true
}

// process handles one delivery through the full state machine:
// decode, staleness check, execute, commit, acknowledge, publish.
func (w *Worker) process(ctx context.Context, d bus.Delivery, timers *timing.Set) error {
	attrs := d.Msg.Attributes
	corrKey := wire.CorrelationKey(attrs[wire.AttrServerID], attrs[wire.AttrTransactionID])
	log := w.log.WithField("key", corrKey)

	var insertion time.Time
	if raw, ok := attrs[wire.AttrInsertionTime]; ok {
		t, err := wire.ParseInsertionTime(raw)
		if err != nil {
			return &MalformedBatchError{Key: corrKey, Err: err}
		}
		insertion = t
		queueWait := w.clock().Sub(insertion)
		timers.Observe("queue_wait", queueWait)
		if queueWait > w.cfg.StaleAfter {
			return &StaleMessageError{Key: corrKey, Age: queueWait}
		}
	}

	timers.Start("json_load")
	batch, err := wire.DecodeBatch(d.Msg.Data)
	timers.Stop("json_load")
	if err != nil {
		return &MalformedBatchError{Key: corrKey, Err: err}
	}

	res, err := w.exec.ExecuteBatch(ctx, batch, corrKey, timers)
	if err != nil {
		return fmt.Errorf("execute batch %s: %w", corrKey, err)
	}

	// Acknowledge before publishing: the transaction is committed, so
	// redelivering now would double-apply it.
	timers.Start("ack")
	err = w.bus.Acknowledge(ctx, []string{d.AckID})
	timers.Stop("ack")
	if err != nil {
		log.WithError(err).Error("acknowledge failed after commit")
	}

	timers.Start("store_write")
	wireTimers := timers.Wire()
	// The handoff marks travel as absolute timestamps; the producer
	// turns them into elapsed times when it reads the envelope.
	wireTimers[wire.TimerStoreWrite] = wire.EpochSeconds(w.clock())
	if !insertion.IsZero() {
		wireTimers[wire.TimerTotal] = wire.EpochSeconds(insertion)
	}
	res.Timers = wireTimers

	payload, err := wire.EncodeResult(res)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", corrKey, err)
	}
	if err := w.store.SetWithTTL(ctx, corrKey, payload, w.cfg.ResultTTL); err != nil {
		return fmt.Errorf("publish result %s: %w", corrKey, err)
	}
	timers.Stop("store_write")
	timers.Stop("worker_processing")

	for _, e := range timers.Entries() {
		log.Infof("%06.3f - %s", e.Elapsed.Seconds(), timing.WireName(e.Name, e.Internal))
	}
	return nil
}

// warnIdle emits the rate-limited no-message warning.
func (w *Worker) warnIdle() {
	waited := w.clock().Sub(w.idleSince)
	if waited-w.lastWarn > w.cfg.WarnEvery {
		w.lastWarn = waited
		w.log.Warnf("no message received in %.03f seconds", waited.Seconds())
	}
}
