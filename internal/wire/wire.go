// Package wire defines the formats that cross process boundaries: the
// batch body published to the message bus, the message attributes that
// ride alongside it, and the result envelope handed back through the
// correlation store.
package wire

import (
	"fmt"
	"strconv"
	"time"
)

// Message attribute keys.
const (
	AttrServerID      = "srv_id"
	AttrTransactionID = "trans_id"
	AttrInsertionTime = "insertion_time"
)

// Statement is one element of a batch: the SQL text to execute and the
// result key under which its rows are aggregated.
type Statement struct {
	Text      string
	ResultKey string
}

// Batch is an ordered sequence of statements executed as one unit of
// work inside a single database transaction. Order is significant: it
// is preserved in result aggregation and per-statement timing.
type Batch []Statement

// Row is one result row, column name to value.
type Row map[string]any

// Result is the envelope a worker publishes for one batch: rows grouped
// by result key, the total affected-row count, and named timers.
//
// Timer values are float seconds. Most are elapsed durations; the
// handoff marks (TimerTotal, TimerStoreWrite) are absolute epoch
// timestamps that the producer converts to elapsed on read. Timer names
// wrapped in parentheses are internal to the worker and excluded from
// the producer's slow-call reporting.
type Result struct {
	Rows     map[string][]Row
	Affected int
	Timers   map[string]float64
}

// Timer names shared between producer and worker.
const (
	// TimerTotal is published as the batch's insertion timestamp and
	// resolved by the producer into end-to-end elapsed time.
	TimerTotal = "total"

	// TimerStoreWrite is published as the moment the worker wrote the
	// result and resolved by the producer into handoff latency.
	TimerStoreWrite = "store_write"
)

// ReservedResultKey reports whether key names an envelope field rather
// than a row list. INSERT and UPDATE statements conventionally use
// "affected" as their result key, folding their row counts into the
// envelope's Affected field; rows cannot travel under a reserved key.
func ReservedResultKey(key string) bool {
	return key == "affected" || key == "timers"
}

// CorrelationKey builds the store key for one in-flight transaction.
// It is globally unique per request: server ids are unique per producer
// instance and transaction ids are unique within one.
func CorrelationKey(serverID, transactionID string) string {
	return serverID + ":" + transactionID
}

// FormatInsertionTime renders t as the epoch-seconds string carried in
// the insertion_time attribute.
func FormatInsertionTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

// EpochSeconds renders t as float seconds since the epoch, the unit
// timer values use on the wire.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// ParseInsertionTime parses an insertion_time attribute value.
func ParseInsertionTime(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse insertion_time %q: %w", s, err)
	}
	return time.Unix(0, int64(secs*1e9)), nil
}
