package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBatchShape(t *testing.T) {
	b := Batch{
		{Text: "INSERT INTO player (stamina) VALUES ('5')", ResultKey: "affected"},
		{Text: "SELECT * FROM player WHERE id IN (42)", ResultKey: "player"},
	}
	data, err := EncodeBatch(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"queries": [
		["INSERT INTO player (stamina) VALUES ('5')", "affected"],
		["SELECT * FROM player WHERE id IN (42)", "player"]
	]}`, string(data))
}

func TestDecodeBatchPreservesOrder(t *testing.T) {
	data := []byte(`{"queries": [["a", "k1"], ["b", "k2"], ["c", "k1"]]}`)
	b, err := DecodeBatch(data)
	require.NoError(t, err)
	require.Len(t, b, 3)
	assert.Equal(t, Statement{Text: "a", ResultKey: "k1"}, b[0])
	assert.Equal(t, Statement{Text: "b", ResultKey: "k2"}, b[1])
	assert.Equal(t, Statement{Text: "c", ResultKey: "k1"}, b[2])
}

func TestDecodeBatchMalformed(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"queries": "nope"`))
	assert.Error(t, err)
}

func TestResultEnvelopeRoundTrip(t *testing.T) {
	r := &Result{
		Rows: map[string][]Row{
			"player": {{"id": float64(42), "stamina": float64(5)}},
			// The conventional key for inserts; its counts live in
			// Affected, so the empty list never reaches the wire.
			"affected": {},
		},
		Affected: 1,
		Timers:   map[string]float64{"commit": 0.041, "(pull_wait)": 0.939},
	}
	data, err := EncodeResult(r)
	require.NoError(t, err)

	// The stored form is flat: result keys at the top level, with the
	// "affected" field carrying the int count.
	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Contains(t, flat, "player")
	assert.Contains(t, flat, "timers")
	assert.JSONEq(t, `1`, string(flat["affected"]))

	got, err := DecodeResult(data)
	require.NoError(t, err)
	assert.Equal(t, r.Affected, got.Affected)
	assert.Equal(t, r.Timers, got.Timers)
	assert.Equal(t, map[string][]Row{
		"player": {{"id": float64(42), "stamina": float64(5)}},
	}, got.Rows)
}

func TestResultReservedKeyRowsCollide(t *testing.T) {
	r := &Result{Rows: map[string][]Row{"timers": {{"x": 1}}}}
	_, err := EncodeResult(r)
	assert.Error(t, err)

	r = &Result{Rows: map[string][]Row{"affected": {{"id": 1}}}}
	_, err = EncodeResult(r)
	assert.Error(t, err)
}

func TestReservedResultKey(t *testing.T) {
	assert.True(t, ReservedResultKey("affected"))
	assert.True(t, ReservedResultKey("timers"))
	assert.False(t, ReservedResultKey("player"))
}

func TestCorrelationKey(t *testing.T) {
	assert.Equal(t, "srvA:tx1", CorrelationKey("srvA", "tx1"))
}

func TestInsertionTimeRoundTrip(t *testing.T) {
	now := time.Unix(1466000000, 500000000)
	s := FormatInsertionTime(now)
	got, err := ParseInsertionTime(s)
	require.NoError(t, err)
	assert.WithinDuration(t, now, got, time.Millisecond)
}

func TestParseInsertionTimeInvalid(t *testing.T) {
	_, err := ParseInsertionTime("not-a-timestamp")
	assert.Error(t, err)
}
