package corrstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "srvA:tx1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.SetWithTTL(ctx, "srvA:tx1", []byte(`{"affected":1}`), 30*time.Second))

	val, err := m.Get(ctx, "srvA:tx1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"affected":1}`), val)
}

func TestMemoryTTLExpiryBehavesAsNotFound(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemoryAt(func() time.Time { return now })

	require.NoError(t, m.SetWithTTL(ctx, "k", []byte("v"), 30*time.Second))

	now = now.Add(29 * time.Second)
	_, err := m.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, m.Len(), "expired entries are reaped on read")
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	src := []byte("value")
	require.NoError(t, m.SetWithTTL(ctx, "k", src, time.Minute))
	src[0] = 'X'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	got[0] = 'Y'
	again, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), again)
}
