package timing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by a fixed step on every reading.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

func TestStartStop(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), step: 100 * time.Millisecond}
	s := NewSetAt(clock.Now)

	s.Start("commit")
	s.Stop("commit")

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "commit", entries[0].Name)
	assert.Equal(t, 100*time.Millisecond, entries[0].Elapsed)
}

func TestInsertionOrderPreserved(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), step: time.Millisecond}
	s := NewSetAt(clock.Now)

	s.StartInternal("pull_wait")
	s.Stop("pull_wait")
	s.Start("queue_wait")
	s.Stop("queue_wait")
	s.Observe("json_load", 2*time.Millisecond)

	var names []string
	for _, e := range s.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"pull_wait", "queue_wait", "json_load"}, names)
}

func TestWireMarksInternal(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), step: time.Second}
	s := NewSetAt(clock.Now)

	s.StartInternal("pull_wait")
	s.Stop("pull_wait")
	s.Start("commit")
	s.Stop("commit")

	w := s.Wire()
	assert.Contains(t, w, "(pull_wait)")
	assert.Contains(t, w, "commit")
	assert.InDelta(t, 1.0, w["commit"], 0.001)
}

func TestRestartReusesEntry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), step: 50 * time.Millisecond}
	s := NewSetAt(clock.Now)

	s.Start("commit")
	s.Stop("commit")
	s.Start("commit")
	s.Stop("commit")
	s.Observe("commit", 7*time.Millisecond)

	entries := s.Entries()
	require.Len(t, entries, 1, "restarting a name must not append a second entry")
	assert.Equal(t, 7*time.Millisecond, entries[0].Elapsed)
}

func TestStopUnknownNameIsNoop(t *testing.T) {
	s := NewSet()
	s.Stop("never_started")
	assert.Empty(t, s.Entries())
}

func TestIsInternalName(t *testing.T) {
	assert.True(t, IsInternalName("(pull_wait)"))
	assert.False(t, IsInternalName("commit"))
}
