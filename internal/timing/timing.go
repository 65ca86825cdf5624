// Package timing provides the per-request timer context that travels
// with one batch through the pipeline. Each Set belongs to a single
// request; there is no process-wide timer state.
package timing

import (
	"strings"
	"time"
)

// Entry is one named timer. Internal entries measure the worker's own
// overhead (pull wait, loop processing) rather than the message's
// journey; they are marked so the producer can skip them when reporting
// slow calls.
type Entry struct {
	Name     string
	Internal bool
	Elapsed  time.Duration

	start   time.Time
	running bool
}

// Set is an ordered collection of timers for one request. Insertion
// order is preserved, so logging a Set replays the stages in the order
// they happened. Sets are not safe for concurrent use; each request's
// processing is single-threaded.
type Set struct {
	clock   func() time.Time
	entries []*Entry
}

// NewSet creates an empty timer set on the wall clock.
func NewSet() *Set {
	return NewSetAt(time.Now)
}

// NewSetAt creates a timer set on an explicit clock. Used by tests.
func NewSetAt(clock func() time.Time) *Set {
	return &Set{clock: clock}
}

// Start begins a timer. Starting an existing name restarts it.
func (s *Set) Start(name string) {
	s.startEntry(name, false)
}

// StartInternal begins a worker-internal timer.
func (s *Set) StartInternal(name string) {
	s.startEntry(name, true)
}

// lookup finds the entry for name. Sets are small (a dozen timers per
// request), so a linear scan beats carrying an index map.
func (s *Set) lookup(name string) *Entry {
	for _, e := range s.entries {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (s *Set) startEntry(name string, internal bool) {
	e := s.lookup(name)
	if e == nil {
		e = &Entry{Name: name, Internal: internal}
		s.entries = append(s.entries, e)
	}
	e.start = s.clock()
	e.running = true
}

// Stop ends a timer, recording its elapsed duration. Stopping a name
// that was never started is a no-op.
func (s *Set) Stop(name string) {
	e := s.lookup(name)
	if e == nil || !e.running {
		return
	}
	e.Elapsed = s.clock().Sub(e.start)
	e.running = false
}

// Observe records an already-measured duration under name.
func (s *Set) Observe(name string, d time.Duration) {
	e := s.lookup(name)
	if e == nil {
		e = &Entry{Name: name}
		s.entries = append(s.entries, e)
	}
	e.Elapsed = d
	e.running = false
}

// Entries returns the timers in insertion order. Running timers report
// the elapsed time so far.
func (s *Set) Entries() []Entry {
	now := s.clock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
		if e.running {
			out[i].Elapsed = now.Sub(e.start)
		}
	}
	return out
}

// Wire renders the set in its stored form: name to elapsed seconds,
// with internal names wrapped in parentheses. The flat map loses
// ordering; that only matters for local logging, which uses Entries.
func (s *Set) Wire() map[string]float64 {
	out := make(map[string]float64, len(s.entries))
	for _, e := range s.Entries() {
		out[WireName(e.Name, e.Internal)] = e.Elapsed.Seconds()
	}
	return out
}

// WireName renders a timer name for the wire, marking internal timers.
func WireName(name string, internal bool) string {
	if internal {
		return "(" + name + ")"
	}
	return name
}

// IsInternalName reports whether a wire timer name is worker-internal.
func IsInternalName(name string) bool {
	return strings.Contains(name, "(")
}
