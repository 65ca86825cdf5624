package bus

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Bus used in tests and local wiring. It models
// the provider's bounded wait window on Pull so a worker's no-message
// iteration is exercised the same way as against the real provider.
// Redelivery on ack timeout is not modeled.
type Memory struct {
	wait time.Duration

	mu      sync.Mutex
	queue   []Message
	pending map[string]Message
	seq     int
	signal  chan struct{} // buffered size 1, coalesces publish signals
}

// NewMemory creates an in-memory bus whose Pull blocks for at most wait
// when the queue is empty.
func NewMemory(wait time.Duration) *Memory {
	return &Memory{
		wait:    wait,
		pending: make(map[string]Message),
		signal:  make(chan struct{}, 1),
	}
}

// Publish implements Bus.
func (m *Memory) Publish(_ context.Context, msg Message) error {
	m.mu.Lock()
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pull implements Bus.
func (m *Memory) Pull(ctx context.Context, max int) ([]Delivery, error) {
	deadline := time.NewTimer(m.wait)
	defer deadline.Stop()

	for {
		if ds := m.take(max); len(ds) > 0 {
			return ds, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-m.signal:
			// Retry the take; another puller may have raced us.
		}
	}
}

func (m *Memory) take(max int) []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.queue) == 0 {
		return nil
	}
	if max > len(m.queue) {
		max = len(m.queue)
	}
	out := make([]Delivery, 0, max)
	for _, msg := range m.queue[:max] {
		m.seq++
		ackID := "ack-" + strconv.Itoa(m.seq)
		m.pending[ackID] = msg
		out = append(out, Delivery{AckID: ackID, Msg: msg})
	}
	m.queue = m.queue[max:]
	return out
}

// Acknowledge implements Bus.
func (m *Memory) Acknowledge(_ context.Context, ackIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ackIDs {
		delete(m.pending, id)
	}
	return nil
}

// Outstanding returns the number of pulled-but-unacked messages.
func (m *Memory) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Queued returns the number of messages waiting to be pulled.
func (m *Memory) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
