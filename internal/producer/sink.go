package producer

import (
	"fmt"
	"os"
	"sync"
)

// SlowCallSink receives one line per timer entry for calls that exceed
// the slow threshold.
type SlowCallSink interface {
	Record(line string)
}

// FileSink appends slow-call lines to a file.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// NewFileSink opens (or creates) the slow-call log for appending.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open slow-call log %s: %w", path, err)
	}
	return &FileSink{f: f}, nil
}

// Record implements SlowCallSink.
func (s *FileSink) Record(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.f, line)
}

// Close flushes and closes the log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
