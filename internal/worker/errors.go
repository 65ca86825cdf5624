package worker

import (
	"fmt"
	"time"
)

// StaleMessageError marks a pulled message whose age exceeds the
// processing timeout. Its producer has already given up waiting, so the
// worker acknowledges it without executing anything.
type StaleMessageError struct {
	Key string
	Age time.Duration
}

func (e *StaleMessageError) Error() string {
	return fmt.Sprintf("stale message %s: %.03f secs old", e.Key, e.Age.Seconds())
}

// MalformedBatchError marks a message whose attributes or body could
// not be decoded. The message is dropped: redelivering it would fail
// the same way.
type MalformedBatchError struct {
	Key string
	Err error
}

func (e *MalformedBatchError) Error() string {
	return fmt.Sprintf("malformed batch %s: %v", e.Key, e.Err)
}

func (e *MalformedBatchError) Unwrap() error {
	return e.Err
}
