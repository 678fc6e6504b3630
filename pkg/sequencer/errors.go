package sequencer

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for submissions to a closed sequencer and delivered to callers
	// whose entries were still queued when the sequencer was closed.
	ErrClosed = errors.New("sequencer closed")
	// ErrQueueFull is returned when a bounded sequencer already holds its capacity of queued entries.
	ErrQueueFull = errors.New("sequencer queue full")
	// ErrNilOperation is returned when Submit is called without an operation.
	ErrNilOperation = errors.New("nil operation")
)

// OperationError reports that a submitted operation failed. It is delivered only to the
// caller that submitted the operation.
type OperationError struct {
	Sequencer string
	EntryID   string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("sequencer %s: entry %s failed: %v", e.Sequencer, e.EntryID, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// PanicError carries a panic recovered from an operation.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v", e.Value)
}
