package lua

import "errors"

var (
	// ErrStateClosed is returned when calling into a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past the execution
	// timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrQueueFull is returned when an asynchronous call cannot be queued.
	ErrQueueFull = errors.New("lua executor queue full")
)
