package event

import "errors"

// ErrListenerPanic wraps a value recovered from a panicking listener.
var ErrListenerPanic = errors.New("event listener panicked")
