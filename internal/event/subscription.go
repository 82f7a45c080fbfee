package event

import "sync/atomic"

// Listener receives the payload of an emitted event.
type Listener func(data any)

// Subscription is the handle returned by On and Once. It identifies exactly
// one registered listener and implements dispose.Disposable.
type Subscription struct {
	id       uint64
	event    string
	listener Listener
	once     bool
	bus      *Bus

	// active is cleared when the subscription is removed, and by the
	// dispatcher just before a once listener fires.
	active atomic.Bool
}

// ID returns the bus-unique subscription identifier.
func (s *Subscription) ID() uint64 {
	return s.id
}

// Event returns the subscribed event name.
func (s *Subscription) Event() string {
	return s.event
}

// IsOnce reports whether the listener is removed after its first invocation.
func (s *Subscription) IsOnce() bool {
	return s.once
}

// IsActive reports whether the listener can still be invoked.
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// Dispose removes the listener from the bus. It is safe to call repeatedly.
func (s *Subscription) Dispose() error {
	s.bus.remove(s)
	return nil
}
