package event

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Bus is a synchronous publish/subscribe channel keyed by event name.
// It is safe for concurrent use.
type Bus struct {
	mu            sync.RWMutex
	listeners     map[string][]*Subscription
	onceListeners map[string][]*Subscription

	nextID atomic.Uint64
	logger *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		listeners:     make(map[string][]*Subscription),
		onceListeners: make(map[string][]*Subscription),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers a persistent listener for event.
func (b *Bus) On(event string, listener Listener) *Subscription {
	return b.add(event, listener, false)
}

// Once registers a listener that is removed after its first invocation.
func (b *Bus) Once(event string, listener Listener) *Subscription {
	return b.add(event, listener, true)
}

func (b *Bus) add(event string, listener Listener, once bool) *Subscription {
	sub := &Subscription{
		id:       b.nextID.Add(1),
		event:    event,
		listener: listener,
		once:     once,
		bus:      b,
	}
	sub.active.Store(listener != nil)
	if listener == nil {
		b.logger.Warn("ignoring nil listener", zap.String("event", event))
		return sub
	}

	b.mu.Lock()
	if once {
		b.onceListeners[event] = append(b.onceListeners[event], sub)
	} else {
		b.listeners[event] = append(b.listeners[event], sub)
	}
	b.mu.Unlock()

	b.logger.Debug("listener registered",
		zap.String("event", event),
		zap.Uint64("subscription", sub.id),
		zap.Bool("once", once),
	)
	return sub
}

// Emit synchronously invokes every listener registered for event at the time
// of the call: normal listeners in registration order, then once listeners in
// registration order. Listener panics are recovered and logged.
func (b *Bus) Emit(event string, data any) {
	b.mu.Lock()
	normal := slices.Clone(b.listeners[event])
	once := b.onceListeners[event]
	delete(b.onceListeners, event)
	b.mu.Unlock()

	b.logger.Debug("emitting event",
		zap.String("event", event),
		zap.Int("listeners", len(normal)+len(once)),
	)

	for _, sub := range normal {
		if !sub.active.Load() {
			continue
		}
		b.invoke(sub, data)
	}
	for _, sub := range once {
		// Claim the listener; a concurrent Emit or Dispose may have won.
		if !sub.active.CompareAndSwap(true, false) {
			continue
		}
		b.invoke(sub, data)
	}
}

func (b *Bus) invoke(sub *Subscription, data any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener failed",
				zap.String("event", sub.event),
				zap.Uint64("subscription", sub.id),
				zap.Error(fmt.Errorf("%w: %v", ErrListenerPanic, r)),
			)
		}
	}()
	sub.listener(data)
}

// Off removes the listener identified by sub from event. It returns false if
// the subscription does not belong to event or was already removed.
func (b *Bus) Off(event string, sub *Subscription) bool {
	if sub == nil || sub.bus != b || sub.event != event {
		return false
	}
	return b.remove(sub)
}

func (b *Bus) remove(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub.active.Store(false)

	buckets := b.listeners
	if sub.once {
		buckets = b.onceListeners
	}
	subs := buckets[sub.event]
	idx := slices.Index(subs, sub)
	if idx < 0 {
		return false
	}
	subs = slices.Delete(subs, idx, idx+1)
	if len(subs) == 0 {
		delete(buckets, sub.event)
	} else {
		buckets[sub.event] = subs
	}
	return true
}

// RemoveAllListeners removes every listener of the given events, or of all
// events when called without arguments.
func (b *Bus) RemoveAllListeners(events ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(events) == 0 {
		for _, subs := range b.listeners {
			deactivate(subs)
		}
		for _, subs := range b.onceListeners {
			deactivate(subs)
		}
		b.listeners = make(map[string][]*Subscription)
		b.onceListeners = make(map[string][]*Subscription)
		return
	}

	for _, event := range events {
		deactivate(b.listeners[event])
		deactivate(b.onceListeners[event])
		delete(b.listeners, event)
		delete(b.onceListeners, event)
	}
}

func deactivate(subs []*Subscription) {
	for _, sub := range subs {
		sub.active.Store(false)
	}
}

// ListenerCount returns the number of normal and once listeners for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[event]) + len(b.onceListeners[event])
}

// EventNames returns the sorted names of events with at least one listener.
func (b *Bus) EventNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{}, len(b.listeners)+len(b.onceListeners))
	for name := range b.listeners {
		seen[name] = struct{}{}
	}
	for name := range b.onceListeners {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispose removes every listener from the bus.
func (b *Bus) Dispose() error {
	b.RemoveAllListeners()
	return nil
}
