// Package state provides in-memory key-value scratch space for plugins.
//
// Mementos live for the lifetime of the process. They are not persisted.
package state

import (
	"maps"
	"sort"
	"sync"
)

// Memento is a goroutine-safe key-value map.
type Memento struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemento creates an empty memento.
func NewMemento() *Memento {
	return &Memento{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (m *Memento) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. A nil value deletes the key.
func (m *Memento) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		delete(m.values, key)
		return
	}
	m.values[key] = value
}

// Delete removes key.
func (m *Memento) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
}

// Keys returns the stored keys, sorted.
func (m *Memento) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (m *Memento) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Snapshot returns a shallow copy of the stored values.
func (m *Memento) Snapshot() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// Value returns the value under key as a T, or def when the key is missing
// or holds another type.
func Value[T any](m *Memento, key string, def T) T {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	typed, ok := v.(T)
	if !ok {
		return def
	}
	return typed
}
