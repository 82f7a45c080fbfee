package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Resolver produces the implementation for a manifest. Resolvers that do
// not recognise a manifest return an error wrapping ErrUnknownPlugin.
type Resolver interface {
	Resolve(ctx context.Context, m *Manifest) (Plugin, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, m *Manifest) (Plugin, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, m *Manifest) (Plugin, error) {
	return f(ctx, m)
}

// Factory builds a plugin instance from its manifest.
type Factory func(m *Manifest) (Plugin, error)

// Registry resolves plugins by id from registered factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty factory registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds id to factory, replacing any previous factory.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = factory
}

// Has reports whether a factory is registered for id.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[id]
	return ok
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve builds the plugin registered for m.ID.
func (r *Registry) Resolve(_ context.Context, m *Manifest) (Plugin, error) {
	r.mu.RLock()
	factory, ok := r.factories[m.ID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, m.ID)
	}
	return factory(m)
}

// Chain tries each resolver in order and returns the first result that is
// not ErrUnknownPlugin.
type Chain []Resolver

// Resolve implements Resolver.
func (c Chain) Resolve(ctx context.Context, m *Manifest) (Plugin, error) {
	for _, r := range c {
		p, err := r.Resolve(ctx, m)
		if errors.Is(err, ErrUnknownPlugin) {
			continue
		}
		return p, err
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, m.ID)
}
