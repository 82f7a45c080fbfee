// Package service provides the workbench service registry: a process-wide
// lookup table from string id to a shared collaborator such as the file
// system or the UI provider.
package service

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Well-known service ids registered by the workbench host.
const (
	FileSystem    = "fileSystem"
	UI            = "ui"
	Menus         = "menus"
	EventBus      = "eventBus"
	Commands      = "commands"
	CustomEditors = "customEditors"
	PluginManager = "pluginManager"
)

// Registry maps ids to shared services. Registering an existing id replaces
// the previous service. The registry never disposes the services it holds.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
	logger   *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.With(zap.String("component", "services"))
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]any),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds svc to id, replacing (with a warning) any existing binding.
func (r *Registry) Register(id string, svc any) {
	r.mu.Lock()
	_, exists := r.services[id]
	r.services[id] = svc
	r.mu.Unlock()

	if exists {
		r.logger.Warn("service already registered, replacing", zap.String("service", id))
		return
	}
	r.logger.Debug("service registered", zap.String("service", id))
}

// Get returns the service bound to id. A missing id is logged as a warning
// and reported through the boolean; it is not an error.
func (r *Registry) Get(id string) (any, bool) {
	r.mu.RLock()
	svc, ok := r.services[id]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("service not found", zap.String("service", id))
	}
	return svc, ok
}

// Has reports whether id is bound.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.services[id]
	return ok
}

// Unregister removes id and reports whether it was bound.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.services[id]
	delete(r.services, id)
	return ok
}

// IDs returns every bound id, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear removes every binding.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services = make(map[string]any)
}

// Size returns the number of bound services.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Lookup returns the service bound to id as a T. It returns false when the id
// is missing or bound to a value of another type.
func Lookup[T any](r *Registry, id string) (T, bool) {
	var zero T
	svc, ok := r.Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := svc.(T)
	if !ok {
		r.logger.Warn("service has unexpected type", zap.String("service", id))
		return zero, false
	}
	return typed, true
}
