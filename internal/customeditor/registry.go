// Package customeditor resolves which editor can render a resource.
//
// Providers are matched by a capability predicate (CanEdit) rather than a
// static extension table. Lookups walk providers in registration order, so
// the first registered provider that accepts a URI wins; AvailableEditors
// returns every provider that accepts it for hosts that let the user choose.
package customeditor

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/dispose"
)

// Provider renders resources it declares it can edit.
type Provider interface {
	CanEdit(uri string) bool
	// Render produces the host-defined view for content at uri.
	Render(uri string, content []byte) (any, error)
}

// Entry pairs a provider with the view type it was registered under.
type Entry struct {
	ViewType string
	Provider Provider
}

type registration struct {
	provider Provider
	seq      uint64
}

// Registry stores custom editor providers keyed by view type.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]registration
	seq       uint64
	logger    *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.With(zap.String("component", "customeditors"))
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		providers: make(map[string]registration),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterCustomEditor stores provider under viewType. Re-registering a view
// type replaces the provider in place (keeping its lookup position) and logs
// a warning. Disposing the handle removes the registration unless it has been
// replaced since.
func (r *Registry) RegisterCustomEditor(viewType string, provider Provider) dispose.Disposable {
	r.mu.Lock()
	_, replaced := r.providers[viewType]
	r.seq++
	seq := r.seq
	r.providers[viewType] = registration{provider: provider, seq: seq}
	if !replaced {
		r.order = append(r.order, viewType)
	}
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("custom editor already registered, replacing", zap.String("viewType", viewType))
	} else {
		r.logger.Debug("custom editor registered", zap.String("viewType", viewType))
	}

	return dispose.Func(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if reg, ok := r.providers[viewType]; ok && reg.seq == seq {
			r.removeLocked(viewType)
		}
		return nil
	})
}

// CustomEditor returns the first provider, in registration order, whose
// CanEdit accepts uri.
func (r *Registry) CustomEditor(uri string) (Provider, bool) {
	for _, e := range r.All() {
		if r.canEdit(e, uri) {
			return e.Provider, true
		}
	}
	return nil, false
}

// AvailableEditors returns every provider that accepts uri, in registration
// order.
func (r *Registry) AvailableEditors(uri string) []Provider {
	var out []Provider
	for _, e := range r.All() {
		if r.canEdit(e, uri) {
			out = append(out, e.Provider)
		}
	}
	return out
}

// HasCustomEditor reports whether any provider accepts uri.
func (r *Registry) HasCustomEditor(uri string) bool {
	_, ok := r.CustomEditor(uri)
	return ok
}

// canEdit runs the provider predicate outside the registry lock. A panicking
// predicate counts as a refusal.
func (r *Registry) canEdit(e Entry, uri string) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("custom editor predicate failed",
				zap.String("viewType", e.ViewType),
				zap.String("uri", uri),
				zap.Error(fmt.Errorf("panic: %v", rec)),
			)
			ok = false
		}
	}()
	return e.Provider.CanEdit(uri)
}

// CustomEditorByViewType returns the provider registered under viewType.
func (r *Registry) CustomEditorByViewType(viewType string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.providers[viewType]
	return reg.provider, ok
}

// All returns every registration in lookup order.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, vt := range r.order {
		out = append(out, Entry{ViewType: vt, Provider: r.providers[vt].provider})
	}
	return out
}

// UnregisterCustomEditor removes viewType and reports whether it existed.
func (r *Registry) UnregisterCustomEditor(viewType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[viewType]; !ok {
		return false
	}
	r.removeLocked(viewType)
	return true
}

func (r *Registry) removeLocked(viewType string) {
	delete(r.providers, viewType)
	if i := slices.Index(r.order, viewType); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.logger.Debug("custom editor unregistered", zap.String("viewType", viewType))
}

// Clear removes every provider.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.providers = make(map[string]registration)
}

// Size returns the number of registered providers.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
