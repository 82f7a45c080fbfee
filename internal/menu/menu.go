// Package menu provides the menu service handed to plugins.
package menu

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/dispose"
)

// Item is a single menu entry bound to a command.
type Item struct {
	Command string `json:"command" yaml:"command" toml:"command"`
	Title   string `json:"title" yaml:"title" toml:"title"`
	When    string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`
	Group   string `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	Order   int    `json:"order,omitempty" yaml:"order,omitempty" toml:"order,omitempty"`
}

// Service registers and looks up menus.
type Service interface {
	RegisterMenu(id string, items []Item) dispose.Disposable
	Menu(id string) []Item
}

type entry struct {
	items []Item
	seq   uint64
}

// Registry is the in-memory Service implementation.
type Registry struct {
	mu     sync.RWMutex
	menus  map[string]entry
	seq    uint64
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger.With(zap.String("component", "menus"))
		}
	}
}

// NewRegistry creates an empty menu registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		menus:  make(map[string]entry),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterMenu binds items to id, replacing an existing menu with a warning.
// Items are kept sorted by group, then order.
func (r *Registry) RegisterMenu(id string, items []Item) dispose.Disposable {
	sorted := slices.Clone(items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Group != sorted[j].Group {
			return sorted[i].Group < sorted[j].Group
		}
		return sorted[i].Order < sorted[j].Order
	})

	r.mu.Lock()
	_, replaced := r.menus[id]
	r.seq++
	seq := r.seq
	r.menus[id] = entry{items: sorted, seq: seq}
	r.mu.Unlock()

	if replaced {
		r.logger.Warn("menu already registered, replacing", zap.String("menu", id))
	}

	return dispose.Func(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e, ok := r.menus[id]; ok && e.seq == seq {
			delete(r.menus, id)
		}
		return nil
	})
}

// Menu returns a copy of the items registered under id.
func (r *Registry) Menu(id string) []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.menus[id].items)
}

// IDs returns the registered menu ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.menus))
	for id := range r.menus {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
