// Package workbench is the extension host: it constructs the shared
// services, registers them in the service registry, and drives the plugin
// lifecycle for every enabled plugin.
package workbench

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/config"
	"github.com/dshills/texforge/internal/customeditor"
	"github.com/dshills/texforge/internal/dispose"
	"github.com/dshills/texforge/internal/event"
	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/menu"
	"github.com/dshills/texforge/internal/metrics"
	"github.com/dshills/texforge/internal/plugin"
	"github.com/dshills/texforge/internal/plugins/pdfviewer"
	"github.com/dshills/texforge/internal/plugins/pluginmanager"
	"github.com/dshills/texforge/internal/service"
	"github.com/dshills/texforge/internal/ui"
)

// Builtin is a plugin compiled into the host.
type Builtin struct {
	Manifest *plugin.Manifest
	Factory  plugin.Factory
}

// Builtins returns the plugins shipped with the workbench.
func Builtins() []Builtin {
	return []Builtin{
		{Manifest: pdfviewer.Manifest(), Factory: pdfviewer.New},
		{Manifest: pluginmanager.Manifest(), Factory: pluginmanager.New},
	}
}

// Workbench owns the services shared by every plugin.
type Workbench struct {
	mu sync.Mutex

	cfg    *config.Config
	logger *zap.Logger

	// Shared services
	fsys     fs.FileSystem
	events   *event.Bus
	services *service.Registry
	commands *command.Service
	editors  *customeditor.Registry
	ui       ui.Provider
	menus    *menu.Registry
	metrics  *metrics.Collector
	manager  *plugin.Manager

	builtins []Builtin
	ownsFS   bool
	watch    dispose.Disposable

	started bool
	stopped bool
}

// Option configures a Workbench.
type Option func(*Workbench)

// WithLogger sets the root logger handed to every service.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workbench) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFileSystem replaces the disk file system rooted at the workspace.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(w *Workbench) {
		w.fsys = fsys
	}
}

// WithUI replaces the console UI provider.
func WithUI(p ui.Provider) Option {
	return func(w *Workbench) {
		w.ui = p
	}
}

// WithMetrics reports command and lifecycle measurements to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(w *Workbench) {
		w.metrics = c
	}
}

// WithBuiltins replaces the compiled-in plugins.
func WithBuiltins(b ...Builtin) Option {
	return func(w *Workbench) {
		w.builtins = b
	}
}

// New constructs every service and the plugin manager. No plugin is
// loaded until Start. A nil cfg uses config.Default.
func New(cfg *config.Config, opts ...Option) (*Workbench, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, &InitError{Component: "config", Err: err}
	}

	w := &Workbench{
		cfg:      cfg,
		logger:   zap.NewNop(),
		builtins: Builtins(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := newBootstrapper(w).bootstrap(); err != nil {
		return nil, err
	}
	return w, nil
}

// Config returns the configuration the workbench was built with.
func (w *Workbench) Config() *config.Config { return w.cfg }

// Logger returns the root logger.
func (w *Workbench) Logger() *zap.Logger { return w.logger }

// FileSystem returns the shared file system.
func (w *Workbench) FileSystem() fs.FileSystem { return w.fsys }

// Events returns the shared event bus.
func (w *Workbench) Events() *event.Bus { return w.events }

// Services returns the service registry.
func (w *Workbench) Services() *service.Registry { return w.services }

// Commands returns the command service.
func (w *Workbench) Commands() *command.Service { return w.commands }

// CustomEditors returns the custom editor registry.
func (w *Workbench) CustomEditors() *customeditor.Registry { return w.editors }

// UI returns the UI provider.
func (w *Workbench) UI() ui.Provider { return w.ui }

// Menus returns the menu registry.
func (w *Workbench) Menus() *menu.Registry { return w.menus }

// Metrics returns the metrics collector, or nil.
func (w *Workbench) Metrics() *metrics.Collector { return w.metrics }

// Plugins returns the plugin manager.
func (w *Workbench) Plugins() *plugin.Manager { return w.manager }
