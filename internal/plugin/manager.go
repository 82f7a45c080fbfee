package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/customeditor"
	"github.com/dshills/texforge/internal/dispose"
	"github.com/dshills/texforge/internal/event"
	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/menu"
	"github.com/dshills/texforge/internal/service"
	"github.com/dshills/texforge/internal/state"
	"github.com/dshills/texforge/internal/ui"
)

// Dependencies are the shared services and host collaborators a Manager
// hands to plugins. Nil fields are replaced with fresh in-process
// implementations.
type Dependencies struct {
	Events        *event.Bus
	Services      *service.Registry
	Commands      *command.Service
	CustomEditors *customeditor.Registry
	UI            ui.Provider
	Menus         menu.Service
	FileSystem    fs.FileSystem
}

// Observer receives lifecycle measurements.
type Observer interface {
	ObserveLifecycle(op, pluginID string, d time.Duration, err error)
	SetPluginStats(stats Stats)
}

// Stats counts plugins by lifecycle state.
type Stats struct {
	// Total is the number of loaded plugins, active or not.
	Total int `json:"total"`
	// Active is the number of active plugins.
	Active int `json:"active"`
	// Loaded is the number of loaded plugins that are not active.
	Loaded int `json:"loaded"`
}

// Info summarises a loaded plugin.
type Info struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description,omitempty"`
	State        State    `json:"state"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithResolver sets the resolver used by LoadPlugin.
func WithResolver(r Resolver) Option {
	return func(m *Manager) {
		m.resolver = r
	}
}

// WithWorkspaceURI sets the workspace URI handed to plugins.
func WithWorkspaceURI(uri string) Option {
	return func(m *Manager) {
		m.workspaceURI = uri
	}
}

// WithExtensionRoot sets the directory under which each plugin's
// ExtensionURI is derived.
func WithExtensionRoot(root string) Option {
	return func(m *Manager) {
		m.extensionRoot = root
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger.With(zap.String("component", "plugins"))
		}
	}
}

// WithMetrics reports lifecycle operations to o.
func WithMetrics(o Observer) Option {
	return func(m *Manager) {
		m.metrics = o
	}
}

// Manager owns the lifecycle of every plugin.
//
// Lifecycle calls for one id must not overlap; an overlapping call fails
// with ErrTransitionInProgress. Calls for different ids may run
// concurrently. No lock is held while plugin code or event listeners run.
type Manager struct {
	mu sync.RWMutex

	// Loaded plugins by id
	entries map[string]*entry

	// Ids currently being resolved
	loading map[string]struct{}

	// Plugin load order (for deterministic iteration)
	order []string

	// Per-plugin scratch state, kept across activations
	globalState    map[string]*state.Memento
	workspaceState map[string]*state.Memento

	deps          Dependencies
	resolver      Resolver
	workspaceURI  string
	extensionRoot string
	metrics       Observer
	logger        *zap.Logger
}

type entry struct {
	manifest *Manifest
	plugin   Plugin
	state    State
	ctx      *Context
}

// NewManager creates a manager over deps.
func NewManager(deps Dependencies, opts ...Option) *Manager {
	m := &Manager{
		entries:        make(map[string]*entry),
		loading:        make(map[string]struct{}),
		globalState:    make(map[string]*state.Memento),
		workspaceState: make(map[string]*state.Memento),
		resolver:       NewRegistry(),
		extensionRoot:  "/extensions",
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if deps.Events == nil {
		deps.Events = event.NewBus(event.WithLogger(m.logger))
	}
	if deps.Services == nil {
		deps.Services = service.NewRegistry(service.WithLogger(m.logger))
	}
	if deps.Commands == nil {
		deps.Commands = command.NewService(command.WithLogger(m.logger), command.WithEmitter(deps.Events))
	}
	if deps.CustomEditors == nil {
		deps.CustomEditors = customeditor.NewRegistry(customeditor.WithLogger(m.logger))
	}
	if deps.UI == nil {
		deps.UI = ui.NewConsole(ui.WithLogger(m.logger))
	}
	if deps.Menus == nil {
		deps.Menus = menu.NewRegistry(menu.WithLogger(m.logger))
	}
	if deps.FileSystem == nil {
		deps.FileSystem = fs.NewMemFS()
	}
	m.deps = deps
	return m
}

// Dependencies returns the services handed to plugins.
func (m *Manager) Dependencies() Dependencies {
	return m.deps
}

// LoadPlugin resolves and stores the plugin described by manifest.
//
// Loading an id that is already loaded returns the existing instance.
// Every dependency must already be loaded. On failure nothing is retained
// and EventError is emitted.
func (m *Manager) LoadPlugin(ctx context.Context, manifest *Manifest) (p Plugin, err error) {
	start := time.Now()
	if manifest == nil {
		return nil, ErrNilManifest
	}
	id := manifest.ID

	m.mu.RLock()
	e, loaded := m.entries[id]
	m.mu.RUnlock()
	if loaded {
		m.logger.Warn("plugin already loaded", zap.String("plugin", id))
		return e.plugin, nil
	}

	if err := manifest.Validate(); err != nil {
		err = fmt.Errorf("plugin %q: %w", id, err)
		m.fail(OpLoad, id, start, err)
		return nil, err
	}

	m.mu.Lock()
	if e, ok := m.entries[id]; ok {
		m.mu.Unlock()
		m.logger.Warn("plugin already loaded", zap.String("plugin", id))
		return e.plugin, nil
	}
	if _, busy := m.loading[id]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("plugin %q: %w", id, ErrTransitionInProgress)
	}
	for _, dep := range manifest.Dependencies {
		if _, ok := m.entries[dep]; !ok {
			m.mu.Unlock()
			err = fmt.Errorf("plugin %q: %w: %s", id, ErrMissingDependency, dep)
			m.fail(OpLoad, id, start, err)
			return nil, err
		}
	}
	m.loading[id] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.loading, id)
		if err == nil {
			m.entries[id] = &entry{manifest: manifest.Clone(), plugin: p, state: StateLoaded}
			m.order = append(m.order, id)
		}
		m.mu.Unlock()

		if err != nil {
			m.fail(OpLoad, id, start, err)
			return
		}
		m.logger.Info("plugin loaded", zap.String("plugin", id), zap.String("version", p.Version()))
		m.emit(EventLoaded, m.lifecycleEvent(p, StateLoaded))
		m.observe(OpLoad, id, start, nil)
	}()

	p, err = m.resolve(ctx, manifest)
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w: %w", id, ErrResolution, err)
	}
	if p == nil {
		return nil, fmt.Errorf("plugin %q: %w: resolver returned nil", id, ErrResolution)
	}
	if p.ID() != id {
		return nil, fmt.Errorf("plugin %q: %w: implementation reports id %q", id, ErrResolution, p.ID())
	}
	if p.Name() != manifest.Name || p.Version() != manifest.Version {
		m.logger.Warn("plugin identity differs from manifest",
			zap.String("plugin", id),
			zap.String("manifestName", manifest.Name),
			zap.String("name", p.Name()),
			zap.String("manifestVersion", manifest.Version),
			zap.String("version", p.Version()),
		)
	}
	return p, nil
}

func (m *Manager) resolve(ctx context.Context, manifest *Manifest) (p Plugin, err error) {
	defer recoverPanic(&err)
	return m.resolver.Resolve(ctx, manifest.Clone())
}

// ActivatePlugin activates a loaded plugin with a fresh Context.
//
// Activating an active plugin is a logged no-op. The manifest's command,
// menu, view container and view contributions are registered into the
// context before Activate runs. If Activate fails the context is disposed,
// the plugin stays loaded, EventError is emitted and an error wrapping
// ErrActivation is returned.
func (m *Manager) ActivatePlugin(ctx context.Context, id string) error {
	start := time.Now()

	m.mu.Lock()
	e, err := m.entryLocked(id)
	if err != nil {
		m.mu.Unlock()
		m.fail(OpActivate, id, start, err)
		return err
	}
	switch {
	case e.state == StateActive:
		m.mu.Unlock()
		m.logger.Warn("plugin already active", zap.String("plugin", id), zap.NamedError("reason", ErrAlreadyActive))
		return nil
	case e.state.IsTransitional():
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s: %w", id, e.state, ErrTransitionInProgress)
	}
	e.state = StateActivating
	pc := m.newContextLocked(e.manifest)
	e.ctx = pc
	p := e.plugin
	m.mu.Unlock()

	err = m.contribute(pc)
	if err == nil {
		err = callPlugin(func() error { return p.Activate(ctx, pc) })
	}

	if err != nil {
		m.disposeContext(pc)
		m.mu.Lock()
		e.state = StateLoaded
		e.ctx = nil
		m.mu.Unlock()

		err = fmt.Errorf("plugin %q: %w: %w", id, ErrActivation, err)
		m.fail(OpActivate, id, start, err)
		return err
	}

	m.mu.Lock()
	if m.entries[id] != e {
		// Dispose dropped the entry while Activate ran.
		m.mu.Unlock()
		if derr := callPlugin(func() error { return p.Deactivate(ctx) }); derr != nil {
			m.logger.Error("failed to deactivate orphaned plugin", zap.String("plugin", id), zap.Error(derr))
		}
		m.disposeContext(pc)

		err = fmt.Errorf("plugin %q: %w: %w", id, ErrActivation, ErrPluginNotFound)
		m.fail(OpActivate, id, start, err)
		return err
	}
	e.state = StateActive
	m.mu.Unlock()

	m.logger.Info("plugin activated", zap.String("plugin", id), zap.String("activation", pc.ActivationID))
	m.emit(EventActivated, m.lifecycleEvent(p, StateActive))
	m.observe(OpActivate, id, start, nil)
	return nil
}

// DeactivatePlugin deactivates an active plugin and disposes its context.
//
// Deactivating an inactive plugin is a logged no-op. If Deactivate fails the
// plugin stays active, EventError is emitted and an error wrapping
// ErrDeactivation is returned.
func (m *Manager) DeactivatePlugin(ctx context.Context, id string) error {
	start := time.Now()

	m.mu.Lock()
	e, err := m.entryLocked(id)
	if err != nil {
		m.mu.Unlock()
		m.fail(OpDeactivate, id, start, err)
		return err
	}
	switch {
	case e.state == StateLoaded:
		m.mu.Unlock()
		m.logger.Warn("plugin not active", zap.String("plugin", id), zap.NamedError("reason", ErrNotActive))
		return nil
	case e.state.IsTransitional():
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s: %w", id, e.state, ErrTransitionInProgress)
	}
	e.state = StateDeactivating
	pc := e.ctx
	p := e.plugin
	m.mu.Unlock()

	if err := callPlugin(func() error { return p.Deactivate(ctx) }); err != nil {
		m.mu.Lock()
		e.state = StateActive
		m.mu.Unlock()

		err = fmt.Errorf("plugin %q: %w: %w", id, ErrDeactivation, err)
		m.fail(OpDeactivate, id, start, err)
		return err
	}

	m.disposeContext(pc)

	m.mu.Lock()
	e.state = StateLoaded
	e.ctx = nil
	m.mu.Unlock()

	m.logger.Info("plugin deactivated", zap.String("plugin", id))
	m.emit(EventDeactivated, m.lifecycleEvent(p, StateLoaded))
	m.observe(OpDeactivate, id, start, nil)
	return nil
}

// UnloadPlugin deactivates the plugin if needed and removes it.
func (m *Manager) UnloadPlugin(ctx context.Context, id string) error {
	start := time.Now()

	m.mu.RLock()
	e, err := m.entryLocked(id)
	if err != nil {
		m.mu.RUnlock()
		m.fail(OpUnload, id, start, err)
		return err
	}
	st := e.state
	dependents := m.dependentsLocked(id)
	m.mu.RUnlock()

	if st.IsTransitional() {
		return fmt.Errorf("plugin %q is %s: %w", id, st, ErrTransitionInProgress)
	}
	if len(dependents) > 0 {
		m.logger.Warn("unloading plugin with loaded dependents",
			zap.String("plugin", id),
			zap.Strings("dependents", dependents),
		)
	}
	if st == StateActive {
		if err := m.DeactivatePlugin(ctx, id); err != nil {
			return err
		}
	}

	m.mu.Lock()
	e, ok := m.entries[id]
	switch {
	case !ok:
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
	case e.state != StateLoaded:
		m.mu.Unlock()
		return fmt.Errorf("plugin %q is %s: %w", id, e.state, ErrTransitionInProgress)
	}
	delete(m.entries, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	m.mu.Unlock()

	m.logger.Info("plugin unloaded", zap.String("plugin", id))
	m.emit(EventUnloaded, m.lifecycleEvent(e.plugin, StateUnloaded))
	m.observe(OpUnload, id, start, nil)
	return nil
}

// ReloadPlugin replaces the plugin with a fresh instance resolved from
// manifest, re-activating it if it was active. A nil manifest reuses the
// current one. Reloading an id that is not loaded simply loads it.
func (m *Manager) ReloadPlugin(ctx context.Context, id string, manifest *Manifest) error {
	start := time.Now()

	m.mu.RLock()
	e, loaded := m.entries[id]
	var wasActive bool
	if loaded {
		wasActive = e.state == StateActive
		if manifest == nil {
			manifest = e.manifest
		}
	}
	m.mu.RUnlock()

	if manifest == nil {
		err := fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
		m.fail(OpReload, id, start, err)
		return err
	}
	if manifest.ID != id {
		err := fmt.Errorf("plugin %q: %w: manifest id %q", id, ErrResolution, manifest.ID)
		m.fail(OpReload, id, start, err)
		return err
	}

	if loaded {
		if err := m.UnloadPlugin(ctx, id); err != nil {
			return err
		}
	}
	p, err := m.LoadPlugin(ctx, manifest)
	if err != nil {
		return err
	}
	if wasActive {
		if err := m.ActivatePlugin(ctx, id); err != nil {
			return err
		}
	}

	st := StateLoaded
	if wasActive {
		st = StateActive
	}
	m.logger.Info("plugin reloaded", zap.String("plugin", id), zap.Bool("active", wasActive))
	m.emit(EventReloaded, m.lifecycleEvent(p, st))
	m.observe(OpReload, id, start, nil)
	return nil
}

// Plugin returns the loaded plugin with id.
func (m *Manager) Plugin(id string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// Plugins returns every loaded plugin in load order.
func (m *Manager) Plugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Plugin, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.entries[id].plugin)
	}
	return out
}

// Manifest returns a copy of the manifest the plugin was loaded with.
func (m *Manager) Manifest(id string) (*Manifest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	return e.manifest.Clone(), true
}

// State returns the lifecycle state of id.
func (m *Manager) State(id string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return e.state
	}
	if _, ok := m.loading[id]; ok {
		return StateLoading
	}
	return StateUnloaded
}

// IsActive reports whether id is active.
func (m *Manager) IsActive(id string) bool {
	return m.State(id) == StateActive
}

// ActivePlugins returns the active plugins in load order.
func (m *Manager) ActivePlugins() []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Plugin
	for _, id := range m.order {
		if e := m.entries[id]; e.state == StateActive {
			out = append(out, e.plugin)
		}
	}
	return out
}

// Context returns the context of an active or activating plugin.
func (m *Manager) Context(id string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok || e.ctx == nil {
		return nil, false
	}
	return e.ctx, true
}

// Infos describes every loaded plugin in load order.
func (m *Manager) Infos() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.order))
	for _, id := range m.order {
		e := m.entries[id]
		out = append(out, Info{
			ID:           id,
			Name:         e.plugin.Name(),
			Version:      e.plugin.Version(),
			Description:  e.plugin.Description(),
			State:        e.state,
			Dependencies: slices.Clone(e.manifest.Dependencies),
		})
	}
	return out
}

// Stats counts loaded and active plugins.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsLocked()
}

func (m *Manager) statsLocked() Stats {
	s := Stats{Total: len(m.entries)}
	for _, e := range m.entries {
		if e.state == StateActive {
			s.Active++
		}
	}
	s.Loaded = s.Total - s.Active
	return s
}

// Dispose deactivates every active plugin in reverse load order and clears
// the manager. Deactivation failures are logged and joined into the
// returned error; they do not stop the sweep. An activation still running
// when the manager is cleared deactivates its plugin and disposes its own
// context when it finishes.
func (m *Manager) Dispose(ctx context.Context) error {
	m.mu.RLock()
	var active []string
	for _, id := range slices.Backward(m.order) {
		if m.entries[id].state == StateActive {
			active = append(active, id)
		}
	}
	m.mu.RUnlock()

	var errs []error
	for _, id := range active {
		if err := m.DeactivatePlugin(ctx, id); err != nil {
			m.logger.Error("failed to deactivate plugin during shutdown", zap.String("plugin", id), zap.Error(err))
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	clear(m.entries)
	clear(m.loading)
	clear(m.globalState)
	clear(m.workspaceState)
	m.order = nil
	stats := m.statsLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetPluginStats(stats)
	}
	return errors.Join(errs...)
}

func (m *Manager) entryLocked(id string) (*entry, error) {
	if e, ok := m.entries[id]; ok {
		return e, nil
	}
	if _, ok := m.loading[id]; ok {
		return nil, fmt.Errorf("plugin %q is %s: %w", id, StateLoading, ErrTransitionInProgress)
	}
	return nil, fmt.Errorf("plugin %q: %w", id, ErrPluginNotFound)
}

func (m *Manager) dependentsLocked(id string) []string {
	var out []string
	for _, other := range m.order {
		if slices.Contains(m.entries[other].manifest.Dependencies, id) {
			out = append(out, other)
		}
	}
	return out
}

func (m *Manager) newContextLocked(manifest *Manifest) *Context {
	id := manifest.ID
	global, ok := m.globalState[id]
	if !ok {
		global = state.NewMemento()
		m.globalState[id] = global
	}
	workspace, ok := m.workspaceState[id]
	if !ok {
		workspace = state.NewMemento()
		m.workspaceState[id] = workspace
	}

	activationID := uuid.NewString()
	return &Context{
		ActivationID:   activationID,
		PluginID:       id,
		Manifest:       manifest.Clone(),
		Subscriptions:  dispose.NewStore(),
		Events:         m.deps.Events,
		Services:       m.deps.Services,
		Commands:       m.deps.Commands,
		CustomEditors:  m.deps.CustomEditors,
		UI:             m.deps.UI,
		Menus:          m.deps.Menus,
		FileSystem:     m.deps.FileSystem,
		WorkspaceURI:   m.workspaceURI,
		ExtensionURI:   m.deps.FileSystem.Join(m.extensionRoot, id),
		GlobalState:    global,
		WorkspaceState: workspace,
		Logger:         m.logger.With(zap.String("plugin", id), zap.String("activation", activationID)),
	}
}

// contribute registers the manifest's declarative contributions into pc.
func (m *Manager) contribute(pc *Context) error {
	c := pc.Manifest.Contributes
	var ds []dispose.Disposable

	for _, cmd := range c.Commands {
		ds = append(ds, pc.Commands.DeclareCommand(command.Command{
			ID:       cmd.Command,
			Title:    cmd.Title,
			Category: cmd.Category,
			When:     cmd.When,
		}))
	}
	for _, id := range sortedKeys(c.Menus) {
		ds = append(ds, pc.Menus.RegisterMenu(id, c.Menus[id]))
	}
	for _, location := range sortedKeys(c.ViewContainers) {
		for _, vc := range c.ViewContainers[location] {
			if vc.Location == "" {
				vc.Location = location
			}
			ds = append(ds, pc.UI.RegisterViewContainer(vc))
		}
	}
	for _, container := range sortedKeys(c.Views) {
		for _, v := range c.Views[container] {
			if v.Container == "" {
				v.Container = container
			}
			ds = append(ds, pc.UI.RegisterView(v.ID, v))
		}
	}
	return pc.Track(ds...)
}

// disposeContext releases every subscription of pc, logging each failure.
func (m *Manager) disposeContext(pc *Context) {
	if pc == nil {
		return
	}
	for _, err := range dispose.Errors(pc.Subscriptions.Dispose()) {
		m.logger.Warn("failed to dispose plugin subscription",
			zap.String("plugin", pc.PluginID),
			zap.Error(err),
		)
	}
}

func (m *Manager) lifecycleEvent(p Plugin, st State) LifecycleEvent {
	return LifecycleEvent{PluginID: p.ID(), Name: p.Name(), Version: p.Version(), State: st}
}

func (m *Manager) emit(name string, data any) {
	m.deps.Events.Emit(name, data)
}

// fail logs, emits and observes a failed lifecycle operation.
func (m *Manager) fail(op, id string, start time.Time, err error) {
	m.logger.Error("plugin "+op+" failed", zap.String("plugin", id), zap.Error(err))
	m.emit(EventError, ErrorEvent{PluginID: id, Op: op, Err: err})
	m.observe(op, id, start, err)
}

func (m *Manager) observe(op, id string, start time.Time, err error) {
	if m.metrics == nil {
		return
	}
	m.metrics.ObserveLifecycle(op, id, time.Since(start), err)
	m.metrics.SetPluginStats(m.Stats())
}

// callPlugin runs fn, converting a panic into an error.
func callPlugin(fn func() error) (err error) {
	defer recoverPanic(&err)
	return fn()
}

func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v\n%s", ErrPluginPanic, r, debug.Stack())
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
