package workbench

import (
	"io"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/command"
	"github.com/dshills/texforge/internal/customeditor"
	"github.com/dshills/texforge/internal/event"
	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/menu"
	"github.com/dshills/texforge/internal/plugin"
	"github.com/dshills/texforge/internal/plugin/lua"
	"github.com/dshills/texforge/internal/service"
	"github.com/dshills/texforge/internal/ui"
)

// bootstrapper constructs the services in dependency order and releases
// what it built when a later step fails.
type bootstrapper struct {
	w         *Workbench
	initOrder []string
}

func newBootstrapper(w *Workbench) *bootstrapper {
	return &bootstrapper{w: w, initOrder: make([]string, 0, 4)}
}

func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"fileSystem", b.initFileSystem},
		{"services", b.initServices},
		{"plugins", b.initPlugins},
		{"registry", b.registerServices},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			b.cleanup()
			return &InitError{Component: step.name, Err: err}
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	b.w.logger.Debug("workbench initialized", zap.Strings("components", b.initOrder))
	return nil
}

// initFileSystem opens the workspace on disk unless a file system was
// supplied.
func (b *bootstrapper) initFileSystem() error {
	w := b.w
	if w.fsys != nil {
		return nil
	}
	osfs, err := fs.NewOSFS(w.cfg.Workspace, fs.WithLogger(w.logger))
	if err != nil {
		return err
	}
	w.fsys = osfs
	w.ownsFS = true
	return nil
}

// initServices constructs the leaf services.
func (b *bootstrapper) initServices() error {
	w := b.w
	w.events = event.NewBus(event.WithLogger(w.logger))
	w.services = service.NewRegistry(service.WithLogger(w.logger))

	cmdOpts := []command.Option{command.WithLogger(w.logger), command.WithEmitter(w.events)}
	if w.metrics != nil {
		cmdOpts = append(cmdOpts, command.WithObserver(w.metrics))
	}
	w.commands = command.NewService(cmdOpts...)

	w.editors = customeditor.NewRegistry(customeditor.WithLogger(w.logger))
	w.menus = menu.NewRegistry(menu.WithLogger(w.logger))
	if w.ui == nil {
		w.ui = ui.NewConsole(ui.WithLogger(w.logger))
	}
	return nil
}

// initPlugins constructs the manager with builtin factories consulted
// before Lua scripts.
func (b *bootstrapper) initPlugins() error {
	w := b.w

	builtins := plugin.NewRegistry()
	for _, bi := range w.builtins {
		builtins.Register(bi.Manifest.ID, bi.Factory)
	}
	scripts := lua.NewResolver(w.fsys,
		lua.WithLogger(w.logger),
		lua.WithExtensionRoot(w.cfg.ExtensionRoot),
	)

	opts := []plugin.Option{
		plugin.WithResolver(plugin.Chain{builtins, scripts}),
		plugin.WithWorkspaceURI(w.cfg.Workspace),
		plugin.WithExtensionRoot(w.cfg.ExtensionRoot),
		plugin.WithLogger(w.logger),
	}
	if w.metrics != nil {
		opts = append(opts, plugin.WithMetrics(w.metrics))
	}

	w.manager = plugin.NewManager(plugin.Dependencies{
		Events:        w.events,
		Services:      w.services,
		Commands:      w.commands,
		CustomEditors: w.editors,
		UI:            w.ui,
		Menus:         w.menus,
		FileSystem:    w.fsys,
	}, opts...)
	return nil
}

// registerServices publishes the collaborators plugins look up by id.
func (b *bootstrapper) registerServices() error {
	w := b.w
	w.services.Register(service.FileSystem, w.fsys)
	w.services.Register(service.UI, w.ui)
	w.services.Register(service.Menus, w.menus)
	w.services.Register(service.EventBus, w.events)
	w.services.Register(service.Commands, w.commands)
	w.services.Register(service.CustomEditors, w.editors)
	w.services.Register(service.PluginManager, w.manager)
	return nil
}

// cleanup releases components in reverse initialization order.
func (b *bootstrapper) cleanup() {
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(component string) {
	w := b.w
	switch component {
	case "fileSystem":
		if c, ok := w.fsys.(io.Closer); ok && w.ownsFS {
			_ = c.Close()
		}
	case "services":
		_ = w.events.Dispose()
		w.commands.Clear()
		w.editors.Clear()
	case "plugins":
		w.manager = nil
	}
}
