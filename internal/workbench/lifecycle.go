package workbench

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/fs"
	"github.com/dshills/texforge/internal/plugin"
)

// Report summarises a Start.
type Report struct {
	// Activated lists active plugins in activation order.
	Activated []string `json:"activated"`
	// Disabled lists plugins skipped by configuration.
	Disabled []string `json:"disabled,omitempty"`
	// Failed lists plugins that could not be loaded or activated.
	Failed []*PluginError `json:"-"`
}

// Err joins the plugin failures, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Start loads and activates every enabled plugin in dependency order. A
// plugin that fails, including one caught in a dependency cycle, is
// recorded in the report and startup continues. Only problems that prevent
// ordering at all are returned as errors, and Start may then be retried.
func (w *Workbench) Start(ctx context.Context) (*Report, error) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	w.started = true
	w.mu.Unlock()

	manifests, report := w.collect()
	sorted, err := plugin.SortManifests(manifests)
	var cycle *plugin.CycleError
	switch {
	case errors.As(err, &cycle):
		for _, id := range cycle.IDs {
			w.logger.Error("plugin is part of a dependency cycle", zap.String("plugin", id), zap.Error(err))
			report.Failed = append(report.Failed, &PluginError{ID: id, Op: plugin.OpLoad, Err: cycle})
		}
	case err != nil:
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return nil, fmt.Errorf("ordering plugins: %w", err)
	}

	for _, m := range sorted {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if _, err := w.manager.LoadPlugin(ctx, m); err != nil {
			w.logger.Error("failed to load plugin", zap.String("plugin", m.ID), zap.Error(err))
			report.Failed = append(report.Failed, &PluginError{ID: m.ID, Op: plugin.OpLoad, Err: err})
			continue
		}
		if err := w.manager.ActivatePlugin(ctx, m.ID); err != nil {
			w.logger.Error("failed to activate plugin", zap.String("plugin", m.ID), zap.Error(err))
			report.Failed = append(report.Failed, &PluginError{ID: m.ID, Op: plugin.OpActivate, Err: err})
			continue
		}
		report.Activated = append(report.Activated, m.ID)
	}

	w.watchWorkspace()

	w.logger.Info("workbench started",
		zap.Int("activated", len(report.Activated)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("disabled", len(report.Disabled)),
	)
	w.events.Emit(EventStarted, report)
	return report, nil
}

// collect gathers builtin, configured and discovered manifests in that
// order of precedence and drops disabled ones.
func (w *Workbench) collect() ([]*plugin.Manifest, *Report) {
	report := &Report{}
	disabled := w.cfg.Disabled()
	seen := make(map[string]bool)
	var out []*plugin.Manifest

	add := func(m *plugin.Manifest, source string) {
		switch {
		case seen[m.ID]:
			w.logger.Warn("duplicate plugin ignored", zap.String("plugin", m.ID), zap.String("source", source))
			return
		case disabled[m.ID]:
			report.Disabled = append(report.Disabled, m.ID)
		default:
			out = append(out, m)
		}
		seen[m.ID] = true
	}

	for _, b := range w.builtins {
		add(b.Manifest, "builtin")
	}
	for _, p := range w.cfg.Manifests() {
		m, err := plugin.LoadManifest(w.fsys, p)
		if err != nil {
			w.logger.Warn("failed to load configured manifest", zap.String("path", p), zap.Error(err))
			continue
		}
		add(m, p)
	}

	discovered, err := plugin.Discover(w.fsys, w.cfg.ExtensionDirs...)
	if err != nil {
		w.logger.Warn("plugin discovery reported errors", zap.Error(err))
	}
	for _, m := range discovered {
		add(m, m.Dir())
	}
	return out, report
}

// watchWorkspace forwards workspace changes to EventFileChanged. A
// workspace that cannot be watched is logged and ignored.
func (w *Workbench) watchWorkspace() {
	root := w.cfg.Workspace
	if osfs, ok := w.fsys.(*fs.OSFS); ok {
		root = osfs.Root()
	}
	d, err := w.fsys.Watch(root, func(ev fs.Event) {
		w.events.Emit(EventFileChanged, fileChanged(ev))
	})
	if err != nil {
		w.logger.Warn("workspace is not watched", zap.String("path", root), zap.Error(err))
		return
	}
	w.mu.Lock()
	w.watch = d
	w.mu.Unlock()
}

// View is the result of OpenFile.
type View struct {
	URI string `json:"uri"`
	// Custom reports whether a custom editor rendered the resource.
	Custom bool `json:"custom"`
	// Content is the rendered view, or the raw bytes without a custom
	// editor.
	Content any `json:"content"`
}

// OpenFile reads uri, announces it on EventFileOpened and renders it with
// the first custom editor that accepts it.
func (w *Workbench) OpenFile(uri string) (*View, error) {
	data, err := w.fsys.ReadFile(uri)
	if err != nil {
		return nil, err
	}
	w.events.Emit(EventFileOpened, fileOpened(uri))

	provider, ok := w.editors.CustomEditor(uri)
	if !ok {
		return &View{URI: uri, Content: data}, nil
	}
	content, err := provider.Render(uri, data)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", uri, err)
	}
	return &View{URI: uri, Custom: true, Content: content}, nil
}

// SaveFile writes data to uri and emits EventFileSaved.
func (w *Workbench) SaveFile(uri string, data []byte) error {
	if err := w.fsys.WriteFile(uri, data); err != nil {
		return err
	}
	w.events.Emit(EventFileSaved, uri)
	return nil
}

// Shutdown deactivates every plugin in reverse load order and releases the
// services. It is safe to call more than once.
func (w *Workbench) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	watch := w.watch
	w.watch = nil
	w.mu.Unlock()

	var errs []error
	if watch != nil {
		errs = append(errs, watch.Dispose())
	}
	if err := w.manager.Dispose(ctx); err != nil {
		errs = append(errs, err)
	}
	w.events.Emit(EventStopped, nil)

	if c, ok := w.fsys.(io.Closer); ok && w.ownsFS {
		errs = append(errs, c.Close())
	}
	errs = append(errs, w.events.Dispose())

	w.logger.Info("workbench stopped")
	return errors.Join(errs...)
}
