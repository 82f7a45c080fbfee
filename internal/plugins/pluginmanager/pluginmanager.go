// Package pluginmanager is the builtin plugin that lists, enables and
// disables the other plugins through commands.
package pluginmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/plugin"
	"github.com/dshills/texforge/internal/service"
	"github.com/dshills/texforge/internal/ui"
)

// Plugin and command ids.
const (
	ID = "plugin-manager"

	CommandList     = "pluginManager.list"
	CommandEnable   = "pluginManager.enable"
	CommandDisable  = "pluginManager.disable"
	CommandRefresh  = "pluginManager.refresh"
	CommandOpenView = "pluginManager.openView"

	// EventRefreshed is emitted with the current plugin.Stats after a refresh.
	EventRefreshed = "pluginManager.refreshed"
)

var (
	// ErrUnavailable is returned when no lifecycle manager is registered
	// under service.PluginManager.
	ErrUnavailable = errors.New("plugin manager service unavailable")

	// ErrSelfDisable is returned when asked to disable this plugin.
	ErrSelfDisable = errors.New("plugin manager cannot disable itself")

	// ErrMissingPluginID is returned when a command needs a plugin id and
	// none was given or picked.
	ErrMissingPluginID = errors.New("plugin id required")
)

// Lifecycle is the part of plugin.Manager the commands drive.
type Lifecycle interface {
	Infos() []plugin.Info
	Stats() plugin.Stats
	ActivatePlugin(ctx context.Context, id string) error
	DeactivatePlugin(ctx context.Context, id string) error
	ReloadPlugin(ctx context.Context, id string, manifest *plugin.Manifest) error
}

var _ Lifecycle = (*plugin.Manager)(nil)

// Manifest returns the plugin manager's manifest.
func Manifest() *plugin.Manifest {
	return &plugin.Manifest{
		ID:          ID,
		Name:        "Plugin Manager",
		Version:     "1.0.0",
		Description: "Manage workbench plugins: list, enable, disable and reload them",
		Publisher:   "texforge",
		Contributes: plugin.Contributions{
			Commands: []plugin.CommandContribution{
				{Command: CommandList, Title: "List Plugins", Category: "Plugins"},
				{Command: CommandEnable, Title: "Enable Plugin", Category: "Plugins"},
				{Command: CommandDisable, Title: "Disable Plugin", Category: "Plugins"},
				{Command: CommandRefresh, Title: "Refresh Plugins", Category: "Plugins"},
				{Command: CommandOpenView, Title: "Open Plugin Manager", Category: "Plugins"},
			},
			ViewContainers: map[string][]ui.ViewContainer{
				"activitybar": {{ID: "pluginManager", Title: "Plugins", Icon: "extensions"}},
			},
			Views: map[string][]ui.View{
				"pluginManager": {{ID: "pluginManager.installed", Name: "Installed"}},
			},
		},
	}
}

// Manager is the plugin manager plugin.
type Manager struct {
	plugin.Base

	mu        sync.Mutex
	pc        *plugin.Context
	lifecycle Lifecycle
}

// New is the plugin.Factory for the plugin manager.
func New(m *plugin.Manifest) (plugin.Plugin, error) {
	return &Manager{Base: plugin.NewBase(m)}, nil
}

// Activate looks up the lifecycle manager and registers the commands.
func (p *Manager) Activate(_ context.Context, pc *plugin.Context) error {
	lifecycle, ok := service.Lookup[Lifecycle](pc.Services, service.PluginManager)
	if !ok {
		return ErrUnavailable
	}

	p.mu.Lock()
	p.pc, p.lifecycle = pc, lifecycle
	p.mu.Unlock()

	for id, handler := range map[string]func(context.Context, ...any) (any, error){
		CommandList:     p.list,
		CommandEnable:   p.enable,
		CommandDisable:  p.disable,
		CommandRefresh:  p.refresh,
		CommandOpenView: p.openView,
	} {
		if err := pc.RegisterCommand(id, handler); err != nil {
			return err
		}
	}
	return nil
}

// Deactivate drops the lifecycle reference.
func (p *Manager) Deactivate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pc, p.lifecycle = nil, nil
	return nil
}

func (p *Manager) active() (*plugin.Context, Lifecycle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lifecycle == nil {
		return nil, nil, fmt.Errorf("%s: %w", ID, plugin.ErrNotActive)
	}
	return p.pc, p.lifecycle, nil
}

// list returns the plugin infos, filtered by an optional query matched
// against id, name and description.
func (p *Manager) list(_ context.Context, args ...any) (any, error) {
	_, lifecycle, err := p.active()
	if err != nil {
		return nil, err
	}
	query, _ := stringArg(args, 0)
	return Filter(lifecycle.Infos(), query), nil
}

func (p *Manager) enable(ctx context.Context, args ...any) (any, error) {
	pc, lifecycle, err := p.active()
	if err != nil {
		return nil, err
	}
	id, err := p.pluginID(ctx, pc, lifecycle, args, func(info plugin.Info) bool {
		return info.State != plugin.StateActive
	})
	if err != nil {
		return nil, err
	}

	if err := lifecycle.ActivatePlugin(ctx, id); err != nil {
		pc.UI.ShowMessage(fmt.Sprintf("Failed to enable %s: %v", id, err), ui.SeverityError)
		return nil, err
	}
	pc.UI.ShowMessage(fmt.Sprintf("Enabled %s", id), ui.SeveritySuccess)
	return p.info(lifecycle, id), nil
}

func (p *Manager) disable(ctx context.Context, args ...any) (any, error) {
	pc, lifecycle, err := p.active()
	if err != nil {
		return nil, err
	}
	id, err := p.pluginID(ctx, pc, lifecycle, args, func(info plugin.Info) bool {
		return info.State == plugin.StateActive && info.ID != ID
	})
	if err != nil {
		return nil, err
	}
	if id == ID {
		return nil, ErrSelfDisable
	}

	if err := lifecycle.DeactivatePlugin(ctx, id); err != nil {
		pc.UI.ShowMessage(fmt.Sprintf("Failed to disable %s: %v", id, err), ui.SeverityError)
		return nil, err
	}
	pc.UI.ShowMessage(fmt.Sprintf("Disabled %s", id), ui.SeverityInfo)
	return p.info(lifecycle, id), nil
}

// refresh reloads the plugin named by args[0], if any, and reports the
// current stats.
func (p *Manager) refresh(ctx context.Context, args ...any) (any, error) {
	pc, lifecycle, err := p.active()
	if err != nil {
		return nil, err
	}
	if id, ok := stringArg(args, 0); ok && id != "" {
		if err := lifecycle.ReloadPlugin(ctx, id, nil); err != nil {
			return nil, err
		}
		pc.Logger.Info("plugin reloaded", zap.String("target", id))
	}

	stats := lifecycle.Stats()
	pc.Events.Emit(EventRefreshed, stats)
	return stats, nil
}

// openView lets the user pick a plugin and toggles it.
func (p *Manager) openView(ctx context.Context, _ ...any) (any, error) {
	pc, lifecycle, err := p.active()
	if err != nil {
		return nil, err
	}

	infos := lifecycle.Infos()
	items := make([]string, 0, len(infos))
	byLabel := make(map[string]plugin.Info, len(infos))
	for _, info := range infos {
		label := fmt.Sprintf("%s (%s)", info.ID, info.State)
		items = append(items, label)
		byLabel[label] = info
	}

	picked, ok, err := pc.UI.ShowQuickPick(ctx, items, ui.QuickPickOptions{Placeholder: "Select a plugin to enable or disable"})
	if err != nil || !ok {
		return nil, err
	}
	info := byLabel[picked]
	if info.State == plugin.StateActive {
		return p.disable(ctx, info.ID)
	}
	return p.enable(ctx, info.ID)
}

// pluginID returns args[0], or asks the user to pick among the plugins
// accepted by eligible.
func (p *Manager) pluginID(ctx context.Context, pc *plugin.Context, lifecycle Lifecycle, args []any, eligible func(plugin.Info) bool) (string, error) {
	if id, ok := stringArg(args, 0); ok && id != "" {
		return id, nil
	}

	var ids []string
	for _, info := range lifecycle.Infos() {
		if eligible(info) {
			ids = append(ids, info.ID)
		}
	}
	id, ok, err := pc.UI.ShowQuickPick(ctx, ids, ui.QuickPickOptions{Placeholder: "Select a plugin"})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrMissingPluginID
	}
	return id, nil
}

func (p *Manager) info(lifecycle Lifecycle, id string) plugin.Info {
	for _, info := range lifecycle.Infos() {
		if info.ID == id {
			return info
		}
	}
	return plugin.Info{ID: id}
}

// Filter returns the infos whose id, name or description contains query,
// ignoring case. An empty query matches everything.
func Filter(infos []plugin.Info, query string) []plugin.Info {
	if query == "" {
		return infos
	}
	q := strings.ToLower(query)
	out := make([]plugin.Info, 0, len(infos))
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.ID), q) ||
			strings.Contains(strings.ToLower(info.Name), q) ||
			strings.Contains(strings.ToLower(info.Description), q) {
			out = append(out, info)
		}
	}
	return out
}

func stringArg(args []any, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}
