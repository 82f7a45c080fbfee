package plugin

import (
	"fmt"

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

// Context is the capability bundle handed to a plugin for one activation.
//
// Shared services are referenced, not owned. Subscriptions is owned by the
// context and disposed exactly once, when the plugin deactivates or its
// activation fails.
type Context struct {
	// ActivationID is unique per activation.
	ActivationID string
	PluginID     string
	Manifest     *Manifest

	Subscriptions *dispose.Store

	Events        *event.Bus
	Services      *service.Registry
	Commands      *command.Service
	CustomEditors *customeditor.Registry
	UI            ui.Provider
	Menus         menu.Service
	FileSystem    fs.FileSystem

	WorkspaceURI string
	ExtensionURI string

	// GlobalState and WorkspaceState outlive the activation; they are kept
	// per plugin id for the life of the process.
	GlobalState    *state.Memento
	WorkspaceState *state.Memento

	Logger *zap.Logger
}

// Track adds ds to the context subscriptions.
func (c *Context) Track(ds ...dispose.Disposable) error {
	return c.Subscriptions.Add(ds...)
}

// RegisterCommand registers handler and tracks the registration.
func (c *Context) RegisterCommand(id string, handler command.Handler) error {
	return c.Track(c.Commands.RegisterCommand(id, handler))
}

// On subscribes listener to event and tracks the subscription.
func (c *Context) On(name string, listener event.Listener) error {
	return c.Track(c.Events.On(name, listener))
}

// RegisterCustomEditor registers provider and tracks the registration.
func (c *Context) RegisterCustomEditor(viewType string, provider customeditor.Provider) error {
	return c.Track(c.CustomEditors.RegisterCustomEditor(viewType, provider))
}

// RegisterContributedEditor registers the custom editor the manifest
// declares for viewType, matching resources by its selectors and rendering
// them with render.
func (c *Context) RegisterContributedEditor(viewType string, render customeditor.RenderFunc) error {
	contrib, ok := c.Manifest.CustomEditor(viewType)
	if !ok {
		return fmt.Errorf("plugin %q: no custom editor contribution %q", c.PluginID, viewType)
	}
	provider, err := customeditor.NewGlobProvider(contrib.Selector, render)
	if err != nil {
		return fmt.Errorf("plugin %q: custom editor %q: %w", c.PluginID, viewType, err)
	}
	return c.RegisterCustomEditor(viewType, provider)
}
