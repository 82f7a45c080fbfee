package plugin

import "context"

// Plugin is an independently activatable unit of behavior.
//
// Activate receives a Context that lives until the matching Deactivate
// returns. Anything pushed into its Subscriptions is disposed by the
// manager after Deactivate, so plugins rarely need to clean up by hand.
type Plugin interface {
	ID() string
	Name() string
	Version() string
	Description() string
	Activate(ctx context.Context, pc *Context) error
	Deactivate(ctx context.Context) error
}

// Base carries plugin identity. Embed it to satisfy the identity half of
// Plugin.
type Base struct {
	id          string
	name        string
	version     string
	description string
}

// NewBase copies identity from m.
func NewBase(m *Manifest) Base {
	return Base{id: m.ID, name: m.Name, version: m.Version, description: m.Description}
}

// ID returns the plugin id.
func (b Base) ID() string { return b.id }

// Name returns the display name.
func (b Base) Name() string { return b.name }

// Version returns the plugin version.
func (b Base) Version() string { return b.version }

// Description returns the plugin description.
func (b Base) Description() string { return b.description }

// Funcs adapts plain functions to Plugin. Nil functions succeed.
type Funcs struct {
	Base
	OnActivate   func(ctx context.Context, pc *Context) error
	OnDeactivate func(ctx context.Context) error
}

// Activate calls OnActivate.
func (f *Funcs) Activate(ctx context.Context, pc *Context) error {
	if f.OnActivate == nil {
		return nil
	}
	return f.OnActivate(ctx, pc)
}

// Deactivate calls OnDeactivate.
func (f *Funcs) Deactivate(ctx context.Context) error {
	if f.OnDeactivate == nil {
		return nil
	}
	return f.OnDeactivate(ctx)
}
