package plugin

import "errors"

// Plugin system errors.
var (
	// ErrPluginNotFound is returned when an operation names an id that is
	// not loaded.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrAlreadyActive marks an activation request for an active plugin.
	// The manager logs it and treats the call as a no-op.
	ErrAlreadyActive = errors.New("plugin is already active")

	// ErrNotActive marks a deactivation request for an inactive plugin.
	// The manager logs it and treats the call as a no-op.
	ErrNotActive = errors.New("plugin is not active")

	// ErrMissingDependency is returned when a dependency is not loaded.
	ErrMissingDependency = errors.New("plugin dependency not loaded")

	// ErrActivation wraps failures raised by a plugin's Activate.
	ErrActivation = errors.New("plugin activation failed")

	// ErrDeactivation wraps failures raised by a plugin's Deactivate.
	ErrDeactivation = errors.New("plugin deactivation failed")

	// ErrResolution is returned when no implementation can be produced
	// for a manifest.
	ErrResolution = errors.New("plugin resolution failed")

	// ErrUnknownPlugin is reported by resolvers that have no
	// implementation for a manifest.
	ErrUnknownPlugin = errors.New("unknown plugin")

	// ErrTransitionInProgress is returned when a lifecycle call overlaps
	// another call on the same id.
	ErrTransitionInProgress = errors.New("plugin lifecycle transition in progress")

	// ErrCyclicDependency is returned when plugins depend on each other.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrNilManifest is returned when a nil manifest is provided.
	ErrNilManifest = errors.New("manifest is nil")

	// ErrPluginPanic wraps a panic recovered from plugin code.
	ErrPluginPanic = errors.New("plugin panicked")
)
