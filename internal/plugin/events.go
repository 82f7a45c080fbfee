package plugin

// Lifecycle event names published on the event bus.
const (
	EventLoaded      = "plugin.loaded"
	EventActivated   = "plugin.activated"
	EventDeactivated = "plugin.deactivated"
	EventUnloaded    = "plugin.unloaded"
	EventReloaded    = "plugin.reloaded"
	EventError       = "plugin.error"
)

// Lifecycle operations reported in ErrorEvent and to the metrics observer.
const (
	OpLoad       = "load"
	OpActivate   = "activate"
	OpDeactivate = "deactivate"
	OpUnload     = "unload"
	OpReload     = "reload"
)

// LifecycleEvent is the payload of every lifecycle event except EventError.
type LifecycleEvent struct {
	PluginID string
	Name     string
	Version  string
	State    State
}

// ErrorEvent is the payload of EventError.
type ErrorEvent struct {
	PluginID string
	Op       string
	Err      error
}

// Error implements error.
func (e ErrorEvent) Error() string {
	return e.Op + " " + e.PluginID + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e ErrorEvent) Unwrap() error {
	return e.Err
}
