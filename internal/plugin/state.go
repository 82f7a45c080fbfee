package plugin

// State represents the lifecycle state of a plugin.
type State int

// Plugin states.
const (
	// StateUnloaded - Plugin is not known to the manager.
	StateUnloaded State = iota

	// StateLoading - Plugin implementation is being resolved.
	StateLoading

	// StateLoaded - Plugin is loaded but not activated.
	StateLoaded

	// StateActivating - Plugin is being activated.
	StateActivating

	// StateActive - Plugin is active and running.
	StateActive

	// StateDeactivating - Plugin is being deactivated.
	StateDeactivating
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateActivating:
		return "activating"
	case StateActive:
		return "active"
	case StateDeactivating:
		return "deactivating"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsTransitional returns true while a lifecycle call is running.
func (s State) IsTransitional() bool {
	return s == StateLoading || s == StateActivating || s == StateDeactivating
}

// IsLoaded returns true if the plugin instance exists (loaded or active).
func (s State) IsLoaded() bool {
	return s >= StateLoaded
}
