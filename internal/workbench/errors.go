package workbench

import (
	"errors"
	"fmt"
)

// Workbench errors.
var (
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("workbench already started")

	// ErrNotStarted is returned when an operation needs a started workbench.
	ErrNotStarted = errors.New("workbench not started")

	// ErrInitialization indicates a component could not be constructed.
	ErrInitialization = errors.New("initialization failed")
)

// InitError reports the component whose construction failed.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is reports ErrInitialization as a match.
func (e *InitError) Is(target error) bool {
	return target == ErrInitialization
}

// PluginError records a plugin that failed to start. Startup continues
// past it.
type PluginError struct {
	ID  string
	Op  string
	Err error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PluginError) Unwrap() error {
	return e.Err
}
