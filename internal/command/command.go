// Package command provides the workbench command service: a catalogue of
// named actions with decoupled registration and invocation.
//
// Plugins register handlers under unique ids; the host, other plugins or the
// user invoke them by id through ExecuteCommand. Unlike event delivery, a
// command has exactly one logical caller, so handler failures propagate to
// that caller.
package command

import (
	"context"
	"errors"
	"time"
)

// DefaultCategory is assigned to commands registered without metadata.
const DefaultCategory = "General"

// EventExecuted is emitted after every command execution.
const EventExecuted = "command.executed"

// Errors returned by the command service.
var (
	// ErrCommandNotFound is returned when executing an unregistered id.
	ErrCommandNotFound = errors.New("command not found")

	// ErrCommandPanic wraps a value recovered from a panicking handler.
	ErrCommandPanic = errors.New("command handler panicked")
)

// Handler implements a command. The returned value is handed back to the
// caller of ExecuteCommand.
type Handler func(ctx context.Context, args ...any) (any, error)

// Command is the descriptive metadata of a command.
type Command struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Title    string `json:"title" yaml:"title" toml:"title"`
	Category string `json:"category,omitempty" yaml:"category,omitempty" toml:"category,omitempty"`
	// When is a conditional-display expression evaluated by the host UI.
	When string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`
}

// ExecutedEvent is the payload of EventExecuted.
type ExecutedEvent struct {
	ID       string
	Duration time.Duration
	Err      error
}

// Emitter publishes events. *event.Bus satisfies it.
type Emitter interface {
	Emit(event string, data any)
}

// Observer records command executions. *metrics.Collector satisfies it.
type Observer interface {
	ObserveCommand(id string, d time.Duration, err error)
}

// Fn adapts a handler that takes no context or arguments.
func Fn(fn func() (any, error)) Handler {
	return func(context.Context, ...any) (any, error) {
		return fn()
	}
}
