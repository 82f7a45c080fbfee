// Package ui defines the presentation capability handed to plugins and a
// console implementation for headless hosts.
package ui

import (
	"context"

	"github.com/dshills/texforge/internal/dispose"
)

// Severity classifies a user-facing message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseSeverity maps a name to a Severity. Unknown names map to SeverityInfo.
func ParseSeverity(name string) Severity {
	switch name {
	case "success":
		return SeveritySuccess
	case "warning", "warn":
		return SeverityWarning
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

// InputOptions configures ShowInputBox.
type InputOptions struct {
	Prompt      string
	Placeholder string
	Value       string
}

// QuickPickOptions configures ShowQuickPick.
type QuickPickOptions struct {
	Placeholder string
}

// ViewContainer groups views in the workbench side bar or panel.
type ViewContainer struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Title    string `json:"title" yaml:"title" toml:"title"`
	Icon     string `json:"icon,omitempty" yaml:"icon,omitempty" toml:"icon,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty" toml:"location,omitempty"`
}

// View is a panel hosted by a view container.
type View struct {
	ID        string `json:"id" yaml:"id" toml:"id"`
	Name      string `json:"name" yaml:"name" toml:"name"`
	When      string `json:"when,omitempty" yaml:"when,omitempty" toml:"when,omitempty"`
	Container string `json:"viewContainer,omitempty" yaml:"viewContainer,omitempty" toml:"viewContainer,omitempty"`
}

// Provider is the presentation glue supplied by the host.
//
// ShowInputBox and ShowQuickPick report ok=false when the user dismissed the
// prompt.
type Provider interface {
	ShowMessage(msg string, severity Severity)
	ShowInputBox(ctx context.Context, opts InputOptions) (value string, ok bool, err error)
	ShowQuickPick(ctx context.Context, items []string, opts QuickPickOptions) (picked string, ok bool, err error)
	RegisterViewContainer(container ViewContainer) dispose.Disposable
	RegisterView(id string, view View) dispose.Disposable
}
