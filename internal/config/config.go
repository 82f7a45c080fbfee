// Package config holds the workbench configuration: where the workspace
// lives, where plugins are discovered, which are enabled, and how the
// host logs and exposes metrics.
package config

import (
	"errors"
	"fmt"

	"github.com/dshills/texforge/internal/logging"
)

// Defaults.
const (
	DefaultExtensionRoot = "/extensions"
	DefaultMetricsAddr   = "127.0.0.1:9464"
)

// Validation errors.
var (
	ErrInvalidLogFormat  = errors.New("config: log format must be console or json")
	ErrMissingAddr       = errors.New("config: metrics address is required when metrics are enabled")
	ErrMissingPluginRef  = errors.New("config: plugin entry needs an id or a manifest")
	ErrDuplicatePluginID = errors.New("config: duplicate plugin entry")
	ErrUnknownFormat     = errors.New("config: unknown file format")
)

// Config is the workbench configuration.
type Config struct {
	// Workspace is the directory of the open project.
	Workspace string `json:"workspace" yaml:"workspace" toml:"workspace"`
	// ExtensionRoot is the root under which plugin extension URIs are built.
	ExtensionRoot string `json:"extensionRoot" yaml:"extensionRoot" toml:"extensionRoot"`
	// ExtensionDirs are scanned for plugin directories and single-file
	// Lua plugins. Earlier directories win on duplicate ids.
	ExtensionDirs []string `json:"extensionDirs,omitempty" yaml:"extensionDirs,omitempty" toml:"extensionDirs,omitempty"`

	Log     logging.Config `json:"log" yaml:"log" toml:"log"`
	Metrics MetricsConfig  `json:"metrics" yaml:"metrics" toml:"metrics"`

	// Plugins overrides discovery per plugin.
	Plugins []PluginConfig `json:"plugins,omitempty" yaml:"plugins,omitempty" toml:"plugins,omitempty"`
}

// MetricsConfig controls the HTTP surface serving /metrics and the plugin
// API.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
}

// PluginConfig enables or disables one plugin, or adds one from an
// explicit manifest file.
type PluginConfig struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Enabled  *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty" toml:"manifest,omitempty"`
}

// IsEnabled reports whether the plugin should be loaded. Plugins are
// enabled unless explicitly disabled.
func (p PluginConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Workspace:     ".",
		ExtensionRoot: DefaultExtensionRoot,
		Log: logging.Config{
			Level:  "info",
			Format: logging.FormatConsole,
		},
		Metrics: MetricsConfig{Addr: DefaultMetricsAddr},
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return ErrMissingAddr
	}

	seen := make(map[string]bool)
	for i, p := range c.Plugins {
		if p.ID == "" && p.Manifest == "" {
			return fmt.Errorf("%w at index %d", ErrMissingPluginRef, i)
		}
		if p.ID == "" {
			continue
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicatePluginID, p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}

// Disabled returns the ids of plugins explicitly disabled.
func (c *Config) Disabled() map[string]bool {
	out := make(map[string]bool)
	for _, p := range c.Plugins {
		if p.ID != "" && !p.IsEnabled() {
			out[p.ID] = true
		}
	}
	return out
}

// Manifests returns the manifest paths of enabled explicit plugin entries.
func (c *Config) Manifests() []string {
	var out []string
	for _, p := range c.Plugins {
		if p.Manifest != "" && p.IsEnabled() {
			out = append(out, p.Manifest)
		}
	}
	return out
}
