package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable the workbench reads.
const EnvPrefix = "TEXFORGE_"

// Environment variables mapped onto Config fields.
const (
	EnvWorkspace       = EnvPrefix + "WORKSPACE"
	EnvExtensionRoot   = EnvPrefix + "EXTENSION_ROOT"
	EnvExtensionDirs   = EnvPrefix + "EXTENSION_DIRS"
	EnvLogLevel        = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat       = EnvPrefix + "LOG_FORMAT"
	EnvMetricsEnabled  = EnvPrefix + "METRICS_ENABLED"
	EnvMetricsAddr     = EnvPrefix + "METRICS_ADDR"
	EnvDisabledPlugins = EnvPrefix + "DISABLED_PLUGINS"
)

// ApplyEnv loads the given .env files into the process environment and
// then overlays TEXFORGE_* variables onto cfg. Missing .env files are
// skipped; variables already set in the environment win over .env values.
func ApplyEnv(cfg *Config, envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if v, ok := os.LookupEnv(EnvWorkspace); ok {
		cfg.Workspace = v
	}
	if v, ok := os.LookupEnv(EnvExtensionRoot); ok {
		cfg.ExtensionRoot = v
	}
	if v, ok := os.LookupEnv(EnvExtensionDirs); ok {
		cfg.ExtensionDirs = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv(EnvLogFormat); ok {
		cfg.Log.Format = v
	}
	if v, ok := os.LookupEnv(EnvMetricsEnabled); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMetricsEnabled, err)
		}
		cfg.Metrics.Enabled = enabled
	}
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		cfg.Metrics.Addr = v
	}
	if v, ok := os.LookupEnv(EnvDisabledPlugins); ok {
		for _, id := range splitList(v) {
			cfg.disable(id)
		}
	}
	return cfg.Validate()
}

// disable marks id disabled, adding an entry when none exists.
func (c *Config) disable(id string) {
	off := false
	for i := range c.Plugins {
		if c.Plugins[i].ID == id {
			c.Plugins[i].Enabled = &off
			return
		}
	}
	c.Plugins = append(c.Plugins, PluginConfig{ID: id, Enabled: &off})
}

// splitList splits a comma separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
