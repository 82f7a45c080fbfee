// Package main is the entry point for the texforge extension host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/config"
	"github.com/dshills/texforge/internal/logging"
	"github.com/dshills/texforge/internal/metrics"
	"github.com/dshills/texforge/internal/workbench"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	workspace  string
	extDirs    []string
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "texforge",
		Short: "Extension host for the texforge LaTeX workbench",
		Long: `texforge hosts the plugins of the LaTeX workbench: it loads builtin and
Lua plugins in dependency order, activates them against the shared services,
and exposes their commands.

Configuration is read from --config (YAML, TOML or JSON), then from an
optional .env file and TEXFORGE_* environment variables, then from flags.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to configuration file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "optional .env file with TEXFORGE_* variables")
	pf.StringVarP(&flags.workspace, "workspace", "w", "", "workspace directory")
	pf.StringSliceVar(&flags.extDirs, "extensions", nil, "plugin directories to scan (repeatable)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format (console, json)")
	pf.BoolVar(&flags.jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		newRunCmd(flags),
		newPluginsCmd(flags),
		newCommandsCmd(flags),
		newExecCmd(flags),
		newOpenCmd(flags),
	)
	return root
}

// loadConfig layers file, environment and flags.
func (f *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg, f.envFile); err != nil {
		return nil, err
	}

	pf := cmd.Flags()
	if pf.Changed("workspace") {
		cfg.Workspace = f.workspace
	}
	if pf.Changed("extensions") {
		cfg.ExtensionDirs = f.extDirs
	}
	if pf.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if pf.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	return cfg, cfg.Validate()
}

// host is a started workbench and the resources the CLI owns around it.
type host struct {
	wb      *workbench.Workbench
	report  *workbench.Report
	metrics *metrics.Collector
	logger  *zap.Logger
}

// startHost builds and starts a workbench. Plugin failures are logged by
// the workbench and do not fail the command.
func (f *globalFlags) startHost(cmd *cobra.Command, mutate func(*config.Config)) (*host, error) {
	cfg, err := f.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	collector := metrics.NewCollector(metrics.DefaultNamespace, logger)

	wb, err := workbench.New(cfg,
		workbench.WithLogger(logger),
		workbench.WithMetrics(collector),
	)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	report, err := wb.Start(cmd.Context())
	if err != nil {
		_ = wb.Shutdown(context.Background())
		_ = logger.Sync()
		return nil, err
	}
	return &host{wb: wb, report: report, metrics: collector, logger: logger}, nil
}

func (h *host) close() error {
	err := h.wb.Shutdown(context.Background())
	_ = h.logger.Sync()
	return err
}
