package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/texforge/internal/config"
	"github.com/dshills/texforge/internal/server"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the extension host and keep it running",
		Long: `Start the extension host: load and activate every enabled plugin, then
wait for SIGINT or SIGTERM. With metrics enabled (or --http), serve
/healthz, /metrics and the plugin and command API over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := flags.startHost(cmd, func(cfg *config.Config) {
				if httpAddr != "" {
					cfg.Metrics.Enabled = true
					cfg.Metrics.Addr = httpAddr
				}
			})
			if err != nil {
				return err
			}
			defer h.close()

			if err := printReport(cmd.OutOrStdout(), flags.jsonOutput, h); err != nil {
				return err
			}

			cfg := h.wb.Config()
			if !cfg.Metrics.Enabled {
				<-cmd.Context().Done()
				return nil
			}
			srv := server.New(h.wb.Plugins(), h.wb.Commands(),
				server.WithLogger(h.logger),
				server.WithMetrics(h.metrics.Handler(), h.metrics),
			)
			return srv.ListenAndServe(cmd.Context(), cfg.Metrics.Addr)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve the HTTP API on this address")
	return cmd
}

func newPluginsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List plugins and their lifecycle state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := flags.startHost(cmd, nil)
			if err != nil {
				return err
			}
			defer h.close()

			out := cmd.OutOrStdout()
			infos := h.wb.Plugins().Infos()
			if flags.jsonOutput {
				return writeJSON(out, map[string]any{
					"plugins":  infos,
					"disabled": h.report.Disabled,
					"failed":   failures(h),
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVERSION\tSTATE\tDESCRIPTION")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.ID, info.Version, info.State, info.Description)
			}
			for _, id := range h.report.Disabled {
				fmt.Fprintf(tw, "%s\t-\tdisabled\t\n", id)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, f := range h.report.Failed {
				fmt.Fprintf(out, "failed: %v\n", f)
			}
			return nil
		},
	}
}

func newCommandsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "commands [query]",
		Short: "List registered commands, optionally filtered",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.startHost(cmd, nil)
			if err != nil {
				return err
			}
			defer h.close()

			cmds := h.wb.Commands().Commands()
			if len(args) == 1 {
				cmds = h.wb.Commands().SearchCommands(args[0])
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				return writeJSON(out, cmds)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE")
			for _, c := range cmds {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Category, c.Title)
			}
			return tw.Flush()
		},
	}
}

func newExecCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command> [args...]",
		Short: "Execute a command and print its result",
		Long: `Execute a registered command. Each argument is decoded as JSON when it
is valid JSON and passed as a plain string otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.startHost(cmd, nil)
			if err != nil {
				return err
			}
			defer h.close()

			result, err := h.wb.Commands().ExecuteCommand(cmd.Context(), args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newOpenCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open <file>",
		Short: "Open a file with its custom editor and print the view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := flags.startHost(cmd, nil)
			if err != nil {
				return err
			}
			defer h.close()

			view, err := h.wb.OpenFile(args[0])
			if err != nil {
				return err
			}
			if !view.Custom {
				h.logger.Info("no custom editor for file", zap.String("uri", args[0]))
				data, _ := view.Content.([]byte)
				view.Content = string(data)
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
}

// parseArgs decodes JSON arguments, falling back to raw strings.
func parseArgs(raw []string) []any {
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			args[i] = v
			continue
		}
		args[i] = s
	}
	return args
}

func printReport(w io.Writer, asJSON bool, h *host) error {
	if asJSON {
		return writeJSON(w, map[string]any{
			"activated": h.report.Activated,
			"disabled":  h.report.Disabled,
			"failed":    failures(h),
		})
	}
	fmt.Fprintf(w, "activated: %s\n", strings.Join(h.report.Activated, ", "))
	if len(h.report.Disabled) > 0 {
		fmt.Fprintf(w, "disabled: %s\n", strings.Join(h.report.Disabled, ", "))
	}
	for _, f := range h.report.Failed {
		fmt.Fprintf(w, "failed: %v\n", f)
	}
	return nil
}

func failures(h *host) map[string]string {
	out := make(map[string]string, len(h.report.Failed))
	for _, f := range h.report.Failed {
		out[f.ID] = f.Err.Error()
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
