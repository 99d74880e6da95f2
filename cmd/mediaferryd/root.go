package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mediaferry/internal/config"
	"mediaferry/internal/daemonrun"
	"mediaferry/internal/deps"
	"mediaferry/internal/preflight"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevel string
	var checkOnly bool

	cmd := &cobra.Command{
		Use:           "mediaferryd",
		Short:         "Run the mediaferry transfer daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(configFlag))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			if checkOnly {
				return runPreflight(cmd.Context(), cmd.OutOrStdout(), cfg, path, exists)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevel})
		},
	}

	cmd.Flags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Validate configuration and external tools, then exit")
	return cmd
}

// runPreflight reports configuration, paths, listen addresses and tool
// availability. It fails when any required check does not pass.
func runPreflight(ctx context.Context, out io.Writer, cfg *config.Config, path string, exists bool) error {
	if exists {
		fmt.Fprintf(out, "config: %s\n", path)
	} else {
		fmt.Fprintf(out, "config: %s (not found, defaults used)\n", path)
	}

	var problems []string
	for _, result := range preflight.RunAll(ctx, cfg) {
		fmt.Fprintf(out, "%s: %s\n", strings.ToLower(result.Name), result.Detail)
		if !result.Passed {
			problems = append(problems, result.Name)
		}
	}

	statuses := preflight.CheckSystemDeps(cfg)
	for _, status := range statuses {
		state := "ok"
		if !status.Available {
			state = status.Detail
		}
		fmt.Fprintf(out, "%s: %s\n", strings.ToLower(status.Name), state)
	}
	for _, status := range deps.Missing(statuses) {
		problems = append(problems, status.Command)
	}
	if len(problems) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(problems, ", "))
	}
	return nil
}
