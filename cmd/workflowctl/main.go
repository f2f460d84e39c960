// Package main provides the entry point for the workflowctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowrt/flowrt/cmd/workflowctl/commands"
	"github.com/flowrt/flowrt/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "workflowctl",
		Short: "Workflowctl - signal-driven workflow runtime control plane",
		Long: `Workflowctl drives a signal-driven workflow runtime.

Commands:
  run       Execute a workflow definition against a fresh run
  validate  Validate a workflow definition without running it
  license   Inspect license token state
  render    Render a captured run's signals as a table
  serve     Run the MCP server with Prometheus and pprof endpoints`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewLicenseCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitInternalError)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "workflowctl %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
