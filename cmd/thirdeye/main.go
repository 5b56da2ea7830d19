// Thirdeye serves the Third Eye review pipeline over HTTP and MCP.
//
// Configuration is read from ~/.config/thirdeye/config.yaml (or --config)
// and THIRDEYE_* environment variables.
//
// Usage:
//
//	# HTTP API on 127.0.0.1:7070
//	thirdeye serve
//
//	# MCP over stdio, for agent hosts
//	thirdeye mcp
//
//	# Watch breaker state of a running server
//	thirdeye monitor --url http://127.0.0.1:7070
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "thirdeye",
		Short: "Review gatekeeper for AI agents",
		Long: `thirdeye runs the Third Eye capability pipeline: a sequence of review
"eyes" an agent must pass through in order, each guarded by a circuit breaker
and returning recoverable errors the agent can act on.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/thirdeye/config.yaml)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMCPCmd())
	root.AddCommand(newEyesCmd())
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "thirdeye\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
