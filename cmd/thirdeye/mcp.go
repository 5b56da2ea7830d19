package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP over stdio",
		Long: `Serve every eye and flow as an MCP tool over stdin/stdout.

Logs go to stderr so they never corrupt the protocol stream.

Example host entry:
  {"command": "thirdeye", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				a.Close(closeCtx)
			}()

			stopWatch := a.watchConfig(ctx, path)
			defer stopWatch()

			s, err := mcp.NewServer(&mcp.Config{
				Name:    cfg.MCP.Name,
				Version: cfg.MCP.Version,
				Logger:  a.logger.Underlying(),
				Meter:   a.telemetry.Meter(instrumentationName + "/mcp"),
			}, a.eyes, a.flows)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			return s.Run(ctx)
		},
	}
}
