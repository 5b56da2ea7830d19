package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/monitor"
)

func newMonitorCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live dashboard of circuit breaker state",
		Long: `Poll a running thirdeye server and show each circuit breaker's state,
recent failures and time until the next probe.

Examples:
  thirdeye monitor
  thirdeye monitor --url http://10.0.0.5:7070 --interval 1s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := tea.NewProgram(monitor.NewModel(url, interval), tea.WithAltScreen())
			_, err := p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:7070", "thirdeye server URL")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}
