package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/eyes"
	"github.com/AI-AugToOct/capstone-project-third-eye-mcp/internal/review"
)

var (
	tableHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true).Padding(0, 1)
	tableCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	tableEntryStyle  = tableCellStyle.Foreground(lipgloss.Color("46"))
)

func newEyesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eyes",
		Short: "List the pipeline's eyes and their prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := eyes.NewRegistry()
			if err := eyes.RegisterPipeline(reg, review.NewFactory(review.Options{}).Build); err != nil {
				return err
			}
			return renderEyes(cmd.OutOrStdout(), reg.Infos())
		},
	}
}

func renderEyes(w io.Writer, infos []eyes.Info) error {
	rows := make([][]string, 0, len(infos))
	entries := make(map[int]bool)
	for i, info := range infos {
		reasoning := ""
		if info.RequiresReasoning {
			reasoning = "yes"
		}
		rows = append(rows, []string{
			info.Name,
			string(info.Phase),
			joinPhases(info.RequiresPhases),
			joinPhases(info.ProvidesPhases),
			reasoning,
		})
		entries[i] = info.IsEntryPoint
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("238"))).
		Headers("EYE", "PHASE", "REQUIRES", "PROVIDES", "REASONING").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 0 && entries[row]:
				return tableEntryStyle
			default:
				return tableCellStyle
			}
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func joinPhases(phases []eyes.Phase) string {
	if len(phases) == 0 {
		return "-"
	}
	s := make([]string, len(phases))
	for i, p := range phases {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}
