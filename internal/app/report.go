package app

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/vk/buildgrid/internal/dag"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	statusColors = map[dag.Status]lipgloss.Color{
		dag.StatusSucceeded: lipgloss.Color("42"),
		dag.StatusFailed:    lipgloss.Color("196"),
		dag.StatusSkipped:   lipgloss.Color("241"),
		dag.StatusTolerated: lipgloss.Color("214"),
		dag.StatusBlocked:   lipgloss.Color("208"),
	}
)

// renderTable writes a bordered table. colorize, when set, may restyle a
// body cell.
func renderTable(w io.Writer, headers []string, rows [][]string, colorize func(row, col int) *lipgloss.Style) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if colorize != nil {
				if s := colorize(row, col); s != nil {
					return *s
				}
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.String())
}

// renderReport writes one row per target in completion order, then a
// summary line.
func renderReport(w io.Writer, report *dag.Report) {
	rows := make([][]string, 0, len(report.Targets))
	for _, tr := range report.Targets {
		errText := ""
		if tr.Err != nil {
			errText = tr.Err.Error()
		}
		rows = append(rows, []string{tr.Name, tr.Status.String(), tr.Duration.Round(time.Millisecond).String(), errText})
	}
	renderTable(w, []string{"TARGET", "STATUS", "DURATION", "ERROR"}, rows, func(row, col int) *lipgloss.Style {
		if col != 1 || row < 0 || row >= len(report.Targets) {
			return nil
		}
		s := cellStyle.Foreground(statusColors[report.Targets[row].Status])
		return &s
	})

	failed := report.Count(dag.StatusFailed) + report.Count(dag.StatusBlocked)
	if report.Succeeded() {
		fmt.Fprintf(w, "Build succeeded in %s (run %s).\n", report.Duration.Round(time.Millisecond), report.RunID)
		return
	}
	fmt.Fprintf(w, "Build failed in %s (run %s): %d target(s) did not succeed.\n", report.Duration.Round(time.Millisecond), report.RunID, failed)
}
