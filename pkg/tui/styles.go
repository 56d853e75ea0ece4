package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/astromechza/shared-list/pkg/list"
)

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true)
	SuccessStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	PendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	AccentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	MutedStyle    = lipgloss.NewStyle().Faint(true)
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	panelStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

// ProgressBar draws done/total as a fixed width bar.
func ProgressBar(p list.Progress, width int) string {
	if width <= 0 {
		width = 28
	}
	filled := 0
	if p.Total > 0 {
		filled = p.Done * width / p.Total
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) +
		fmt.Sprintf("] %d/%d %d%%", p.Done, p.Total, p.Percent)
}

// ItemLine renders one item without selection markers.
func ItemLine(it list.Item) string {
	if it.Done {
		return SuccessStyle.Render(boxChecked) + " " + doneStyle.Render(it.Label)
	}
	return MutedStyle.Render(boxUnchecked) + " " + it.Label
}

// Panel wraps lines in the rounded border used across the terminal views.
func Panel(lines ...string) string {
	return panelStyle.Render(strings.Join(lines, "\n"))
}
