package monitor

import (
	"log/slog"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/plugsync/internal/history"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	syncingStyle   = lipgloss.NewStyle().Foreground(warningColor)
	onStyle        = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offStyle       = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	statusStyles = map[string]lipgloss.Style{
		history.StatusWritten: lipgloss.NewStyle().Foreground(successColor),
		history.StatusSkipped: lipgloss.NewStyle().Foreground(warningColor),
		history.StatusFailed:  lipgloss.NewStyle().Foreground(errorColor),
	}
)

// formatStatus renders a file status with color
func formatStatus(s string) string {
	style, ok := statusStyles[s]
	if !ok {
		return s
	}
	return style.Render(s)
}

// formatNoticeLevel renders a notice badge by level
func formatNoticeLevel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return lipgloss.NewStyle().Foreground(errorColor).Render("[ERR]")
	case l >= slog.LevelWarn:
		return lipgloss.NewStyle().Foreground(warningColor).Render("[WRN]")
	default:
		return lipgloss.NewStyle().Foreground(successColor).Render("[INF]")
	}
}
