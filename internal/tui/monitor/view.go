package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	status := m.renderStatusPanel()
	notices := m.renderNoticesPanel()
	footer := m.renderFooter()

	used := lipgloss.Height(status) + lipgloss.Height(notices) + lipgloss.Height(footer)
	historyPanel := m.renderHistoryPanel(m.Height - used)

	return lipgloss.JoinVertical(lipgloss.Left, status, notices, historyPanel, footer)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder
	s.WriteString("plugsync monitor (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Plugin: %s\n", m.pluginLabel()))
	s.WriteString(fmt.Sprintf("Auto sync: %s\n", m.enabledLabel()))
	if m.Syncing {
		s.WriteString("Syncing...\n")
	}
	s.WriteString("\nq:quit s:sync e:toggle ?:help")
	return s.String()
}

func (m Model) renderStatusPanel() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Server     %s", m.Current.ServerURL))
	lines = append(lines, fmt.Sprintf("Plugin     %s", m.pluginLabel()))
	lines = append(lines, fmt.Sprintf("Auto sync  %s  every %dms", m.enabledLabel(), m.Current.PollInterval))

	ticker := subtleStyle.Render("stopped")
	if m.Running {
		ticker = fmt.Sprintf("running (%s)", m.Interval)
	}
	lines = append(lines, "Ticker     "+ticker)

	last := subtleStyle.Render("none yet")
	if m.LastResult != nil {
		last = fmt.Sprintf("%s  %s", m.LastResult.Summary(), timestampStyle.Render(m.LastResult.Started.Local().Format("15:04:05")))
	}
	if m.Syncing {
		last = m.spinner.View() + " syncing..."
	}
	lines = append(lines, "Last sync  "+last)

	if m.editing {
		lines = append(lines, "", m.input.View())
	}
	return m.wrapPanel("STATUS", strings.Join(lines, "\n"), len(lines)+3)
}

func (m Model) renderNoticesPanel() string {
	if len(m.Recent) == 0 {
		return m.wrapPanel("NOTICES", subtleStyle.Render("No notices"), 4)
	}
	lines := make([]string, 0, len(m.Recent))
	for i := len(m.Recent) - 1; i >= 0; i-- {
		n := m.Recent[i]
		lines = append(lines, formatNoticeLevel(n.Level)+" "+n.Message)
	}
	return m.wrapPanel("NOTICES", strings.Join(lines, "\n"), len(lines)+3)
}

func (m Model) renderHistoryPanel(height int) string {
	if height < 4 {
		height = 4
	}
	if m.Err != nil {
		return m.wrapPanel("HISTORY", fmt.Sprintf("Error: %v", m.Err), height)
	}
	if len(m.Entries) == 0 {
		return m.wrapPanel("HISTORY", subtleStyle.Render("No files synced yet"), height)
	}

	// Newest first.
	lines := make([]string, 0, len(m.Entries))
	for i := len(m.Entries) - 1; i >= 0; i-- {
		e := m.Entries[i]
		dest := e.Filename
		if dest == "" {
			dest = e.Path
		}
		line := fmt.Sprintf("%s  %-7s  %s/%s",
			timestampStyle.Render(e.Timestamp.Local().Format("15:04:05")),
			formatStatus(e.Status),
			e.PluginID,
			dest)
		if e.Error != "" {
			line += "  " + subtleStyle.Render(e.Error)
		}
		lines = append(lines, line)
	}
	return m.wrapPanel("HISTORY", strings.Join(lines, "\n"), height)
}

// renderFooter renders key help and the refresh timestamp
func (m Model) renderFooter() string {
	keys := m.help.View(m.Keys)
	refresh := timestampStyle.Render("Last: " + m.LastRefresh.Format("15:04:05"))

	if m.ShowHelp {
		return lipgloss.JoinVertical(lipgloss.Left, keys, refresh)
	}

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}
	return fmt.Sprintf(" %s%s%s", keys, strings.Repeat(" ", padding), refresh)
}

// wrapPanel wraps content in a bordered panel with a title
func (m Model) wrapPanel(title, content string, height int) string {
	titleStr := panelTitleStyle.Render(title)
	contentWidth := m.Width - 4 // border and padding

	lines := strings.Split(content, "\n")
	contentHeight := height - 3 // title and border
	if contentHeight < 1 {
		contentHeight = 1
	}
	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = ansi.Truncate(line, contentWidth, "…")
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, strings.Join(lines, "\n"))
	return panelStyle.Width(m.Width - 2).Render(inner)
}

func (m Model) pluginLabel() string {
	if m.Current.SelectedPluginID == "" {
		return offStyle.Render("not selected")
	}
	return titleStyle.Render(m.Current.SelectedPluginID)
}

func (m Model) enabledLabel() string {
	if m.Current.Enabled {
		return onStyle.Render("ON")
	}
	return offStyle.Render("OFF")
}
