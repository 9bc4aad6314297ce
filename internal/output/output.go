// Package output provides styled terminal output helpers (success, error,
// warning, sync result formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/plugsync/internal/history"
	"github.com/marcus/plugsync/internal/registry"
	"github.com/marcus/plugsync/internal/syncer"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[string]lipgloss.Style{
		history.StatusWritten: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		history.StatusSkipped: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		history.StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Stdout receives all printed output.
var Stdout io.Writer = os.Stdout

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, errorStyle.Render("ERROR: "+fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, warningStyle.Render("Warning: "+fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Fprintln(Stdout, fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(Stdout, string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidInput      = "invalid_input"
	ErrCodeConflict          = "conflict"
	ErrCodeServerUnreachable = "server_unreachable"
	ErrCodeWriteFailed       = "write_failed"
	ErrCodeDatabaseError     = "database_error"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Fprintln(Stdout, string(data))
}

// Notifier prints cycle notices as styled lines. It implements syncer.Notifier.
type Notifier struct{}

// Notify implements syncer.Notifier.
func (Notifier) Notify(n syncer.Notice) {
	switch {
	case n.Level >= slog.LevelError:
		Error("%s", n.Message)
	case n.Level >= slog.LevelWarn:
		Warning("%s", n.Message)
	case n.Count > 0:
		Success("%s", n.Message)
	default:
		Info("%s", n.Message)
	}
}

// FormatStatus formats a file outcome status with color
func FormatStatus(s string) string {
	style, ok := statusStyles[s]
	if !ok {
		return s
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// StatusBadge returns a status indicator with symbol
// e.g., "✓ written", "- skipped", "✗ failed"
func StatusBadge(status string) string {
	symbols := map[string]string{
		history.StatusWritten: "✓",
		history.StatusSkipped: "-",
		history.StatusFailed:  "✗",
	}
	symbol, ok := symbols[status]
	if !ok {
		symbol = "?"
	}
	if style, ok := statusStyles[status]; ok {
		return style.Render(fmt.Sprintf("%s %s", symbol, status))
	}
	return fmt.Sprintf("%s %s", symbol, status)
}

// FormatPluginShort formats an installed plugin on one line.
func FormatPluginShort(p registry.Plugin, selected bool) string {
	marker := "  "
	if selected {
		marker = successStyle.Render("* ")
	}
	parts := []string{marker + titleStyle.Render(p.ID)}
	if p.Name != p.ID {
		parts = append(parts, p.Name)
	}
	if p.Version != "" {
		parts = append(parts, subtleStyle.Render("v"+p.Version))
	}
	return strings.Join(parts, "  ")
}

// FormatPluginLong formats an installed plugin with its manifest details.
func FormatPluginLong(p registry.Plugin) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s", p.ID, p.Name)))
	sb.WriteString("\n")
	if p.Version != "" {
		sb.WriteString(fmt.Sprintf("Version: %s\n", p.Version))
	}
	if p.Author != "" {
		sb.WriteString(fmt.Sprintf("Author: %s\n", p.Author))
	}
	sb.WriteString(fmt.Sprintf("Folder: %s\n", p.Dir))
	if p.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(p.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatFileResult formats one file outcome of a cycle.
func FormatFileResult(f syncer.FileResult) string {
	line := fmt.Sprintf("  %s  %s", StatusBadge(f.Status), f.Path)
	if f.Destination != "" {
		line += subtleStyle.Render(" -> " + f.Destination)
	}
	if f.Error != "" {
		line += "  " + errorStyle.Render(f.Error)
	}
	return line
}

// FormatResult formats a cycle result with one line per file.
func FormatResult(r *syncer.Result) string {
	var sb strings.Builder
	plugin := r.PluginID
	if plugin == "" {
		plugin = "(none)"
	}
	sb.WriteString(fmt.Sprintf("%s  plugin %s  %s\n",
		titleStyle.Render(r.Summary()), plugin, subtleStyle.Render(r.Duration.Round(time.Millisecond).String())))
	for _, f := range r.Files {
		sb.WriteString(FormatFileResult(f))
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatEntry formats a history entry on one line.
func FormatEntry(e history.Entry) string {
	dest := e.Destination
	if dest == "" {
		dest = e.Path
	}
	line := fmt.Sprintf("%s  %s  %s  %s",
		subtleStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")),
		FormatStatus(e.Status),
		e.PluginID,
		dest)
	if e.Error != "" {
		line += "  " + errorStyle.Render(e.Error)
	}
	return line
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSETTINGS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}
