package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"golang.org/x/term"
)

const (
	defaultReadmeWidth = 80
	minReadmeWidth     = 20
	maxReadmeWidth     = 120
)

// TerminalWidth returns the width of Stdout when it is a terminal, then
// $COLUMNS, then fallback.
func TerminalWidth(fallback int) int {
	if fallback <= 0 {
		fallback = defaultReadmeWidth
	}
	if f, ok := Stdout.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	if cols := os.Getenv("COLUMNS"); cols != "" {
		if parsed, err := strconv.Atoi(cols); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// isTerminal reports whether Stdout is an interactive terminal.
func isTerminal() bool {
	f, ok := Stdout.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// RenderMarkdown renders a plugin README for Stdout.
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(defaultReadmeWidth))
}

// RenderMarkdownWithWidth renders text wrapped at width, clamped to a
// readable range. Piped output gets the colorless style.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	text = stripFrontMatter(text)
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	width = max(minReadmeWidth, min(width, maxReadmeWidth))

	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if isTerminal() {
		style = glamour.WithAutoStyle()
	}
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// stripFrontMatter drops a leading "---" delimited YAML block.
func stripFrontMatter(text string) string {
	rest, ok := strings.CutPrefix(text, "---\n")
	if !ok {
		return text
	}
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return text
	}
	rest = rest[end+len("\n---"):]
	return strings.TrimLeft(rest, "\r\n")
}
