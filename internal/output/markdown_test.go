package output

import (
	"strings"
	"testing"
)

func TestStripFrontMatter(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"none", "# Title\n", "# Title\n"},
		{"block", "---\ntitle: x\n---\n\n# Title\n", "# Title\n"},
		{"unterminated", "---\ntitle: x\n# Title\n", "---\ntitle: x\n# Title\n"},
	}
	for _, tc := range tests {
		if got := stripFrontMatter(tc.in); got != tc.want {
			t.Errorf("%s: stripFrontMatter = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestRenderMarkdownEmpty(t *testing.T) {
	out, err := RenderMarkdownWithWidth("   \n", 80)
	if err != nil || out != "" {
		t.Fatalf("RenderMarkdownWithWidth(blank) = %q, %v", out, err)
	}
	out, err = RenderMarkdownWithWidth("---\nid: x\n---\n", 80)
	if err != nil || out != "" {
		t.Fatalf("front matter only = %q, %v", out, err)
	}
}

func TestRenderMarkdownClampsNarrowWidth(t *testing.T) {
	captureStdout(t)
	out, err := RenderMarkdownWithWidth("# Calendar\n\nShows a **calendar** view.", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Calendar") || !strings.Contains(out, "calendar") {
		t.Fatalf("rendered = %q", out)
	}
}

func TestTerminalWidthFallsBackToColumns(t *testing.T) {
	captureStdout(t)
	t.Setenv("COLUMNS", "97")
	if w := TerminalWidth(80); w != 97 {
		t.Errorf("TerminalWidth = %d, want 97", w)
	}
	t.Setenv("COLUMNS", "")
	if w := TerminalWidth(0); w != defaultReadmeWidth {
		t.Errorf("TerminalWidth(0) = %d, want %d", w, defaultReadmeWidth)
	}
}
