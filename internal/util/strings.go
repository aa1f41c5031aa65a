// Package util holds small string helpers shared by the engine's log
// summaries and the CLI's terminal rendering.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// TruncateString caps s at maxLen runes, appending "..." when it cuts.
// It counts runes, not columns, so styled terminal output should go
// through TruncateANSI instead.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// TruncateANSI caps s at maxWidth visual columns, appending "..." when
// it cuts. Escape sequences and wide characters are measured correctly,
// and the tail counts toward the final width.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "...")
}
