package tui

import (
	"strings"

	"charm.land/glamour/v2"
	"charm.land/lipgloss/v2"
	"github.com/braindrive/docchat/internal/logger"
)

// maxMarkdownWidth caps the wrap width for readability.
const maxMarkdownWidth = 120

// markdownRenderer renders AI replies with glamour, keeping one renderer
// per wrap width.
type markdownRenderer struct {
	byWidth map[int]*glamour.TermRenderer
}

func newMarkdownRenderer() *markdownRenderer {
	return &markdownRenderer{byWidth: make(map[int]*glamour.TermRenderer)}
}

// Render renders content as markdown wrapped to width.
// Falls back to plain text wrapping if rendering fails.
func (m *markdownRenderer) Render(content string, width int) string {
	width = min(width, maxMarkdownWidth)
	if width <= 0 {
		return content
	}

	r, ok := m.byWidth[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			logger.Debug("markdown renderer for width %d: %v", width, err)
			return wrapText(content, width)
		}
		m.byWidth[width] = r
	}

	rendered, err := r.Render(content)
	if err != nil {
		return wrapText(content, width)
	}

	// glamour pads with blank lines at both ends
	return strings.Trim(rendered, "\n")
}

// wrapText wraps plain text to width.
func wrapText(content string, width int) string {
	if width <= 0 {
		return content
	}
	return lipgloss.NewStyle().Width(width).Render(content)
}
