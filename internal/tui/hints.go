package tui

import (
	"charm.land/bubbles/v2/key"
	"charm.land/lipgloss/v2"
	"github.com/braindrive/docchat/internal/tui/theme"
)

// RenderHint renders a single key-description pair.
// Example: RenderHint("enter", "send") -> "enter send"
func RenderHint(key, desc string) string {
	s := theme.Current().S()
	return s.HintKey.Render(key) + " " + s.HintDesc.Render(desc)
}

// RenderHintBar renders the help of bindings separated by " . ", dropping
// trailing hints that do not fit in width.
func RenderHintBar(width int, bindings ...key.Binding) string {
	s := theme.Current().S()
	sep := " " + s.HintSeparator.Render(".") + " "

	var result string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		h := b.Help()
		hint := RenderHint(h.Key, h.Desc)
		next := hint
		if result != "" {
			next = result + sep + hint
		}
		if width > 0 && lipgloss.Width(next) > width {
			break
		}
		result = next
	}
	return result
}
