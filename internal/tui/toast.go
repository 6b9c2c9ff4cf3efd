package tui

import (
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/braindrive/docchat/internal/tui/theme"
)

// toastDuration is how long a toast stays on screen.
const toastDuration = 3 * time.Second

// ToastDismissMsg is sent when a toast should be dismissed.
// Seq ties it to the toast it was scheduled for.
type ToastDismissMsg struct {
	Seq int
}

// ShowToastMsg is sent to show a toast notification.
type ShowToastMsg struct {
	Text  string
	Error bool
}

// Toast shows one notification in the bottom-right corner and hides it
// after toastDuration. A newer toast replaces an older one.
type Toast struct {
	message string
	isError bool
	visible bool
	seq     int
}

// NewToast creates a new Toast component.
func NewToast() *Toast {
	return &Toast{}
}

// Show displays a toast and returns the command that dismisses it.
func (t *Toast) Show(msg string) tea.Cmd {
	return t.show(msg, false)
}

// ShowError displays an error-styled toast.
func (t *Toast) ShowError(msg string) tea.Cmd {
	return t.show(msg, true)
}

func (t *Toast) show(msg string, isError bool) tea.Cmd {
	t.message = msg
	t.isError = isError
	t.visible = true
	t.seq++
	seq := t.seq
	return tea.Tick(toastDuration, func(time.Time) tea.Msg {
		return ToastDismissMsg{Seq: seq}
	})
}

// Update handles messages for the toast component.
func (t *Toast) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case ShowToastMsg:
		return t.show(msg.Text, msg.Error)
	case ToastDismissMsg:
		// A dismissal scheduled for an older toast must not hide a newer one.
		if msg.Seq != t.seq {
			return nil
		}
		t.visible = false
		t.message = ""
	}
	return nil
}

// View renders the toast box, capped to width. It is empty when hidden.
func (t *Toast) View(width int) string {
	if !t.visible || t.message == "" {
		return ""
	}

	th := theme.Current()
	style := th.S().Toast
	if t.isError {
		style = style.Background(lipgloss.Color(th.Error))
	}

	content := style.Render(t.message)
	if width > 2 && lipgloss.Width(content) > width-2 {
		content = style.Width(width - 2).Render(t.message)
	}
	return content
}

// IsVisible returns whether the toast is currently visible.
func (t *Toast) IsVisible() bool {
	return t.visible
}

// Message returns the current toast message (empty if not visible).
func (t *Toast) Message() string {
	if !t.visible {
		return ""
	}
	return t.message
}
