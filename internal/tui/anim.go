package tui

import (
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/braindrive/docchat/internal/tui/theme"
)

// streamIndicator is the spinner shown while a reply streams. Its tick chain
// runs only while it is active, and is restarted on the next activation.
type streamIndicator struct {
	model   spinner.Model
	active  bool
	ticking bool
}

func newStreamIndicator() streamIndicator {
	return streamIndicator{model: spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(theme.Current().S().Spinner),
	)}
}

// Active reports whether a reply is streaming.
func (s *streamIndicator) Active() bool { return s.active }

// SetActive switches the indicator and returns the command that starts the
// tick chain, or nil when one is already running or the indicator stops.
func (s *streamIndicator) SetActive(active bool) tea.Cmd {
	s.active = active
	if !active {
		s.ticking = false
		return nil
	}
	if s.ticking {
		return nil
	}
	s.ticking = true
	return s.model.Tick
}

// Update advances the animation. Ticks arriving while inactive end the chain.
func (s *streamIndicator) Update(msg tea.Msg) tea.Cmd {
	if !s.active {
		return nil
	}
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return cmd
}

func (s *streamIndicator) View() string {
	if !s.active {
		return ""
	}
	return s.model.View() + " streaming"
}
