package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/braindrive/docchat/internal/tui/theme"
	uv "github.com/charmbracelet/ultraviolet"
)

// StatusBar displays chat info (left) and streaming and bus status (right).
type StatusBar struct {
	width        int
	model        string
	persona      string
	conversation string
	busOnline    bool
	indicator    streamIndicator
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(model, persona string) *StatusBar {
	return &StatusBar{
		model:     model,
		persona:   persona,
		indicator: newStreamIndicator(),
	}
}

// Draw renders the status bar to the screen.
// Format: docchat | model | persona | conversation     [spinner] streaming ● bus
func (s *StatusBar) Draw(scr uv.Screen, area uv.Rectangle) *tea.Cursor {
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return nil
	}

	left := s.buildLeft()
	right := s.buildRight()

	totalWidth := area.Dx() - 2 // Account for padding
	padding := max(totalWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)

	DrawStyled(scr, area, theme.Current().S().StatusBar, left+strings.Repeat(" ", padding)+right)
	return nil
}

func (s *StatusBar) buildLeft() string {
	st := theme.Current().S()
	sep := st.StatusSep.Render(" | ")

	left := st.AppTitle.Render("docchat")
	model := s.model
	if model == "" {
		model = "no model"
	}
	left += sep + st.StatusInfo.Render(model)
	if s.persona != "" {
		left += sep + st.StatusMuted.Render(s.persona)
	}
	if s.conversation != "" {
		left += sep + st.StatusMuted.Render(truncateString(s.conversation, 12))
	}
	return left
}

func (s *StatusBar) buildRight() string {
	st := theme.Current().S()
	var right string
	if v := s.indicator.View(); v != "" {
		right += v + " "
	}
	if s.busOnline {
		right += st.StatusOnline.Render("●") + " events"
	} else {
		right += st.StatusError.Render("○") + " events"
	}
	return right
}

// SetSize updates the component width.
func (s *StatusBar) SetSize(width, _ int) {
	s.width = width
}

// SetModel updates the model and persona labels.
func (s *StatusBar) SetModel(model, persona string) {
	s.model = model
	s.persona = persona
}

// SetConversation updates the conversation id label.
func (s *StatusBar) SetConversation(id string) {
	s.conversation = id
}

// SetBusOnline updates the event bus indicator.
func (s *StatusBar) SetBusOnline(online bool) {
	s.busOnline = online
}

// SetStreaming toggles the streaming spinner and returns the command that
// starts its tick chain.
func (s *StatusBar) SetStreaming(streaming bool) tea.Cmd {
	return s.indicator.SetActive(streaming)
}

// Update handles spinner animation.
func (s *StatusBar) Update(msg tea.Msg) tea.Cmd {
	return s.indicator.Update(msg)
}

// truncateString truncates a string to fit within maxWidth, adding "..." if truncated.
func truncateString(s string, maxWidth int) string {
	if maxWidth <= 3 {
		return "..."
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	runes := []rune(s)
	targetLen := maxWidth - 3
	if targetLen >= len(runes) {
		return s
	}
	return string(runes[:targetLen]) + "..."
}
