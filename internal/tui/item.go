package tui

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/aymanbagabas/go-udiff"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/tui/theme"
)

const (
	cutOffMarker    = "[cut off]"
	streamingCursor = "▍"
	timeFormat      = "15:04"
)

// renderKey captures everything a rendered message depends on.
type renderKey struct {
	content   string
	width     int
	markdown  bool
	streaming bool
	cutOff    bool
	canCont   bool
	canRegen  bool
	edited    bool
	original  string
	errText   string
	last      bool
}

// messageItem caches the rendered lines of one message.
type messageItem struct {
	msg   *chat.Message
	key   renderKey
	lines []string
	valid bool
}

func newMessageItem(msg *chat.Message) *messageItem {
	return &messageItem{msg: msg}
}

func (it *messageItem) keyFor(width int, markdown, last bool) renderKey {
	m := it.msg
	return renderKey{
		content:   m.Content,
		width:     width,
		markdown:  markdown,
		streaming: m.Streaming,
		cutOff:    m.IsCutOff,
		canCont:   m.CanContinue,
		canRegen:  m.CanRegenerate,
		edited:    m.IsEdited,
		original:  m.OriginalContent,
		errText:   m.Error,
		last:      last,
	}
}

// Lines returns the rendered lines, re-rendering only when the message or
// layout changed.
func (it *messageItem) Lines(md *markdownRenderer, width int, markdown, last bool) []string {
	key := it.keyFor(width, markdown, last)
	if it.valid && key == it.key {
		return it.lines
	}
	it.key = key
	it.lines = strings.Split(renderMessage(md, it.msg, width, markdown, last), "\n")
	it.valid = true
	return it.lines
}

// renderMessage renders a header line, the body and any status footer.
func renderMessage(md *markdownRenderer, m *chat.Message, width int, markdown, last bool) string {
	s := theme.Current().S()
	var b strings.Builder

	stamp := s.Timestamp.Render(" · " + m.Created.Format(timeFormat))
	if m.Sender == chat.SenderUser {
		b.WriteString(s.UserLabel.Render("You") + stamp)
		if m.IsEdited {
			b.WriteString(s.EditedTag.Render(" (edited)"))
		}
	} else {
		b.WriteString(s.AILabel.Render("Assistant") + stamp)
	}
	b.WriteString("\n")

	switch {
	case m.Sender == chat.SenderUser:
		b.WriteString(s.UserBody.Width(width).Render(m.Content))
		if m.IsEdited && m.OriginalContent != "" {
			if diff := renderDiff(m.OriginalContent, m.Content); diff != "" {
				b.WriteString("\n")
				b.WriteString(diff)
			}
		}
	case m.Streaming:
		// Markdown is re-rendered once the reply is final.
		b.WriteString(s.AIBody.Width(width).Render(m.Content + streamingCursor))
	case markdown && m.Content != "":
		b.WriteString(md.Render(m.Content, width))
	default:
		b.WriteString(s.AIBody.Width(width).Render(m.Content))
	}

	if footer := renderFooter(m, last); footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
	}
	return b.String()
}

// renderFooter shows the cut-off marker, the error and the actions
// available on the last reply.
func renderFooter(m *chat.Message, last bool) string {
	if m.Sender != chat.SenderAI || m.Streaming {
		return ""
	}
	s := theme.Current().S()

	var parts []string
	if m.IsCutOff {
		parts = append(parts, s.CutOffTag.Render(cutOffMarker))
	}
	if m.Error != "" {
		parts = append(parts, s.ErrorText.Render("error: "+m.Error))
	}
	if last {
		var hints []string
		if m.CanContinue {
			hints = append(hints, "ctrl+t continue")
		}
		if m.CanRegenerate || m.Error != "" {
			hints = append(hints, "ctrl+r regenerate")
		}
		if len(hints) > 0 {
			parts = append(parts, s.ActionHint.Render(strings.Join(hints, " · ")))
		}
	}
	return strings.Join(parts, "  ")
}

// renderDiff renders the unified diff between the original and edited
// prompt, without file headers.
func renderDiff(original, edited string) string {
	if !strings.HasSuffix(original, "\n") {
		original += "\n"
	}
	if !strings.HasSuffix(edited, "\n") {
		edited += "\n"
	}
	diff := udiff.Unified("original", "edited", original, edited)
	if diff == "" {
		return ""
	}

	var body []string
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		if strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++") {
			continue
		}
		body = append(body, line)
	}
	text := strings.Join(body, "\n")
	if highlighted := syntaxHighlight(text, "prompt.diff"); highlighted != "" {
		return highlighted
	}

	s := theme.Current().S()
	for i, line := range body {
		switch {
		case strings.HasPrefix(line, "@@"):
			body[i] = s.DiffHunk.Render(line)
		case strings.HasPrefix(line, "+"):
			body[i] = s.DiffInsert.Render(line)
		case strings.HasPrefix(line, "-"):
			body[i] = s.DiffDelete.Render(line)
		default:
			body[i] = lipgloss.NewStyle().Faint(true).Render(line)
		}
	}
	return strings.Join(body, "\n")
}
