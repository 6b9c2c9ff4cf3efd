package tui

import (
	"strings"

	tea "charm.land/bubbletea/v2"
	"github.com/braindrive/docchat/internal/chat"
	"github.com/braindrive/docchat/internal/scroll"
	uv "github.com/charmbracelet/ultraviolet"
)

// TranscriptPane is a line-addressed scrolling view of the chat messages.
// It renders lazily from cached per-message lines and implements the
// scroll package's container interfaces, so a scroll.Controller can read
// its metrics and move it.
type TranscriptPane struct {
	items    []*messageItem
	lines    []string // flattened lines of all items, gaps included
	lastSize int      // line count of the last item
	dirty    bool

	top    int // index of the first visible line
	width  int
	height int

	markdown bool
	md       *markdownRenderer

	// onScroll fires after every change of top, like a native scroll event.
	onScroll func()
}

var (
	_ scroll.Container           = (*TranscriptPane)(nil)
	_ scroll.Scroller            = (*TranscriptPane)(nil)
	_ scroll.LastMessageMeasurer = (*TranscriptPane)(nil)
)

// NewTranscriptPane creates an empty pane.
func NewTranscriptPane(markdown bool) *TranscriptPane {
	return &TranscriptPane{
		markdown: markdown,
		md:       newMarkdownRenderer(),
	}
}

// OnScroll registers the scroll listener.
func (p *TranscriptPane) OnScroll(fn func()) {
	p.onScroll = fn
}

// SetMessages replaces the displayed messages. Rendered lines are reused
// for messages that did not change. The viewport does not move.
func (p *TranscriptPane) SetMessages(msgs []*chat.Message) {
	cached := make(map[string]*messageItem, len(p.items))
	for _, it := range p.items {
		cached[it.msg.ID] = it
	}
	items := make([]*messageItem, 0, len(msgs))
	for _, m := range msgs {
		if it, ok := cached[m.ID]; ok {
			it.msg = m
			items = append(items, it)
			continue
		}
		items = append(items, newMessageItem(m))
	}
	p.items = items
	p.dirty = true
}

// SetMarkdown toggles markdown rendering of AI replies.
func (p *TranscriptPane) SetMarkdown(on bool) {
	if p.markdown == on {
		return
	}
	p.markdown = on
	p.dirty = true
}

// Markdown reports whether AI replies render as markdown.
func (p *TranscriptPane) Markdown() bool {
	return p.markdown
}

// SetSize updates the viewport dimensions. A viewport showing the last
// line keeps showing it after the reflow.
func (p *TranscriptPane) SetSize(width, height int) {
	pinned := p.height > 0 && p.AtBottom()
	if width != p.width {
		p.dirty = true
	}
	p.width = width
	p.height = max(height, 0)
	p.layout()
	if pinned {
		p.top = p.maxTop()
		return
	}
	p.clampTop()
}

// layout rebuilds the flattened line list when anything changed.
func (p *TranscriptPane) layout() {
	if !p.dirty {
		return
	}
	p.dirty = false
	p.lines = p.lines[:0]
	p.lastSize = 0
	width := max(p.width, 1)
	for i, it := range p.items {
		last := i == len(p.items)-1
		if i > 0 {
			p.lines = append(p.lines, "")
		}
		lines := it.Lines(p.md, width, p.markdown, last)
		p.lines = append(p.lines, lines...)
		if last {
			p.lastSize = len(lines)
		}
	}
	// Shrinking content pulls the viewport up.
	p.clampTop()
}

// ScrollTop implements scroll.Container.
func (p *TranscriptPane) ScrollTop() int {
	p.layout()
	return p.top
}

// ScrollHeight implements scroll.Container.
func (p *TranscriptPane) ScrollHeight() int {
	p.layout()
	return len(p.lines)
}

// ClientHeight implements scroll.Container.
func (p *TranscriptPane) ClientHeight() int {
	return p.height
}

// LastMessageHeight implements scroll.LastMessageMeasurer.
func (p *TranscriptPane) LastMessageHeight() (int, bool) {
	p.layout()
	if len(p.items) == 0 {
		return 0, false
	}
	return p.lastSize, true
}

// ScrollTo implements scroll.Scroller. A terminal cannot animate, so every
// behavior jumps.
func (p *TranscriptPane) ScrollTo(top int, _ scroll.Behavior) {
	p.layout()
	p.setTop(top)
}

// ScrollBy moves the viewport by lines. Positive values scroll down.
func (p *TranscriptPane) ScrollBy(lines int) {
	if lines == 0 {
		return
	}
	p.layout()
	p.setTop(p.top + lines)
}

// GotoTop scrolls to the first line.
func (p *TranscriptPane) GotoTop() {
	p.layout()
	p.setTop(0)
}

func (p *TranscriptPane) setTop(top int) {
	prev := p.top
	p.top = top
	p.clampTop()
	if p.top != prev && p.onScroll != nil {
		p.onScroll()
	}
}

func (p *TranscriptPane) maxTop() int {
	return max(len(p.lines)-p.height, 0)
}

func (p *TranscriptPane) clampTop() {
	p.top = min(max(p.top, 0), p.maxTop())
}

// AtBottom reports whether the last line is visible.
func (p *TranscriptPane) AtBottom() bool {
	p.layout()
	return p.top >= p.maxTop()
}

// View returns the visible lines.
func (p *TranscriptPane) View() string {
	p.layout()
	if len(p.lines) == 0 || p.height == 0 {
		return ""
	}
	end := min(p.top+p.height, len(p.lines))
	return strings.Join(p.lines[p.top:end], "\n")
}

// Draw renders the visible lines into area.
func (p *TranscriptPane) Draw(scr uv.Screen, area uv.Rectangle) *tea.Cursor {
	if area.Dx() <= 0 || area.Dy() <= 0 {
		return nil
	}
	if content := p.View(); content != "" {
		uv.NewStyledString(content).Draw(scr, area)
	}
	return nil
}

// Update handles the paging keys. It reports whether the key moved the
// viewport.
func (p *TranscriptPane) Update(msg tea.Msg) bool {
	key, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return false
	}
	before := p.top
	switch key.String() {
	case "pgup":
		p.ScrollBy(-max(p.height-1, 1))
	case "pgdown":
		p.ScrollBy(max(p.height-1, 1))
	case "home":
		p.GotoTop()
	default:
		return false
	}
	return p.top != before
}
