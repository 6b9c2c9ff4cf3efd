package tui

import (
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/braindrive/docchat/internal/scroll"
)

// timerFiredMsg delivers a scheduled callback to the update loop.
type timerFiredMsg struct {
	id uint64
}

// frameMsg runs the callbacks deferred until after the current render.
type frameMsg struct{}

// teaScheduler implements scroll.Scheduler on the Bubble Tea loop.
// Callbacks never run on timer goroutines: AfterFunc becomes a tea.Tick and
// NextFrame a posted message, and both run inside Update. Commands queue up
// until the App collects them with Drain at the end of each Update.
type teaScheduler struct {
	nextID      uint64
	timers      map[uint64]*teaTimer
	frames      []func()
	framePosted bool
	pending     []tea.Cmd
}

var _ scroll.Scheduler = (*teaScheduler)(nil)

type teaTimer struct {
	s  *teaScheduler
	id uint64
	fn func()
}

// Stop implements scroll.Timer.
func (t *teaTimer) Stop() bool {
	if _, ok := t.s.timers[t.id]; !ok {
		return false
	}
	delete(t.s.timers, t.id)
	return true
}

func newTeaScheduler() *teaScheduler {
	return &teaScheduler{timers: make(map[uint64]*teaTimer)}
}

// AfterFunc implements scroll.Scheduler.
func (s *teaScheduler) AfterFunc(d time.Duration, fn func()) scroll.Timer {
	s.nextID++
	t := &teaTimer{s: s, id: s.nextID, fn: fn}
	s.timers[t.id] = t
	id := t.id
	s.pending = append(s.pending, tea.Tick(d, func(time.Time) tea.Msg {
		return timerFiredMsg{id: id}
	}))
	return t
}

// NextFrame implements scroll.Scheduler.
func (s *teaScheduler) NextFrame(fn func()) {
	s.frames = append(s.frames, fn)
	if s.framePosted {
		return
	}
	s.framePosted = true
	s.pending = append(s.pending, func() tea.Msg { return frameMsg{} })
}

// Handle runs the callbacks a scheduler message stands for. It reports
// whether msg belonged to the scheduler.
func (s *teaScheduler) Handle(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case timerFiredMsg:
		t, ok := s.timers[msg.id]
		if !ok {
			return true // stopped
		}
		delete(s.timers, msg.id)
		t.fn()
		return true
	case frameMsg:
		frames := s.frames
		s.frames = nil
		s.framePosted = false
		for _, fn := range frames {
			fn()
		}
		return true
	}
	return false
}

// Drain returns the commands queued since the last call.
func (s *teaScheduler) Drain() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	return tea.Batch(cmds...)
}

// Pending reports the number of live timers and queued frame callbacks.
func (s *teaScheduler) Pending() (timers, frames int) {
	return len(s.timers), len(s.frames)
}
