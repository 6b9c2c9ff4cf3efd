// Package scrolltest provides deterministic fakes for driving a scroll.Controller in tests.
package scrolltest

import (
	"sort"
	"time"

	"github.com/braindrive/docchat/internal/scroll"
)

// Clock is a manually advanced clock.
type Clock struct {
	now time.Time
}

// NewClock returns a clock fixed at a stable instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

// Now implements scroll.Clock.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type pending struct {
	id      int
	due     time.Time
	fn      func()
	stopped bool
}

type timer struct {
	p *pending
}

func (t timer) Stop() bool {
	if t.p.stopped {
		return false
	}
	t.p.stopped = true
	return true
}

// Scheduler queues timers and frame callbacks until the test releases them.
type Scheduler struct {
	clock  *Clock
	nextID int
	timers []*pending
	frames []func()
}

// NewScheduler returns a scheduler driven by clock.
func NewScheduler(clock *Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// AfterFunc implements scroll.Scheduler.
func (s *Scheduler) AfterFunc(d time.Duration, fn func()) scroll.Timer {
	s.nextID++
	p := &pending{id: s.nextID, due: s.clock.Now().Add(d), fn: fn}
	s.timers = append(s.timers, p)
	return timer{p: p}
}

// NextFrame implements scroll.Scheduler.
func (s *Scheduler) NextFrame(fn func()) {
	s.frames = append(s.frames, fn)
}

// PendingTimers returns the number of timers that are neither fired nor stopped.
func (s *Scheduler) PendingTimers() int {
	n := 0
	for _, p := range s.timers {
		if !p.stopped {
			n++
		}
	}
	return n
}

// PendingFrames returns the number of queued frame callbacks.
func (s *Scheduler) PendingFrames() int {
	return len(s.frames)
}

// Flush runs queued frame callbacks, including any they enqueue.
func (s *Scheduler) Flush() {
	for len(s.frames) > 0 {
		fn := s.frames[0]
		s.frames = s.frames[1:]
		fn()
	}
}

// Advance moves the clock and fires due timers in order, flushing frames after each.
func (s *Scheduler) Advance(d time.Duration) {
	s.clock.Advance(d)
	for {
		due := s.dueTimers()
		if len(due) == 0 {
			return
		}
		for _, p := range due {
			if p.stopped {
				continue
			}
			p.stopped = true
			p.fn()
			s.Flush()
		}
	}
}

func (s *Scheduler) dueTimers() []*pending {
	var due []*pending
	var rest []*pending
	now := s.clock.Now()
	for _, p := range s.timers {
		if p.stopped {
			continue
		}
		if !p.due.After(now) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	s.timers = rest
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	return due
}

// ScrollCall records one ScrollTo invocation.
type ScrollCall struct {
	Top      int
	Behavior scroll.Behavior
}

// Container is an in-memory scroll container.
type Container struct {
	Top    int
	Height int
	Client int

	// LastHeight is reported by LastMessageHeight when HasLast is set.
	LastHeight int
	HasLast    bool

	Calls []ScrollCall

	// OnScroll, when set, is invoked after every ScrollTo like a native scroll event.
	OnScroll func()
}

// NewContainer returns a container with the given metrics.
func NewContainer(top, height, client int) *Container {
	return &Container{Top: top, Height: height, Client: client}
}

func (c *Container) ScrollTop() int    { return c.Top }
func (c *Container) ScrollHeight() int { return c.Height }
func (c *Container) ClientHeight() int { return c.Client }

// ScrollTo implements scroll.Scroller.
func (c *Container) ScrollTo(top int, behavior scroll.Behavior) {
	c.Calls = append(c.Calls, ScrollCall{Top: top, Behavior: behavior})
	c.Top = top
	if c.OnScroll != nil {
		c.OnScroll()
	}
}

// LastMessageHeight implements scroll.LastMessageMeasurer.
func (c *Container) LastMessageHeight() (int, bool) {
	return c.LastHeight, c.HasLast
}

// UserScrollTo moves the viewport as the user would, firing OnScroll.
func (c *Container) UserScrollTo(top int) {
	c.Top = top
	if c.OnScroll != nil {
		c.OnScroll()
	}
}

// BareContainer only exposes metrics and a settable top.
type BareContainer struct {
	Top, Height, Client int
}

func (c *BareContainer) ScrollTop() int       { return c.Top }
func (c *BareContainer) ScrollHeight() int    { return c.Height }
func (c *BareContainer) ClientHeight() int    { return c.Client }
func (c *BareContainer) SetScrollTop(top int) { c.Top = top }

// Message is a trackable message stub.
type Message struct {
	Streaming bool
}

// IsStreaming implements scroll.TrackedMessage.
func (m Message) IsStreaming() bool { return m.Streaming }
