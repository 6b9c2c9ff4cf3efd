// Package scroll decides when a chat transcript should follow new content.
//
// The Controller owns the auto-follow lock, the "jump to bottom" indicator,
// and the anchor offset kept above the live edge. It reads scroll metrics
// from a Container and never mutates it except through ScrollTo.
// A Controller is not safe for concurrent use; the host must call it, and
// run Scheduler callbacks, on a single event loop.
package scroll

import "time"

// State is the rendered scroll state. It is always replaced as a whole.
type State struct {
	IsNearBottom       bool
	ShowScrollToBottom bool
	IsAutoScrollLocked bool
}

// Behavior selects how a programmatic scroll moves the viewport.
type Behavior int

const (
	BehaviorAuto Behavior = iota
	BehaviorSmooth
)

func (b Behavior) String() string {
	if b == BehaviorSmooth {
		return "smooth"
	}
	return "auto"
}

// IntentSource names the input that signalled a deliberate user scroll.
type IntentSource string

const (
	IntentWheel   IntentSource = "wheel"
	IntentTouch   IntentSource = "touch"
	IntentPointer IntentSource = "pointer"
	IntentKey     IntentSource = "key"
	IntentScroll  IntentSource = "scroll"
)

// Container exposes the metrics of a vertically scrolling element.
type Container interface {
	ScrollTop() int
	ScrollHeight() int
	ClientHeight() int
}

// Scroller is implemented by containers that can scroll themselves.
type Scroller interface {
	ScrollTo(top int, behavior Behavior)
}

// TopSetter is the fallback for containers without ScrollTo.
type TopSetter interface {
	SetScrollTop(top int)
}

// LastMessageMeasurer reports the rendered height of the last message.
type LastMessageMeasurer interface {
	LastMessageHeight() (int, bool)
}

// TrackedMessage is the only thing the controller needs to know about a message.
type TrackedMessage interface {
	IsStreaming() bool
}

// Track converts a typed message slice for SetMessages.
func Track[T TrackedMessage](list []T) []TrackedMessage {
	out := make([]TrackedMessage, len(list))
	for i, m := range list {
		out[i] = m
	}
	return out
}

// ScrollOptions configures ScrollToBottom.
type ScrollOptions struct {
	Behavior Behavior
	// Manual marks an explicit user request; it ignores the anchor offset and unlocks.
	Manual bool
	// Force behaves like Manual for callers that are not the user.
	Force bool
}

func (o ScrollOptions) unlocks() bool {
	return o.Manual || o.Force
}

// UpdateOptions configures UpdateScrollState.
type UpdateOptions struct {
	FromUser     bool
	ManualUnlock bool
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs deferred callbacks on the host's event loop.
type Scheduler interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// NextFrame runs fn after the host has rendered the current state.
	NextFrame(fn func())
}

// Clock abstracts time for intent tracking.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemScheduler runs callbacks on timer goroutines. It suits hosts that
// serialize access to the controller themselves.
type SystemScheduler struct{}

// AfterFunc implements Scheduler.
func (SystemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NextFrame implements Scheduler. Without a paint signal it defers immediately.
func (SystemScheduler) NextFrame(fn func()) {
	time.AfterFunc(0, fn)
}
