package scroll

import (
	"time"

	"github.com/braindrive/docchat/internal/logger"
)

// Controller tracks auto-follow permission for one scrolling transcript.
type Controller struct {
	cfg   Config
	clock Clock
	sched Scheduler
	log   *logger.Logger

	container Container
	messages  []TrackedMessage

	state    State
	onChange func(State)

	// programmatic counts scrolls issued by the controller that have not settled yet.
	programmatic int

	// lastIntentAt drives the auto-unlock grace period and is cleared on unlock.
	lastIntentAt time.Time
	// lastScrollAt is never cleared; it invalidates auto-scroll requests issued before it.
	lastScrollAt time.Time

	debounce    Timer
	debounceSeq uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithScheduler overrides how deferred callbacks are run.
func WithScheduler(s Scheduler) Option {
	return func(ctl *Controller) { ctl.sched = s }
}

// WithLogger overrides the logger.
func WithLogger(l *logger.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

// NewController creates a detached controller.
func NewController(cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:   cfg.normalized(),
		clock: systemClock{},
		sched: SystemScheduler{},
		log:   logger.Named("scroll"),
		state: State{IsNearBottom: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns the last emitted state.
func (c *Controller) State() State {
	return c.state
}

// OnStateChange registers the single state subscriber, replacing any previous one.
func (c *Controller) OnStateChange(fn func(State)) {
	c.onChange = fn
}

// Attach binds the scrollable container and recomputes state.
func (c *Controller) Attach(container Container) {
	c.container = container
	c.UpdateScrollState(UpdateOptions{})
}

// Detach unbinds the container. Position checks become permissive.
func (c *Controller) Detach() {
	c.container = nil
	c.UpdateScrollState(UpdateOptions{})
}

// SetMessages updates the list used to compute the anchor offset.
func (c *Controller) SetMessages(list []TrackedMessage) {
	c.messages = list
}

// distanceFromBottom returns the remaining scrollable distance, or false when detached.
func (c *Controller) distanceFromBottom() (int, bool) {
	if c.container == nil {
		return 0, false
	}
	return c.container.ScrollHeight() - (c.container.ScrollTop() + c.container.ClientHeight()), true
}

// IsNearBottom reports whether the viewport is within the dynamic anchor offset of the bottom.
func (c *Controller) IsNearBottom() bool {
	return c.IsNearBottomWithin(c.EffectiveAnchorOffset())
}

// IsNearBottomWithin is IsNearBottom with an explicit threshold.
// The threshold never drops below NearBottomEpsilon.
func (c *Controller) IsNearBottomWithin(threshold int) bool {
	distance, ok := c.distanceFromBottom()
	if !ok {
		return true
	}
	return distance <= max(threshold, c.cfg.NearBottomEpsilon)
}

func (c *Controller) isAtStrictBottom() bool {
	distance, ok := c.distanceFromBottom()
	if !ok {
		return true
	}
	return distance <= c.cfg.StrictBottomEpsilon
}

// CanAutoScroll reports whether an auto-scroll requested at requestedAt may run.
// It refuses while locked and when the user scrolled after the request was made.
func (c *Controller) CanAutoScroll(requestedAt time.Time) bool {
	if c.state.IsAutoScrollLocked {
		return false
	}
	if !c.lastScrollAt.IsZero() && c.lastScrollAt.After(requestedAt) {
		return false
	}
	return c.IsNearBottom()
}

// CanAutoScrollNow is CanAutoScroll for a request issued now.
func (c *Controller) CanAutoScrollNow() bool {
	return c.CanAutoScroll(c.clock.Now())
}

// EffectiveAnchorOffset returns the gap to keep above the live edge.
// It is zero while the last message streams and never hides a short last message.
func (c *Controller) EffectiveAnchorOffset() int {
	if n := len(c.messages); n > 0 && c.messages[n-1] != nil && c.messages[n-1].IsStreaming() {
		return 0
	}
	offset := c.cfg.AnchorOffset
	if offset == 0 {
		return 0
	}
	if m, ok := c.container.(LastMessageMeasurer); ok {
		if height, found := m.LastMessageHeight(); found {
			offset = min(offset, max(height-c.cfg.MinVisibleLastMessageHeight, 0))
		}
	}
	return offset
}

// HandleUserScrollIntent records a deliberate scroll gesture and locks auto-follow.
func (c *Controller) HandleUserScrollIntent(source IntentSource) {
	now := c.clock.Now()
	c.lastIntentAt = now
	c.lastScrollAt = now
	c.cancelDebounce()

	if c.state.IsAutoScrollLocked && c.state.ShowScrollToBottom {
		return
	}
	c.log.Debug("user scroll intent (%s): locking auto-follow", source)
	c.commit(State{
		IsNearBottom:       c.state.IsNearBottom,
		ShowScrollToBottom: true,
		IsAutoScrollLocked: true,
	})
}

// HandleScroll processes a native scroll event from the container.
func (c *Controller) HandleScroll() {
	if c.programmatic > 0 {
		c.UpdateScrollState(UpdateOptions{})
		return
	}
	c.HandleUserScrollIntent(IntentScroll)
	c.UpdateScrollState(UpdateOptions{FromUser: true})
}

// UpdateScrollState recomputes the state from the current metrics and emits it if it changed.
func (c *Controller) UpdateScrollState(opts UpdateOptions) {
	nearBottom := c.IsNearBottom()
	atStrictBottom := c.isAtStrictBottom()
	locked := c.state.IsAutoScrollLocked

	switch {
	case opts.ManualUnlock:
		if locked {
			c.lastIntentAt = time.Time{}
		}
		locked = false
	case opts.FromUser && atStrictBottom:
		locked = false
		c.lastIntentAt = time.Time{}
	case opts.FromUser:
		locked = true
	case locked && atStrictBottom && !c.intentWithinGrace():
		c.log.Debug("back at bottom with no recent intent: unlocking")
		locked = false
	}

	c.commit(State{
		IsNearBottom:       nearBottom,
		ShowScrollToBottom: locked || !atStrictBottom,
		IsAutoScrollLocked: locked,
	})
}

func (c *Controller) intentWithinGrace() bool {
	if c.lastIntentAt.IsZero() {
		return false
	}
	return c.clock.Now().Sub(c.lastIntentAt) < c.cfg.UserIntentGrace
}

// ScrollToBottom moves the viewport to the live edge, minus the anchor offset
// unless the request is manual or forced. State is finalized on the next frame.
func (c *Controller) ScrollToBottom(opts ScrollOptions) {
	if c.container != nil {
		offset := 0
		if !opts.unlocks() {
			offset = c.EffectiveAnchorOffset()
		}
		target := max(c.container.ScrollHeight()-c.container.ClientHeight()-offset, 0)

		c.programmatic++
		c.scrollTo(target, opts.Behavior)
	} else {
		// Nothing to move, but a pending settle keeps the accounting uniform.
		c.programmatic++
	}

	c.sched.NextFrame(func() {
		if c.programmatic > 0 {
			c.programmatic--
		}
		if opts.unlocks() {
			c.UpdateScrollState(UpdateOptions{ManualUnlock: true})
			return
		}
		c.UpdateScrollState(UpdateOptions{})
	})
}

func (c *Controller) scrollTo(top int, behavior Behavior) {
	switch target := c.container.(type) {
	case Scroller:
		target.ScrollTo(top, behavior)
	case TopSetter:
		target.SetScrollTop(top)
	default:
		c.log.Debug("container cannot scroll; skipping")
	}
}

// DebouncedScrollToBottom schedules ScrollToBottom after DebounceDelay,
// replacing any pending request. Permission is checked again when it fires.
func (c *Controller) DebouncedScrollToBottom(opts ScrollOptions) {
	requestedAt := c.clock.Now()
	c.cancelDebounce()

	seq := c.debounceSeq
	c.debounce = c.sched.AfterFunc(c.cfg.DebounceDelay, func() {
		if seq != c.debounceSeq {
			return
		}
		c.debounce = nil
		if !c.CanAutoScroll(requestedAt) {
			c.UpdateScrollState(UpdateOptions{})
			return
		}
		c.ScrollToBottom(opts)
	})
}

// FollowStreamIfAllowed scrolls immediately when auto-follow is permitted.
func (c *Controller) FollowStreamIfAllowed() {
	if c.CanAutoScrollNow() {
		c.ScrollToBottom(ScrollOptions{Behavior: BehaviorAuto})
		return
	}
	c.UpdateScrollState(UpdateOptions{})
}

// HandleScrollToBottomClick jumps to the bottom and unlocks, whatever the lock state.
func (c *Controller) HandleScrollToBottomClick() {
	c.ScrollToBottom(ScrollOptions{Behavior: BehaviorSmooth, Manual: true, Force: true})
}

// Cleanup cancels any pending debounced scroll. It is safe to call repeatedly.
func (c *Controller) Cleanup() {
	c.cancelDebounce()
}

func (c *Controller) cancelDebounce() {
	// Bumping the sequence also voids callbacks already queued on the host loop.
	c.debounceSeq++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Controller) commit(next State) {
	if next == c.state {
		return
	}
	c.state = next
	if c.onChange != nil {
		c.onChange(next)
	}
}
