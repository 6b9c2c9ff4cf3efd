package scroll_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/braindrive/docchat/internal/scroll"
	"github.com/braindrive/docchat/internal/scroll/scrolltest"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctl    *scroll.Controller
	clock  *scrolltest.Clock
	sched  *scrolltest.Scheduler
	states []scroll.State
}

func newHarness(t *testing.T, cfg scroll.Config) *harness {
	t.Helper()
	clock := scrolltest.NewClock()
	sched := scrolltest.NewScheduler(clock)
	h := &harness{
		clock: clock,
		sched: sched,
		ctl:   scroll.NewController(cfg, scroll.WithClock(clock), scroll.WithScheduler(sched)),
	}
	h.ctl.OnStateChange(func(s scroll.State) {
		h.states = append(h.states, s)
	})
	return h
}

func TestFarFromBottomBlocksAutoScroll(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	h.ctl.Attach(scrolltest.NewContainer(0, 1000, 500))

	require.False(t, h.ctl.IsNearBottom(), "500 lines from bottom is beyond the 420 anchor")
	require.False(t, h.ctl.CanAutoScrollNow())
}

func TestExactlyAtBottomIsNear(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	h.ctl.Attach(scrolltest.NewContainer(500, 1000, 500))

	require.True(t, h.ctl.IsNearBottom())
	require.True(t, h.ctl.CanAutoScrollNow())
}

func TestWheelAwayFromBottomLocks(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	h.ctl.Attach(scrolltest.NewContainer(0, 1000, 500))

	h.ctl.HandleUserScrollIntent(scroll.IntentWheel)
	h.ctl.UpdateScrollState(scroll.UpdateOptions{FromUser: true})

	require.Equal(t, scroll.State{
		IsNearBottom:       false,
		ShowScrollToBottom: true,
		IsAutoScrollLocked: true,
	}, h.ctl.State())
}

func TestAnchorCappedByShortLastMessage(t *testing.T) {
	cfg := scroll.DefaultConfig()
	cfg.AnchorOffset = 420
	cfg.MinVisibleLastMessageHeight = 64
	h := newHarness(t, cfg)

	c := scrolltest.NewContainer(0, 1000, 500)
	c.LastHeight = 100
	c.HasLast = true
	h.ctl.Attach(c)

	require.Equal(t, 36, h.ctl.EffectiveAnchorOffset())

	h.ctl.ScrollToBottom(scroll.ScrollOptions{})
	require.Len(t, c.Calls, 1)
	require.Equal(t, 464, c.Calls[0].Top)
}

func TestEffectiveAnchorOffset(t *testing.T) {
	tests := []struct {
		name       string
		anchor     int
		lastHeight int
		hasLast    bool
		streaming  bool
		want       int
	}{
		{name: "no element uses full offset", anchor: 420, want: 420},
		{name: "tall message keeps full offset", anchor: 100, lastHeight: 400, hasLast: true, want: 100},
		{name: "message shorter than min visible", anchor: 420, lastHeight: 40, hasLast: true, want: 0},
		{name: "zero anchor", anchor: 0, lastHeight: 400, hasLast: true, want: 0},
		{name: "streaming suppresses offset", anchor: 420, lastHeight: 400, hasLast: true, streaming: true, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scroll.DefaultConfig()
			cfg.AnchorOffset = tt.anchor
			h := newHarness(t, cfg)

			c := scrolltest.NewContainer(0, 2000, 500)
			c.LastHeight = tt.lastHeight
			c.HasLast = tt.hasLast
			h.ctl.Attach(c)
			h.ctl.SetMessages(scroll.Track([]scrolltest.Message{{}, {Streaming: tt.streaming}}))

			require.Equal(t, tt.want, h.ctl.EffectiveAnchorOffset())
		})
	}
}

func TestIdempotentStateEmission(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	// Content grew: one change, then nothing new.
	c.Height = 3000
	before := len(h.states)
	h.ctl.UpdateScrollState(scroll.UpdateOptions{})
	h.ctl.UpdateScrollState(scroll.UpdateOptions{})

	require.Equal(t, before+1, len(h.states), "second identical recompute must not notify")
}

func TestLockImpliesIndicator(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	c.OnScroll = h.ctl.HandleScroll
	h.ctl.Attach(c)

	check := func(s scroll.State) {
		if s.IsAutoScrollLocked {
			require.True(t, s.ShowScrollToBottom, "locked state must show the indicator: %+v", s)
		}
	}
	h.ctl.OnStateChange(check)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		switch rng.Intn(10) {
		case 0:
			h.ctl.HandleUserScrollIntent(scroll.IntentWheel)
		case 1:
			c.UserScrollTo(rng.Intn(c.Height - c.Client + 1))
		case 2:
			h.ctl.FollowStreamIfAllowed()
		case 3:
			h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
		case 4:
			h.ctl.HandleScrollToBottomClick()
		case 5:
			c.Height += rng.Intn(200)
			h.ctl.UpdateScrollState(scroll.UpdateOptions{})
		case 6:
			h.sched.Advance(time.Duration(rng.Intn(800)) * time.Millisecond)
		case 7:
			h.sched.Flush()
		case 8:
			h.ctl.UpdateScrollState(scroll.UpdateOptions{FromUser: rng.Intn(2) == 0})
		case 9:
			h.ctl.SetMessages(scroll.Track([]scrolltest.Message{{Streaming: rng.Intn(2) == 0}}))
		}
		check(h.ctl.State())
	}
}

func TestFailOpenWithoutContainer(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())

	require.True(t, h.ctl.IsNearBottom())
	require.True(t, h.ctl.IsNearBottomWithin(0))
	require.True(t, h.ctl.CanAutoScrollNow(), "absence of a container never blocks auto-scroll")

	requested := h.clock.Now()
	h.clock.Advance(time.Millisecond)
	h.ctl.HandleUserScrollIntent(scroll.IntentTouch)
	require.False(t, h.ctl.CanAutoScrollNow(), "lock still applies")

	h.ctl.HandleScrollToBottomClick()
	h.sched.Flush()
	require.False(t, h.ctl.State().IsAutoScrollLocked)
	require.False(t, h.ctl.CanAutoScroll(requested), "a request older than the last user scroll is stale")
	require.True(t, h.ctl.CanAutoScrollNow())

	require.NotPanics(t, func() {
		h.ctl.ScrollToBottom(scroll.ScrollOptions{})
		h.ctl.FollowStreamIfAllowed()
		h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
		h.sched.Advance(time.Second)
	})
}

func TestStreamingTargetsFullBottom(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(0, 1000, 500)
	c.LastHeight = 800
	c.HasLast = true
	h.ctl.Attach(c)
	h.ctl.SetMessages(scroll.Track([]scrolltest.Message{{}, {Streaming: true}}))

	h.ctl.ScrollToBottom(scroll.ScrollOptions{})

	require.Len(t, c.Calls, 1)
	require.Equal(t, 500, c.Calls[0].Top)
}

func TestDebounceCoalescing(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
	h.sched.Advance(10 * time.Millisecond)
	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
	h.sched.Advance(10 * time.Millisecond)
	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})

	require.Empty(t, c.Calls, "nothing fires inside the window")
	require.Equal(t, 1, h.sched.PendingTimers(), "only the latest request stays pending")

	h.sched.Advance(h.ctl.Config().DebounceDelay)
	require.Len(t, c.Calls, 1)
}

func TestDebounceRevalidatesAtFireTime(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
	// A large block of content arrives while the request waits.
	c.Height = 5000
	h.sched.Advance(time.Second)

	require.Empty(t, c.Calls, "no longer near the bottom when the timer fired")
	require.False(t, h.ctl.State().IsNearBottom, "state is still recomputed")
}

func TestUserIntentCancelsPendingDebounce(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
	h.ctl.HandleUserScrollIntent(scroll.IntentKey)
	require.Zero(t, h.sched.PendingTimers())

	h.sched.Advance(time.Second)
	require.Empty(t, c.Calls)
}

func TestManualUnlockAlwaysWins(t *testing.T) {
	for _, startLocked := range []bool{true, false} {
		h := newHarness(t, scroll.DefaultConfig())
		c := scrolltest.NewContainer(0, 1000, 500)
		c.OnScroll = h.ctl.HandleScroll
		h.ctl.Attach(c)
		if startLocked {
			h.ctl.HandleUserScrollIntent(scroll.IntentWheel)
			require.True(t, h.ctl.State().IsAutoScrollLocked)
		}

		h.ctl.HandleScrollToBottomClick()
		h.sched.Flush()

		require.False(t, h.ctl.State().IsAutoScrollLocked)
		require.Len(t, c.Calls, 1)
		require.Equal(t, scrolltest.ScrollCall{Top: 500, Behavior: scroll.BehaviorSmooth}, c.Calls[0])
		require.False(t, h.ctl.State().ShowScrollToBottom)
	}
}

func TestAutoUnlockAfterGracePeriod(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.HandleUserScrollIntent(scroll.IntentWheel)
	h.ctl.UpdateScrollState(scroll.UpdateOptions{})
	require.True(t, h.ctl.State().IsAutoScrollLocked, "recent intent keeps the lock")

	h.clock.Advance(h.ctl.Config().UserIntentGrace + time.Millisecond)
	h.ctl.UpdateScrollState(scroll.UpdateOptions{})
	require.Equal(t, scroll.State{IsNearBottom: true}, h.ctl.State())
}

func TestUserReturnToStrictBottomUnlocks(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	c.OnScroll = h.ctl.HandleScroll
	h.ctl.Attach(c)

	c.UserScrollTo(100)
	require.True(t, h.ctl.State().IsAutoScrollLocked)
	require.True(t, h.ctl.State().ShowScrollToBottom)

	// Close but not strictly at the bottom stays locked.
	c.UserScrollTo(490)
	require.True(t, h.ctl.State().IsAutoScrollLocked)

	c.UserScrollTo(500)
	require.Equal(t, scroll.State{IsNearBottom: true}, h.ctl.State())
}

func TestProgrammaticScrollIsNotUserIntent(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(480, 1000, 500)
	c.OnScroll = h.ctl.HandleScroll
	h.ctl.Attach(c)
	h.ctl.SetMessages(scroll.Track([]scrolltest.Message{{Streaming: true}}))

	h.ctl.FollowStreamIfAllowed()
	require.Len(t, c.Calls, 1)
	require.False(t, h.ctl.State().IsAutoScrollLocked)

	h.sched.Flush()
	require.Equal(t, scroll.State{IsNearBottom: true}, h.ctl.State())
	require.True(t, h.ctl.CanAutoScrollNow())
}

func TestFollowStreamRespectsLock(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.HandleUserScrollIntent(scroll.IntentWheel)
	c.Height = 1200
	h.ctl.FollowStreamIfAllowed()

	require.Empty(t, c.Calls)
	require.True(t, h.ctl.State().ShowScrollToBottom)
}

func TestTopSetterFallback(t *testing.T) {
	cfg := scroll.DefaultConfig()
	cfg.AnchorOffset = 0
	h := newHarness(t, cfg)
	c := &scrolltest.BareContainer{Top: 0, Height: 900, Client: 300}
	h.ctl.Attach(c)

	h.ctl.ScrollToBottom(scroll.ScrollOptions{})
	require.Equal(t, 600, c.Top)
}

func TestDetachRestoresPermissiveDefaults(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	h.ctl.Attach(scrolltest.NewContainer(0, 1000, 500))
	require.False(t, h.ctl.State().IsNearBottom)

	h.ctl.Detach()
	require.Equal(t, scroll.State{IsNearBottom: true}, h.ctl.State())
}

func TestCleanupIsIdempotent(t *testing.T) {
	h := newHarness(t, scroll.DefaultConfig())
	c := scrolltest.NewContainer(500, 1000, 500)
	h.ctl.Attach(c)

	h.ctl.DebouncedScrollToBottom(scroll.ScrollOptions{})
	h.ctl.Cleanup()
	h.ctl.Cleanup()

	h.sched.Advance(time.Second)
	require.Empty(t, c.Calls)
}

func TestNegativeConfigIsClamped(t *testing.T) {
	ctl := scroll.NewController(scroll.Config{AnchorOffset: -5, DebounceDelay: -time.Second})
	require.Zero(t, ctl.Config().AnchorOffset)
	require.Zero(t, ctl.Config().DebounceDelay)
}
