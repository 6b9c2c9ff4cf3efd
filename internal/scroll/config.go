package scroll

import "time"

// Config holds the immutable tuning of a Controller.
// Distances share the unit of the Container (pixels in a browser, lines in a terminal).
type Config struct {
	// AnchorOffset is the gap kept visible above the live edge. Zero disables it.
	AnchorOffset int
	// MinVisibleLastMessageHeight caps the anchor so a short last message stays on screen.
	MinVisibleLastMessageHeight int
	// NearBottomEpsilon is the smallest "near bottom" threshold.
	NearBottomEpsilon int
	// StrictBottomEpsilon detects a deliberate return to the true bottom.
	StrictBottomEpsilon int
	// UserIntentGrace blocks auto-unlock for this long after a user scroll.
	UserIntentGrace time.Duration
	// DebounceDelay delays DebouncedScrollToBottom.
	DebounceDelay time.Duration
}

// DefaultConfig returns pixel-based defaults.
func DefaultConfig() Config {
	return Config{
		AnchorOffset:                420,
		MinVisibleLastMessageHeight: 64,
		NearBottomEpsilon:           24,
		StrictBottomEpsilon:         4,
		UserIntentGrace:             600 * time.Millisecond,
		DebounceDelay:               50 * time.Millisecond,
	}
}

// TerminalConfig returns line-based defaults for a terminal transcript.
func TerminalConfig() Config {
	return Config{
		AnchorOffset:                4,
		MinVisibleLastMessageHeight: 2,
		NearBottomEpsilon:           1,
		StrictBottomEpsilon:         0,
		UserIntentGrace:             600 * time.Millisecond,
		DebounceDelay:               30 * time.Millisecond,
	}
}

// normalized clamps negative values to zero.
func (c Config) normalized() Config {
	clampInt := func(v int) int {
		if v < 0 {
			return 0
		}
		return v
	}
	clampDur := func(v time.Duration) time.Duration {
		if v < 0 {
			return 0
		}
		return v
	}
	c.AnchorOffset = clampInt(c.AnchorOffset)
	c.MinVisibleLastMessageHeight = clampInt(c.MinVisibleLastMessageHeight)
	c.NearBottomEpsilon = clampInt(c.NearBottomEpsilon)
	c.StrictBottomEpsilon = clampInt(c.StrictBottomEpsilon)
	c.UserIntentGrace = clampDur(c.UserIntentGrace)
	c.DebounceDelay = clampDur(c.DebounceDelay)
	return c
}
