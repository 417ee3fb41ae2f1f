package gamesync

import (
	"fmt"
	"strconv"
	"strings"
)

// Countdown is a one-second-resolution countdown clock. It holds no
// goroutine of its own; the engine's event loop drives it via Tick so that
// every tick is evaluated against the game phase current at fire time.
type Countdown struct {
	remaining int
	running   bool
	expired   bool
}

// Reset sets the remaining time and clears the expired state. It does not
// start the clock.
func (c *Countdown) Reset(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.remaining = seconds
	c.expired = false
}

// Start begins counting down. Starting an already-running clock is a no-op,
// so re-entering the same phase never double-starts it. A clock with
// nothing remaining does not start.
func (c *Countdown) Start() {
	if c.running || c.expired || c.remaining <= 0 {
		return
	}
	c.running = true
}

// Stop halts the clock. Subsequent Ticks are no-ops until Start.
func (c *Countdown) Stop() {
	c.running = false
}

// Tick advances the clock by one second. It returns true exactly once, on
// the tick that exhausts the remaining time; after that the clock is
// stopped and expired, and further Ticks do nothing.
func (c *Countdown) Tick() bool {
	if !c.running {
		return false
	}
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.running = false
		c.expired = true
		return true
	}
	return false
}

// Remaining returns the remaining whole seconds.
func (c *Countdown) Remaining() int { return c.remaining }

// Running reports whether the clock is counting.
func (c *Countdown) Running() bool { return c.running }

// Expired reports whether the clock has reached zero.
func (c *Countdown) Expired() bool { return c.expired }

// Clock returns the remaining time as a display string.
func (c *Countdown) Clock() string { return FormatClock(c.remaining) }

// FormatClock renders whole seconds as "MM:SS" ("H:MM:SS" past an hour).
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// ParseClock parses "MM:SS" or "H:MM:SS" into whole seconds.
func ParseClock(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("malformed clock %q", clock)
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("malformed clock %q", clock)
		}
		total = total*60 + n
	}
	return total, nil
}
