package gamesync

import "testing"

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{-5, "00:00"},
		{59, "00:59"},
		{60, "01:00"},
		{120, "02:00"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{7325, "2:02:05"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		clock   string
		want    int
		wantErr bool
	}{
		{"02:00", 120, false},
		{"00:59", 59, false},
		{"1:00:00", 3600, false},
		{"2:02:05", 7325, false},
		{"", 0, true},
		{"120", 0, true},
		{"aa:bb", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.clock)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q) expected error", tt.clock)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tt.clock, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.clock, got, tt.want)
		}
	}
}

func TestCountdownStartIsIdempotent(t *testing.T) {
	var c Countdown
	c.Reset(10)
	c.Start()
	c.Start() // re-entering the same phase must not double-start
	c.Tick()
	if got := c.Remaining(); got != 9 {
		t.Fatalf("remaining = %d, want 9 (double-start would tick twice)", got)
	}
}

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	var c Countdown
	c.Reset(3)
	c.Start()

	expiries := 0
	for i := 0; i < 10; i++ {
		if c.Tick() {
			expiries++
		}
	}
	if expiries != 1 {
		t.Fatalf("expiries = %d, want exactly 1", expiries)
	}
	if !c.Expired() || c.Running() || c.Remaining() != 0 {
		t.Fatalf("unexpected terminal state: %+v", c)
	}

	// An expired clock does not restart without a Reset.
	c.Start()
	if c.Running() {
		t.Fatal("expired clock restarted without reset")
	}
	c.Reset(2)
	c.Start()
	if !c.Running() {
		t.Fatal("reset clock failed to start")
	}
}

func TestCountdownStopHaltsTicks(t *testing.T) {
	var c Countdown
	c.Reset(5)
	c.Start()
	c.Tick()
	c.Stop()
	if c.Tick() {
		t.Fatal("tick after stop expired the clock")
	}
	if got := c.Remaining(); got != 4 {
		t.Fatalf("remaining = %d, want 4", got)
	}
}

func TestCountdownZeroDurationNeverStarts(t *testing.T) {
	var c Countdown
	c.Reset(0)
	c.Start()
	if c.Running() {
		t.Fatal("zero-duration clock started")
	}
}
