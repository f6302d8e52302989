package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow(1) || !rl.Allow(1) {
		t.Fatal("first two requests must pass")
	}
	if rl.Allow(1) {
		t.Error("third request within the window must be rejected")
	}
	if !rl.Allow(2) {
		t.Error("limits are per user")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow(1) {
		t.Error("window must slide")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	defer rl.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.Allow(1)
	rl.Allow(2)

	now = now.Add(2 * time.Minute)
	rl.Allow(2)
	rl.sweep()

	if _, ok := rl.requests[1]; ok {
		t.Error("idle user must be swept")
	}
	if got := len(rl.requests[2]); got != 1 {
		t.Errorf("active user keeps %d marks, want 1", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("привет", 10); got != "привет" {
		t.Errorf("short text changed: %q", got)
	}
	if got := truncate("приветствую", 6); got != "привет..." {
		t.Errorf("truncate must cut by runes: %q", got)
	}
}
