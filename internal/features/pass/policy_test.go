package pass

import (
	"testing"
	"time"
)

func TestLimitsCheck(t *testing.T) {
	limits := Limits{DayLimit: 25, MinInterval: 30 * time.Second}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name  string
		usage *Usage
		want  Verdict
	}{
		{"no usage yet", nil, Allowed},
		{"row from another day", &Usage{Day: yesterday, Used: 25, LastTS: now.Add(-time.Second)}, Allowed},
		{"interval passed", &Usage{Day: today, Used: 3, LastTS: now.Add(-31 * time.Second)}, Allowed},
		{"exactly at interval", &Usage{Day: today, Used: 3, LastTS: now.Add(-30 * time.Second)}, Allowed},
		{"too soon", &Usage{Day: today, Used: 3, LastTS: now.Add(-10 * time.Second)}, RateLimited},
		{"day limit reached", &Usage{Day: today, Used: 25, LastTS: now.Add(-time.Hour)}, DayLimitExceeded},
		{"rate checked before day", &Usage{Day: today, Used: 25, LastTS: now.Add(-time.Second)}, RateLimited},
		{"one below limit", &Usage{Day: today, Used: 24, LastTS: now.Add(-time.Minute)}, Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := limits.Check(tt.usage, now); got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimitsCheckZeroDayLimit(t *testing.T) {
	limits := Limits{DayLimit: 0, MinInterval: time.Second}
	if got := limits.Check(nil, time.Now()); got != DayLimitExceeded {
		t.Errorf("got %v", got)
	}
}

func TestPassActiveAt(t *testing.T) {
	expires := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)
	p := &Pass{ExpiresAt: expires}

	if !p.ActiveAt(expires.Add(-time.Hour)) {
		t.Error("pass must be active before expiry")
	}
	if !p.ActiveAt(expires) {
		t.Error("pass must be active exactly at expires_at")
	}
	if p.ActiveAt(expires.Add(time.Nanosecond)) {
		t.Error("pass must be inactive after expiry")
	}

	var none *Pass
	if none.ActiveAt(expires) {
		t.Error("nil pass is never active")
	}
}

func TestVerdictString(t *testing.T) {
	if Allowed.String() != "allowed" || RateLimited.String() != "rate_limited" || DayLimitExceeded.String() != "day_limit_exceeded" {
		t.Error("unexpected verdict names")
	}
}
