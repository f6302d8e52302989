package common

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPluralizeMessages(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "сообщений"},
		{1, "сообщение"},
		{2, "сообщения"},
		{4, "сообщения"},
		{5, "сообщений"},
		{11, "сообщений"},
		{12, "сообщений"},
		{21, "сообщение"},
		{22, "сообщения"},
		{111, "сообщений"},
		{-1, "сообщение"},
	}
	for _, tt := range tests {
		if got := PluralizeMessages(tt.n); got != tt.want {
			t.Errorf("PluralizeMessages(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPluralizeAdvices(t *testing.T) {
	if got := FormatAdvices(3); got != "3 совета" {
		t.Errorf("got %q", got)
	}
	if got := FormatAdvices(5); got != "5 советов" {
		t.Errorf("got %q", got)
	}
	if got := FormatAdvices(1); got != "1 совет" {
		t.Errorf("got %q", got)
	}
}

func TestFormatRubles(t *testing.T) {
	if got := FormatRubles(29900); got != "299₽" {
		t.Errorf("got %q", got)
	}
	if got := FormatRubles(9950); got != "99.50₽" {
		t.Errorf("got %q", got)
	}
}

func TestUTCDay(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// 01:30 по Москве 2 мая — это ещё 1 мая по UTC
	ts := time.Date(2025, 5, 2, 1, 30, 0, 0, msk)
	want := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if got := UTCDay(ts); !got.Equal(want) {
		t.Errorf("UTCDay = %v, want %v", got, want)
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("spend credit", cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Error("expected ErrUnavailable in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("expected original cause in chain")
	}
	if Unavailable("noop", nil) != nil {
		t.Error("nil error must stay nil")
	}
}

func TestRetryOnce(t *testing.T) {
	RetryBackoff = time.Millisecond

	t.Run("retries unavailable once", func(t *testing.T) {
		calls := 0
		got, err := RetryOnce(context.Background(), "test", func(ctx context.Context) (int, error) {
			calls++
			if calls == 1 {
				return 0, Unavailable("first", errors.New("boom"))
			}
			return 7, nil
		})
		if err != nil || got != 7 || calls != 2 {
			t.Errorf("got %d, %v after %d calls", got, err, calls)
		}
	})

	t.Run("does not retry business rejection", func(t *testing.T) {
		calls := 0
		_, err := RetryOnce(context.Background(), "test", func(ctx context.Context) (int, error) {
			calls++
			return 0, ErrPromoExpired
		})
		if !errors.Is(err, ErrPromoExpired) || calls != 1 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})

	t.Run("gives up after second failure", func(t *testing.T) {
		calls := 0
		_, err := RetryOnce(context.Background(), "test", func(ctx context.Context) (int, error) {
			calls++
			return 0, Unavailable("always", errors.New("down"))
		})
		if !IsUnavailable(err) || calls != 2 {
			t.Errorf("err = %v, calls = %d", err, calls)
		}
	})
}
