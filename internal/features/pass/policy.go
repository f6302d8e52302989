package pass

import (
	"time"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
)

// Verdict — результат проверки fair-use лимитов.
type Verdict int

const (
	// Allowed — использование разрешено и засчитано
	Allowed Verdict = iota
	// RateLimited — с прошлого использования прошло меньше минимального интервала
	RateLimited
	// DayLimitExceeded — дневной лимит исчерпан
	DayLimitExceeded
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RateLimited:
		return "rate_limited"
	case DayLimitExceeded:
		return "day_limit_exceeded"
	default:
		return "unknown"
	}
}

// Limits — fair-use политика подписки.
type Limits struct {
	DayLimit    int
	MinInterval time.Duration
}

// LimitsFrom берёт лимиты из политики начислений.
func LimitsFrom(b config.Billing) Limits {
	return Limits{
		DayLimit:    b.PassDayLimit,
		MinInterval: b.PassMinInterval(),
	}
}

// Check решает, можно ли засчитать использование в момент now.
// usage — строка за сегодняшний UTC-день или nil. Сначала проверяется
// интервал, затем дневной лимит. Функция ничего не меняет.
func (l Limits) Check(usage *Usage, now time.Time) Verdict {
	if usage == nil || !usage.Day.Equal(common.UTCDay(now)) {
		if l.DayLimit <= 0 {
			return DayLimitExceeded
		}
		return Allowed
	}
	if now.Sub(usage.LastTS) < l.MinInterval {
		return RateLimited
	}
	if usage.Used >= l.DayLimit {
		return DayLimitExceeded
	}
	return Allowed
}
