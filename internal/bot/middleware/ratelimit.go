package middleware

import (
	"sync"
	"time"
)

// RateLimiter ограничивает количество запросов на пользователя
// скользящим окном. Это защита от флуда командами, а не лимит подписки.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[int64][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Close останавливает фоновую очистку. Вызывается на shutdown.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Allow регистрирует запрос и сообщает, укладывается ли он в лимит.
func (rl *RateLimiter) Allow(tgID int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := pruned(rl.requests[tgID], now.Add(-rl.window))

	if len(recent) >= rl.limit {
		rl.requests[tgID] = recent
		return false
	}
	rl.requests[tgID] = append(recent, now)
	return true
}

// pruned оставляет отметки позже cutoff. Отметки идут по возрастанию.
func pruned(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for tgID, times := range rl.requests {
		if recent := pruned(times, cutoff); len(recent) == 0 {
			delete(rl.requests, tgID)
		} else {
			rl.requests[tgID] = recent
		}
	}
}
