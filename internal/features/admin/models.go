// Package admin — админ-команды бота с парольной аутентификацией.
// models.go описывает сессии и попытки входа.
package admin

import "time"

const (
	// После MaxFailedAttempts неудачных попыток за LockoutPeriod вход блокируется
	MaxFailedAttempts = 3
	LockoutPeriod     = time.Hour
	SessionTTL        = 24 * time.Hour
)

// Session — активная сессия администратора.
type Session struct {
	ID              int64     `db:"id"`
	TgID            int64     `db:"tg_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	TgID        int64     `db:"tg_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}
