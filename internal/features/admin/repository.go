// Package admin — repository.go работает с таблицами admin_sessions и admin_login_attempts.
package admin

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

// Repository работает с админ-таблицами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateSession закрывает прежние сессии и открывает новую.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	query := `
		WITH closed AS (
			UPDATE admin_sessions SET is_active = FALSE WHERE tg_id = $1 AND is_active = TRUE
		)
		INSERT INTO admin_sessions (tg_id, session_token, expires_at, is_active)
		VALUES ($1, $2, $3, TRUE)
	`
	if _, err := r.db.Exec(ctx, query, s.TgID, s.SessionToken, s.ExpiresAt); err != nil {
		return common.Unavailable("создание сессии", err)
	}
	return nil
}

// GetActiveSession возвращает действующую сессию или nil.
func (r *Repository) GetActiveSession(ctx context.Context, tgID int64) (*Session, error) {
	query := `
		SELECT id, tg_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE tg_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY authenticated_at DESC
		LIMIT 1
	`
	var s Session
	err := r.db.QueryRow(ctx, query, tgID).Scan(
		&s.ID, &s.TgID, &s.SessionToken, &s.AuthenticatedAt,
		&s.ExpiresAt, &s.LastActivity, &s.IsActive,
	)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Unavailable("получение сессии", err)
	}
	return &s, nil
}

// DeactivateSession закрывает все сессии админа.
func (r *Repository) DeactivateSession(ctx context.Context, tgID int64) error {
	if _, err := r.db.Exec(ctx, `UPDATE admin_sessions SET is_active = FALSE WHERE tg_id = $1`, tgID); err != nil {
		return common.Unavailable("закрытие сессии", err)
	}
	return nil
}

// UpdateActivity обновляет время последней активности.
func (r *Repository) UpdateActivity(ctx context.Context, tgID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE admin_sessions SET last_activity = NOW() WHERE tg_id = $1 AND is_active = TRUE`, tgID,
	)
	return err
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, tgID int64, success bool) error {
	_, err := r.db.Exec(ctx, `INSERT INTO admin_login_attempts (tg_id, success) VALUES ($1, $2)`, tgID, success)
	return err
}

// CountFailedSince — число неудачных попыток начиная с since.
func (r *Repository) CountFailedSince(ctx context.Context, tgID int64, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE tg_id = $1 AND success = FALSE AND attempt_time >= $2
	`, tgID, since).Scan(&count)
	if err != nil {
		return 0, common.Unavailable("подсчёт попыток входа", err)
	}
	return count, nil
}
