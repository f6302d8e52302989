// Package pass — repository.go работает с таблицами subscription_passes и pass_usage.
package pass

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

// Repository работает с подписками и счётчиками.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий подписок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetPass возвращает подписку аккаунта (в том числе истёкшую) или nil.
func (r *Repository) GetPass(ctx context.Context, accountID int64) (*Pass, error) {
	query := `
		SELECT id, account_id, plan, expires_at, notified_expires_at, created_at, updated_at
		FROM subscription_passes
		WHERE account_id = $1
	`
	var p Pass
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&p.ID, &p.AccountID, &p.Plan, &p.ExpiresAt, &p.NotifiedExpiresAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Unavailable("получение подписки", err)
	}
	return &p, nil
}

// ExtendTx создаёт подписку или продлевает существующую на duration,
// считая от max(now, expires_at). Возвращает новую дату окончания.
func (r *Repository) ExtendTx(ctx context.Context, q postgres.Querier, accountID int64, plan string, duration time.Duration, now time.Time) (time.Time, error) {
	query := `
		INSERT INTO subscription_passes (account_id, plan, expires_at)
		VALUES ($1, $2, $3::timestamptz + $4::bigint * INTERVAL '1 second')
		ON CONFLICT (account_id) DO UPDATE
		SET plan = EXCLUDED.plan,
		    expires_at = GREATEST(subscription_passes.expires_at, $3::timestamptz) + $4::bigint * INTERVAL '1 second',
		    updated_at = NOW()
		RETURNING expires_at
	`
	var expiresAt time.Time
	err := q.QueryRow(ctx, query, accountID, plan, now, int64(duration/time.Second)).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, common.Unavailable("продление подписки", err)
	}
	return expiresAt, nil
}

// Consume атомарно засчитывает использование за день, если лимиты позволяют:
// upsert с условием в DO UPDATE. Возвращает false, если строка не изменилась.
func (r *Repository) Consume(ctx context.Context, accountID int64, day, now time.Time, limits Limits) (bool, error) {
	query := `
		INSERT INTO pass_usage (account_id, day, used, last_ts)
		SELECT $1::bigint, $2::date, 1, $3::timestamptz
		WHERE $4::int > 0
		ON CONFLICT (account_id, day) DO UPDATE
		SET used = pass_usage.used + 1, last_ts = EXCLUDED.last_ts
		WHERE pass_usage.used < $4::int AND pass_usage.last_ts <= $5::timestamptz
		RETURNING used
	`
	cutoff := now.Add(-limits.MinInterval)
	var used int
	err := r.db.QueryRow(ctx, query, accountID, day, now, limits.DayLimit, cutoff).Scan(&used)
	if postgres.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, common.Unavailable("учёт использования подписки", err)
	}
	return true, nil
}

// GetUsage возвращает счётчик за день или nil.
func (r *Repository) GetUsage(ctx context.Context, accountID int64, day time.Time) (*Usage, error) {
	query := `SELECT account_id, day, used, last_ts FROM pass_usage WHERE account_id = $1 AND day = $2::date`
	var u Usage
	err := r.db.QueryRow(ctx, query, accountID, day).Scan(&u.AccountID, &u.Day, &u.Used, &u.LastTS)
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Unavailable("получение счётчика подписки", err)
	}
	return &u, nil
}

// ListExpiring возвращает подписки, истекающие в (from, to], о которых ещё не напоминали.
func (r *Repository) ListExpiring(ctx context.Context, from, to time.Time) ([]*Expiring, error) {
	query := `
		SELECT p.id, p.account_id, a.tg_id, p.expires_at
		FROM subscription_passes p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.expires_at > $1 AND p.expires_at <= $2
		  AND p.notified_expires_at IS DISTINCT FROM p.expires_at
		ORDER BY p.expires_at
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, common.Unavailable("поиск истекающих подписок", err)
	}
	defer rows.Close()

	var out []*Expiring
	for rows.Next() {
		var e Expiring
		if err := rows.Scan(&e.PassID, &e.AccountID, &e.TgID, &e.ExpiresAt); err != nil {
			return nil, common.Unavailable("поиск истекающих подписок", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkNotified запоминает, о какой дате окончания уже напомнили.
func (r *Repository) MarkNotified(ctx context.Context, passID int64, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE subscription_passes SET notified_expires_at = $2 WHERE id = $1`,
		passID, expiresAt,
	)
	if err != nil {
		return common.Unavailable("отметка напоминания", err)
	}
	return nil
}
