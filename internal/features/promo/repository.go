// Package promo — repository.go работает с promo_codes и promo_redemptions.
// Все методы, кроме Create, принимают Querier и вызываются внутри транзакции.
package promo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

const (
	constraintPromoCode      = "uq_promo_codes_code"
	constraintRedemptionOnce = "uq_promo_redemptions_account_code"
)

const promoColumns = `id, code, is_referral, free_credits_award, expires_at, max_uses, used_count, created_by_account_id, created_at`

// Repository работает с промокодами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий промокодов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPromo(row interface{ Scan(dest ...any) error }) (*PromoCode, error) {
	var p PromoCode
	err := row.Scan(
		&p.ID, &p.Code, &p.IsReferral, &p.FreeCreditsAward, &p.ExpiresAt,
		&p.MaxUses, &p.UsedCount, &p.CreatedByAccountID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockByCode находит код и блокирует строку до конца транзакции. nil — кода нет.
func (r *Repository) LockByCode(ctx context.Context, q postgres.Querier, code string) (*PromoCode, error) {
	p, err := scanPromo(q.QueryRow(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 FOR UPDATE`, code,
	))
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Unavailable("поиск промокода", err)
	}
	return p, nil
}

// GetByCode — то же без блокировки.
func (r *Repository) GetByCode(ctx context.Context, code string) (*PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code,
	))
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, common.Unavailable("поиск промокода", err)
	}
	return p, nil
}

// EnsureReferral создаёт реферальный код владельца, если его ещё нет.
// Повторный вызов ничего не меняет.
func (r *Repository) EnsureReferral(ctx context.Context, q postgres.Querier, code string, ownerID int64, award int) error {
	_, err := q.Exec(ctx, `
		INSERT INTO promo_codes (code, is_referral, free_credits_award, created_by_account_id)
		VALUES ($1, TRUE, $2, $3)
		ON CONFLICT (code) DO NOTHING
	`, code, award, ownerID)
	if err != nil {
		return common.Unavailable("создание реферального кода", err)
	}
	return nil
}

// Create добавляет промокод, созданный админом.
func (r *Repository) Create(ctx context.Context, c NewCode) (*PromoCode, error) {
	p, err := scanPromo(r.db.QueryRow(ctx, `
		INSERT INTO promo_codes (code, free_credits_award, max_uses, expires_at, created_by_account_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+promoColumns,
		c.Code, c.Award, c.MaxUses, c.ExpiresAt, c.CreatedBy,
	))
	if postgres.IsUniqueViolation(err, constraintPromoCode) {
		return nil, common.ErrPromoExists
	}
	if err != nil {
		return nil, common.Unavailable("создание промокода", err)
	}
	return p, nil
}

// HasRedeemed — аккаунт уже активировал этот код.
func (r *Repository) HasRedeemed(ctx context.Context, q postgres.Querier, accountID, promoID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM promo_redemptions WHERE account_id = $1 AND promo_code_id = $2)`,
		accountID, promoID,
	).Scan(&exists)
	if err != nil {
		return false, common.Unavailable("проверка активации", err)
	}
	return exists, nil
}

// InsertRedemption записывает активацию. Уникальность (account, code)
// держит ограничение, его нарушение означает повторную активацию.
func (r *Repository) InsertRedemption(ctx context.Context, q postgres.Querier, accountID, promoID int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO promo_redemptions (account_id, promo_code_id) VALUES ($1, $2)`,
		accountID, promoID,
	)
	if postgres.IsUniqueViolation(err, constraintRedemptionOnce) {
		return common.ErrPromoAlreadyRedeemed
	}
	if err != nil {
		return common.Unavailable("запись активации", err)
	}
	return nil
}

// IncrementUsage увеличивает used_count, если лимит не исчерпан.
func (r *Repository) IncrementUsage(ctx context.Context, q postgres.Querier, promoID int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE promo_codes SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)
	`, promoID)
	if err != nil {
		return common.Unavailable("учёт активации", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrPromoExhausted
	}
	return nil
}

// ListRecent — последние промокоды для админки.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*PromoCode, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE is_referral = FALSE ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, common.Unavailable("список промокодов", err)
	}
	defer rows.Close()

	var out []*PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, common.Unavailable("список промокодов", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
