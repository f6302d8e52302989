// Package purchases — repository.go работает с таблицей purchases.
package purchases

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

const (
	// MaxListLimit — больше покупок за раз админке не отдаём
	MaxListLimit     = 50
	DefaultListLimit = 10
)

const purchaseColumns = `id, account_id, tg_id, kind, units, amount, currency, payload, provider,
	provider_charge_id, status, meta, created_at, credited_at`

// Repository работает с покупками.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий покупок.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPurchase(row interface{ Scan(dest ...any) error }) (*Purchase, error) {
	var p Purchase
	err := row.Scan(
		&p.ID, &p.AccountID, &p.TgID, &p.Kind, &p.Units, &p.Amount, &p.Currency, &p.Payload,
		&p.Provider, &p.ProviderChargeID, &p.Status, &p.Meta, &p.CreatedAt, &p.CreditedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create сохраняет покупку. Если provider_charge_id уже есть,
// возвращает ErrDuplicateCharge и ничего не пишет.
func (r *Repository) Create(ctx context.Context, np NewPurchase) (int64, error) {
	status := np.Status
	if status == "" {
		status = StatusPaid
	}
	meta := np.Meta
	if meta == nil {
		meta = ledger.Meta{}
	}

	query := `
		INSERT INTO purchases (account_id, tg_id, kind, units, amount, currency, payload, provider, provider_charge_id, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (provider_charge_id) DO NOTHING
		RETURNING id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		np.AccountID, np.TgID, string(np.Item.Kind), np.Item.Units, np.Item.Amount,
		np.Currency, np.Payload, np.Provider, np.ProviderChargeID, string(status), meta,
	).Scan(&id)
	if postgres.IsNoRows(err) {
		return 0, common.ErrDuplicateCharge
	}
	if err != nil {
		return 0, common.Unavailable("создание покупки", err)
	}
	return id, nil
}

// MarkCredited переводит покупку в credited. true — строка действительно
// изменилась, и только в этом случае вызывающий начисляет единицы.
func (r *Repository) MarkCredited(ctx context.Context, q postgres.Querier, purchaseID int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE purchases SET status = 'credited', credited_at = NOW()
		WHERE id = $1 AND status IN ('paid', 'failed')
	`, purchaseID)
	if err != nil {
		return false, common.Unavailable("отметка начисления", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed помечает оплаченную покупку как failed с причиной в meta.
func (r *Repository) MarkFailed(ctx context.Context, purchaseID int64, reason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE purchases SET status = 'failed', meta = meta || jsonb_build_object('error', $2::text)
		WHERE id = $1 AND status = 'paid'
	`, purchaseID, reason)
	if err != nil {
		return common.Unavailable("отметка ошибки покупки", err)
	}
	return nil
}

// GetByID возвращает покупку по ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Purchase, error) {
	p, err := scanPurchase(r.db.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if postgres.IsNoRows(err) {
		return nil, common.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, common.Unavailable("получение покупки", err)
	}
	return p, nil
}

// GetByCharge ищет покупку по provider_charge_id.
func (r *Repository) GetByCharge(ctx context.Context, chargeID string) (*Purchase, error) {
	p, err := scanPurchase(r.db.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE provider_charge_id = $1`, chargeID,
	))
	if postgres.IsNoRows(err) {
		return nil, common.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, common.Unavailable("поиск покупки", err)
	}
	return p, nil
}

// ClampLimit приводит лимит списка к 1..MaxListLimit.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListUncredited — последние незачисленные покупки, новые сверху.
// Если olderThan не нулевое, берутся только покупки старше этого момента.
func (r *Repository) ListUncredited(ctx context.Context, limit int, olderThan time.Time) ([]*Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE status <> 'credited'
		  AND ($2::timestamptz IS NULL OR created_at < $2::timestamptz)
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	var cutoff *time.Time
	if !olderThan.IsZero() {
		cutoff = &olderThan
	}

	rows, err := r.db.Query(ctx, query, ClampLimit(limit), cutoff)
	if err != nil {
		return nil, common.Unavailable("список незачисленных покупок", err)
	}
	defer rows.Close()

	var out []*Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, common.Unavailable("список незачисленных покупок", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
