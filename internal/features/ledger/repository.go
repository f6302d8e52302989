// Package ledger — repository.go выполняет все операции с таблицами accounts и transactions.
// Каждое изменение баланса — один SQL-запрос: условный UPDATE и INSERT в журнал
// связаны через CTE, поэтому они либо оба применяются, либо ни один.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

const maxInviteAttempts = 8

const accountColumns = `id, tg_id, username, credits, advice_credits, invite_code,
	referred_by_account_id, created_at, updated_at`

// Repository предоставляет методы для работы с аккаунтами и журналом.
type Repository struct {
	db *pgxpool.Pool
	// newCode подменяется в тестах для проверки коллизий инвайт-кодов
	newCode func() (string, error)
}

// NewRepository создаёт новый репозиторий леджера.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, newCode: NewInviteCode}
}

// DB возвращает пул: сервисы промокодов и покупок открывают на нём свои транзакции.
func (r *Repository) DB() *pgxpool.Pool {
	return r.db
}

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.TgID, &a.Username, &a.Credits, &a.AdviceCredits, &a.InviteCode,
		&a.ReferredByAccountID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetOrCreateAccount возвращает аккаунт по tg_id, создавая его при первом обращении.
// Новый аккаунт получает инвайт-код и welcome-бонус; бонус пишется в журнал
// тем же запросом, что и сам аккаунт. Если username изменился — обновляет его.
func (r *Repository) GetOrCreateAccount(ctx context.Context, tgID int64, username string, welcome int) (*Account, bool, error) {
	for attempt := 0; attempt < maxInviteAttempts; attempt++ {
		acc, err := r.GetByTgID(ctx, tgID)
		if err == nil {
			if username != "" && (acc.Username == nil || *acc.Username != username) {
				if err := r.updateUsername(ctx, acc.ID, username); err != nil {
					return nil, false, err
				}
				acc.Username = &username
			}
			return acc, false, nil
		}
		if !errors.Is(err, common.ErrAccountNotFound) {
			return nil, false, err
		}

		code, err := r.newCode()
		if err != nil {
			return nil, false, err
		}

		acc, err = r.insertAccount(ctx, tgID, username, code, welcome)
		switch {
		case err == nil && acc != nil:
			return acc, true, nil
		case err == nil:
			// Параллельный запрос создал аккаунт раньше нас: перечитываем
			continue
		case postgres.IsUniqueViolation(err, "uq_accounts_invite_code"):
			continue
		default:
			return nil, false, common.Unavailable("создание аккаунта", err)
		}
	}
	return nil, false, fmt.Errorf("не удалось подобрать свободный инвайт-код за %d попыток", maxInviteAttempts)
}

// insertAccount вставляет аккаунт и welcome-транзакцию одним запросом.
// Возвращает nil без ошибки, если аккаунт с таким tg_id уже существует.
func (r *Repository) insertAccount(ctx context.Context, tgID int64, username, code string, welcome int) (*Account, error) {
	query := `
		WITH created AS (
			INSERT INTO accounts (tg_id, username, credits, invite_code)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tg_id) DO NOTHING
			RETURNING ` + accountColumns + `
		), welcome AS (
			INSERT INTO transactions (account_id, type, unit, amount, status, reason, meta)
			SELECT id, 'grant', 'credit', $3, 'success', $5::varchar, $6::jsonb FROM created WHERE $3 > 0
		)
		SELECT ` + accountColumns + ` FROM created
	`
	acc, err := scanAccount(r.db.QueryRow(ctx, query,
		tgID, nullIfEmpty(username), welcome, code, ReasonWelcomeBonus, Meta{"tg_id": tgID},
	))
	if postgres.IsNoRows(err) {
		return nil, nil
	}
	return acc, err
}

func (r *Repository) updateUsername(ctx context.Context, accountID int64, username string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE accounts SET username = $2, updated_at = NOW() WHERE id = $1`,
		accountID, username,
	)
	if err != nil {
		return common.Unavailable("обновление username", err)
	}
	return nil
}

// GetByTgID возвращает аккаунт по Telegram ID.
func (r *Repository) GetByTgID(ctx context.Context, tgID int64) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE tg_id = $1`, tgID,
	))
	if postgres.IsNoRows(err) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Unavailable("получение аккаунта", err)
	}
	return acc, nil
}

// GetByID возвращает аккаунт по внутреннему ID.
func (r *Repository) GetByID(ctx context.Context, accountID int64) (*Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID,
	))
	if postgres.IsNoRows(err) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Unavailable("получение аккаунта", err)
	}
	return acc, nil
}

// GetByInviteCode ищет аккаунт по инвайт-коду. Код должен быть уже нормализован.
func (r *Repository) GetByInviteCode(ctx context.Context, q postgres.Querier, code string) (*Account, error) {
	acc, err := scanAccount(q.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE invite_code = $1`, code,
	))
	if postgres.IsNoRows(err) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Unavailable("поиск по инвайт-коду", err)
	}
	return acc, nil
}

// SetReferrer проставляет пригласившего, если он ещё не задан.
func (r *Repository) SetReferrer(ctx context.Context, q postgres.Querier, accountID, referrerID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE accounts SET referred_by_account_id = $2, updated_at = NOW()
		WHERE id = $1 AND referred_by_account_id IS NULL AND id <> $2
	`, accountID, referrerID)
	if err != nil {
		return common.Unavailable("запись пригласившего", err)
	}
	return nil
}

// LockAccounts блокирует строки аккаунтов до конца транзакции q в порядке id.
// Операции, которые меняют несколько балансов, вызывают её первой,
// иначе встречные транзакции ловят deadlock.
func (r *Repository) LockAccounts(ctx context.Context, q postgres.Querier, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR NO KEY UPDATE`, ids,
	)
	if err != nil {
		return common.Unavailable("блокировка аккаунтов", err)
	}
	return nil
}

func balanceColumn(unit Unit) string {
	if unit == UnitAdvice {
		return "advice_credits"
	}
	return "credits"
}

// GrantTx начисляет amount единиц и пишет grant-транзакцию.
// q — пул или открытая транзакция вызывающего.
func (r *Repository) GrantTx(ctx context.Context, q postgres.Querier, accountID int64, unit Unit, amount int, reason string, meta Meta) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if meta == nil {
		meta = Meta{}
	}
	col := balanceColumn(unit)
	query := fmt.Sprintf(`
		WITH credited AS (
			UPDATE accounts SET %[1]s = %[1]s + $2, updated_at = NOW()
			WHERE id = $1
			RETURNING id
		)
		INSERT INTO transactions (account_id, type, unit, amount, status, reason, meta)
		SELECT id, 'grant', $3::varchar, $2, 'success', $4::varchar, $5::jsonb FROM credited
		RETURNING id
	`, col)

	var txID int64
	err := q.QueryRow(ctx, query, accountID, amount, string(unit), reason, meta).Scan(&txID)
	if postgres.IsNoRows(err) {
		return common.ErrAccountNotFound
	}
	if err != nil {
		return common.Unavailable("начисление", err)
	}
	return nil
}

// SpendTx списывает одну единицу, если баланс больше нуля.
// Проверка и списание — один условный UPDATE, поэтому параллельные вызовы
// не уводят баланс в минус. Возвращает false без побочных эффектов при нулевом балансе.
func (r *Repository) SpendTx(ctx context.Context, q postgres.Querier, accountID int64, unit Unit, reason string, meta Meta) (bool, error) {
	if meta == nil {
		meta = Meta{}
	}
	col := balanceColumn(unit)
	query := fmt.Sprintf(`
		WITH debited AS (
			UPDATE accounts SET %[1]s = %[1]s - 1, updated_at = NOW()
			WHERE id = $1 AND %[1]s > 0
			RETURNING id
		)
		INSERT INTO transactions (account_id, type, unit, amount, status, reason, meta)
		SELECT id, 'spend', $2::varchar, 1, 'success', $3::varchar, $4::jsonb FROM debited
		RETURNING id
	`, col)

	var txID int64
	err := q.QueryRow(ctx, query, accountID, string(unit), reason, meta).Scan(&txID)
	if postgres.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, common.Unavailable("списание", err)
	}
	return true, nil
}

// Grant начисляет сообщения.
func (r *Repository) Grant(ctx context.Context, accountID int64, amount int, reason string, meta Meta) error {
	return r.GrantTx(ctx, r.db, accountID, UnitCredit, amount, reason, meta)
}

// GrantAdvice начисляет советы.
func (r *Repository) GrantAdvice(ctx context.Context, accountID int64, amount int, reason string, meta Meta) error {
	return r.GrantTx(ctx, r.db, accountID, UnitAdvice, amount, reason, meta)
}

// SpendCredit списывает одно сообщение.
func (r *Repository) SpendCredit(ctx context.Context, accountID int64, meta Meta) (bool, error) {
	return r.SpendTx(ctx, r.db, accountID, UnitCredit, ReasonCreditSpend, meta)
}

// SpendAdvice списывает один совет.
func (r *Repository) SpendAdvice(ctx context.Context, accountID int64, meta Meta) (bool, error) {
	return r.SpendTx(ctx, r.db, accountID, UnitAdvice, ReasonAdviceSpend, meta)
}

// GetBalances возвращает текущие балансы сообщений и советов.
func (r *Repository) GetBalances(ctx context.Context, accountID int64) (credits, advice int, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT credits, advice_credits FROM accounts WHERE id = $1`, accountID,
	).Scan(&credits, &advice)
	if postgres.IsNoRows(err) {
		return 0, 0, common.ErrAccountNotFound
	}
	if err != nil {
		return 0, 0, common.Unavailable("получение баланса", err)
	}
	return credits, advice, nil
}

// GetTransactions возвращает последние N транзакций аккаунта.
func (r *Repository) GetTransactions(ctx context.Context, accountID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, account_id, type, unit, amount, status, reason, meta, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, common.Unavailable("получение транзакций", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.AccountID, &t.Type, &t.Unit, &t.Amount,
			&t.Status, &t.Reason, &t.Meta, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("получение транзакций", err)
	}
	return transactions, nil
}

// Reconcile сверяет хранимые балансы с суммой журнала.
func (r *Repository) Reconcile(ctx context.Context, accountID int64) (*Reconciliation, error) {
	query := `
		SELECT a.credits, a.advice_credits,
			COALESCE(SUM(t.amount) FILTER (WHERE t.unit = 'credit' AND t.type = 'grant' AND t.status = 'success'), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.unit = 'credit' AND t.type = 'spend' AND t.status = 'success'), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.unit = 'advice' AND t.type = 'grant' AND t.status = 'success'), 0),
			COALESCE(SUM(t.amount) FILTER (WHERE t.unit = 'advice' AND t.type = 'spend' AND t.status = 'success'), 0)
		FROM accounts a
		LEFT JOIN transactions t ON t.account_id = a.id
		WHERE a.id = $1
		GROUP BY a.id
	`
	rec := Reconciliation{AccountID: accountID}
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&rec.Credits, &rec.AdviceCredits,
		&rec.CreditGrants, &rec.CreditSpends,
		&rec.AdviceGrants, &rec.AdviceSpends,
	)
	if postgres.IsNoRows(err) {
		return nil, common.ErrAccountNotFound
	}
	if err != nil {
		return nil, common.Unavailable("сверка баланса", err)
	}
	return &rec, nil
}
