package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migration — одна версия схемы.
type Migration struct {
	Version int
	SQL     string
}

// Migrations — схема леджера. SQL встроен в код для упрощения деплоя.
// Новые версии только дописываются в конец.
var Migrations = []Migration{
	{1, migration001Accounts},
	{2, migration002Promo},
	{3, migration003Passes},
	{4, migration004Purchases},
	{5, migration005Admin},
}

// RunMigrations создаёт таблицу schema_migrations и применяет миграции по порядку.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		applied, err := ExecMigrationSQL(ctx, pool, m.Version, m.SQL)
		if err != nil {
			return fmt.Errorf("миграция %d: %w", m.Version, err)
		}
		if applied {
			log.Infof("Миграция %d применена", m.Version)
		}
	}

	log.Info("Схема БД актуальна")
	return nil
}

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    tg_id BIGINT NOT NULL,
    username VARCHAR(255),
    credits INTEGER NOT NULL DEFAULT 0,
    advice_credits INTEGER NOT NULL DEFAULT 0,
    invite_code VARCHAR(16) NOT NULL,
    referred_by_account_id BIGINT REFERENCES accounts(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT uq_accounts_tg_id UNIQUE (tg_id),
    CONSTRAINT uq_accounts_invite_code UNIQUE (invite_code),
    CONSTRAINT chk_accounts_credits CHECK (credits >= 0),
    CONSTRAINT chk_accounts_advice CHECK (advice_credits >= 0)
);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    type VARCHAR(16) NOT NULL CHECK (type IN ('grant', 'spend')),
    unit VARCHAR(16) NOT NULL DEFAULT 'credit' CHECK (unit IN ('credit', 'advice')),
    amount INTEGER NOT NULL CHECK (amount > 0),
    status VARCHAR(16) NOT NULL DEFAULT 'success' CHECK (status IN ('pending', 'success', 'failed')),
    reason VARCHAR(64) NOT NULL,
    meta JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, created_at DESC);
`

var migration002Promo = `
CREATE TABLE IF NOT EXISTS promo_codes (
    id BIGSERIAL PRIMARY KEY,
    code VARCHAR(64) NOT NULL,
    is_referral BOOLEAN NOT NULL DEFAULT FALSE,
    free_credits_award INTEGER NOT NULL DEFAULT 0 CHECK (free_credits_award >= 0),
    expires_at TIMESTAMPTZ,
    max_uses INTEGER CHECK (max_uses IS NULL OR max_uses > 0),
    used_count INTEGER NOT NULL DEFAULT 0,
    created_by_account_id BIGINT REFERENCES accounts(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT uq_promo_codes_code UNIQUE (code),
    CONSTRAINT chk_promo_used CHECK (max_uses IS NULL OR used_count <= max_uses)
);
CREATE TABLE IF NOT EXISTS promo_redemptions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    promo_code_id BIGINT NOT NULL REFERENCES promo_codes(id),
    redeemed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT uq_promo_redemptions_account_code UNIQUE (account_id, promo_code_id)
);
`

var migration003Passes = `
CREATE TABLE IF NOT EXISTS subscription_passes (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    plan VARCHAR(32) NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    notified_expires_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT uq_subscription_passes_account UNIQUE (account_id)
);
CREATE INDEX IF NOT EXISTS idx_subscription_passes_expires ON subscription_passes(expires_at);
CREATE TABLE IF NOT EXISTS pass_usage (
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    day DATE NOT NULL,
    used INTEGER NOT NULL DEFAULT 0 CHECK (used >= 0),
    last_ts TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (account_id, day)
);
`

var migration004Purchases = `
CREATE TABLE IF NOT EXISTS purchases (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES accounts(id),
    tg_id BIGINT NOT NULL,
    kind VARCHAR(32) NOT NULL,
    units INTEGER NOT NULL DEFAULT 0,
    amount INTEGER NOT NULL,
    currency VARCHAR(8) NOT NULL,
    payload TEXT NOT NULL,
    provider VARCHAR(32) NOT NULL,
    provider_charge_id VARCHAR(255) NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'paid' CHECK (status IN ('paid', 'credited', 'failed')),
    meta JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    credited_at TIMESTAMPTZ,
    CONSTRAINT uq_purchases_charge UNIQUE (provider_charge_id)
);
CREATE INDEX IF NOT EXISTS idx_purchases_uncredited ON purchases(created_at DESC) WHERE status <> 'credited';
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    tg_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_tg_id ON admin_sessions(tg_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    tg_id BIGINT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
`
