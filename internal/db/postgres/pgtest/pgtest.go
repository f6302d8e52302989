// Package pgtest поднимает пул к тестовой БД для интеграционных тестов.
// Без TEST_DATABASE_URL тесты пропускаются.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

const advisoryLockKey int64 = 7_340_042

// Open подключается к TEST_DATABASE_URL, применяет миграции и очищает таблицы.
// Пул закрывается автоматически в t.Cleanup.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан, пропускаем интеграционный тест")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, dsn, 32, 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	// go test гоняет пакеты параллельно, а БД одна: держим advisory lock
	// на отдельном соединении до конца теста.
	lockConn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := lockConn.Exec(context.Background(), "SELECT pg_advisory_lock($1)", advisoryLockKey); err != nil {
		lockConn.Release()
		t.Fatalf("advisory lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = lockConn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", advisoryLockKey)
		lockConn.Release()
	})

	if err := postgres.RunMigrations(ctx, pool, postgres.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE promo_redemptions, promo_codes, pass_usage, subscription_passes,
		         purchases, transactions, admin_sessions, admin_login_attempts, accounts
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}
