// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/bot"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
	"serotonyl.ru/tarot-bot/internal/features/admin"
	"serotonyl.ru/tarot-bot/internal/features/arbiter"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/pass"
	"serotonyl.ru/tarot-bot/internal/features/promo"
	"serotonyl.ru/tarot-bot/internal/features/purchases"
	"serotonyl.ru/tarot-bot/internal/features/reading"
	"serotonyl.ru/tarot-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	billing := cfg.Billing()

	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}
	if err := postgres.RunMigrations(ctx, pool, postgres.Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool)
	passRepo := pass.NewRepository(pool)
	promoRepo := promo.NewRepository(pool)
	purchaseRepo := purchases.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	ledgerService := ledger.NewService(ledgerRepo, billing)
	passService := pass.NewService(passRepo, billing)
	promoService := promo.NewService(pool, promoRepo, ledgerRepo, billing)
	purchaseService := purchases.NewService(pool, purchaseRepo, ledgerService, passService, billing)
	adminService := admin.NewService(adminRepo, cfg, ledgerService, purchaseService, promoService)

	readingService := reading.NewService(
		arbiter.NewReadingArbiter(passService, ledgerService),
		arbiter.NewAdviceArbiter(passService, ledgerService),
		reading.NewDeckGenerator(nil),
		ledgerService,
		billing.RefundOnFailure,
		cfg.ReadingTimeout,
	)

	// === 5. Обработчики ===
	handlers := bot.Handlers{
		Profile:   ledger.NewHandler(ledgerService, passService, botAPI, cfg.BotUsername),
		Promo:     promo.NewHandler(promoService, ledgerService, botAPI),
		Purchases: purchases.NewHandler(purchaseService, cfg, botAPI),
		Reading:   reading.NewHandler(readingService, ledgerService, passService.Limits(), botAPI),
		Admin:     admin.NewHandler(adminService, botAPI),
	}

	// === 6. Собираем бота ===
	b := bot.New(botAPI, cfg, ledgerService, promoService, handlers)

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(purchaseService, passService, jobs.Options{
		AdminIDs:       cfg.AdminIDs,
		AlertAfter:     cfg.UncreditedAlertAfter,
		ReminderWindow: cfg.PassReminderWindow,
	}, b.SendMessageToUser)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}
