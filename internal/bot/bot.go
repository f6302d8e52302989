// Package bot содержит главный модуль бота — polling, фильтрацию и маршрутизацию апдейтов.
package bot

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/bot/filters"
	"serotonyl.ru/tarot-bot/internal/bot/middleware"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/features/admin"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/promo"
	"serotonyl.ru/tarot-bot/internal/features/purchases"
	"serotonyl.ru/tarot-bot/internal/features/reading"
)

const helpText = `🔮 Я делаю расклады на картах Таро.

/reading [вопрос] — расклад на три карты
/advice — совет одной картой
/profile — баланс и подписка
/history — последние операции
/buy — пополнить баланс
/promo CODE — активировать промокод
/invite — пригласить друга`

// shutdownGrace — сколько ждём апдейты, уже взятые в работу, при остановке.
const shutdownGrace = 15 * time.Second

// Handlers — обработчики фич, между которыми маршрутизирует бот.
type Handlers struct {
	Profile   *ledger.Handler
	Promo     *promo.Handler
	Purchases *purchases.Handler
	Reading   *reading.Handler
	Admin     *admin.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	accounts *ledger.Service
	promos   *promo.Service
	handlers Handlers

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	accounts *ledger.Service,
	promos *promo.Service,
	handlers Handlers,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:         api,
		cfg:         cfg,
		accounts:    accounts,
		promos:      promos,
		handlers:    handlers,
		chatFilter:  filters.NewChatFilter(),
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(cfg.BotUsername),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram. Блокируется до отмены ctx.
// Обработчики получают контекст, не зависящий от ctx: начатая оплата
// или запись в БД доводится до конца в пределах shutdownGrace.
func (b *Bot) Start(ctx context.Context) {
	defer b.rateLimiter.Close()

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.drain(shutdownGrace, cancelWork)
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.drain(shutdownGrace, cancelWork)
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(workCtx, upd)
			}(update)
		}
	}
}

// drain ждёт завершения обработчиков, которые уже в работе.
// Через grace их контекст отменяется через cancel.
func (b *Bot) drain(grace time.Duration, cancel context.CancelFunc) {
	timer := time.AfterFunc(grace, func() {
		log.Warn("Обработчики не уложились в отведённое время, отменяем")
		cancel()
	})
	defer timer.Stop()

	for i := 0; i < cap(b.inflight); i++ {
		b.inflight <- struct{}{}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.Recover(update.UpdateID)

	switch {
	case update.PreCheckoutQuery != nil:
		// На pre-checkout у бота 10 секунд, фильтры и лимиты не применяем
		b.handlers.Purchases.HandlePreCheckout(ctx, update.PreCheckoutQuery)

	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)

	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if !b.chatFilter.CheckCallback(cb) {
		return
	}
	if !b.rateLimiter.Allow(cb.From.ID) {
		log.WithField("tg_id", cb.From.ID).Debug("rate limited")
		return
	}
	if strings.HasPrefix(cb.Data, purchases.CallbackPrefix) {
		b.handlers.Purchases.HandleBuyCallback(ctx, cb)
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	// Оплата проводится всегда, мимо rate limiter
	if message.SuccessfulPayment != nil {
		b.handlers.Purchases.HandleSuccessfulPayment(ctx, message)
		return
	}

	if message.Text == "" {
		return
	}
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("tg_id", message.From.ID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		b.sendMessage(message.Chat.ID, "Чтобы сделать расклад, отправьте /reading и ваш вопрос 🔮")
		return
	}

	log.WithFields(log.Fields{
		"cmd":   cmd,
		"tg_id": message.From.ID,
	}).Debug("routing command")

	if admin.IsCommand(cmd) {
		b.handlers.Admin.Handle(ctx, message, cmd, args)
		return
	}

	acc, err := b.accounts.EnsureAccount(ctx, message.From.ID, message.From.UserName)
	if err != nil {
		log.WithError(err).WithField("tg_id", message.From.ID).Error("EnsureAccount failed")
		b.sendMessage(message.Chat.ID, "⏳ Сервис временно недоступен, попробуйте позже")
		return
	}

	b.routeCommand(ctx, message.Chat.ID, acc, cmd, args)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, acc *ledger.Account, cmd, args string) {
	switch cmd {
	case "start":
		b.handleStart(ctx, chatID, acc, args)

	case "help":
		b.sendMessage(chatID, helpText)

	case "profile", "balance":
		b.handlers.Profile.HandleProfile(ctx, chatID, acc)

	case "history":
		b.handlers.Profile.HandleHistory(ctx, chatID, acc)

	case "invite":
		b.handlers.Profile.HandleInvite(ctx, chatID, acc)

	case "promo":
		b.handlers.Promo.HandlePromo(ctx, chatID, acc, args)

	case "buy":
		b.handlers.Purchases.HandleBuy(ctx, chatID, args)

	case "reading":
		b.handlers.Reading.HandleReading(ctx, chatID, acc, args)

	case "advice":
		b.handlers.Reading.HandleAdvice(ctx, chatID, acc)

	default:
		b.sendMessage(chatID, "Неизвестная команда. Список команд: /help")
	}
}

// handleStart — /start [CODE]. Код из deep link активируется как промокод.
func (b *Bot) handleStart(ctx context.Context, chatID int64, acc *ledger.Account, code string) {
	if err := b.promos.EnsureReferralCode(ctx, acc); err != nil {
		log.WithError(err).WithField("account_id", acc.ID).Warn("Не удалось создать реферальный код")
	}

	b.sendMessage(chatID, helpText)

	if code != "" {
		b.handlers.Promo.HandlePromo(ctx, chatID, acc, code)
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendMessageToUser отправляет сообщение пользователю (для рассылок из jobs).
func (b *Bot) SendMessageToUser(tgID int64, text string) {
	msg := tgbotapi.NewMessage(tgID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("tg_id", tgID).Debug("Не удалось отправить сообщение")
	} else {
		log.WithField("tg_id", tgID).Debug("message sent")
	}
}
