package reading

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/features/arbiter"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/pass"
)

// Handler — команды /reading и /advice.
type Handler struct {
	service  *Service
	balances *ledger.Service
	limits   pass.Limits
	bot      *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик /reading и /advice.
func NewHandler(service *Service, balances *ledger.Service, limits pass.Limits, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, balances: balances, limits: limits, bot: bot}
}

// HandleReading — /reading [вопрос]
func (h *Handler) HandleReading(ctx context.Context, chatID int64, acc *ledger.Account, question string) {
	h.perform(ctx, chatID, acc, Request{Kind: KindReading, Question: question})
}

// HandleAdvice — /advice
func (h *Handler) HandleAdvice(ctx context.Context, chatID int64, acc *ledger.Account) {
	h.perform(ctx, chatID, acc, Request{Kind: KindAdvice})
}

func (h *Handler) perform(ctx context.Context, chatID int64, acc *ledger.Account, req Request) {
	h.sendTyping(chatID)

	res, err := h.service.Perform(ctx, acc, req)
	if err != nil {
		if !errors.Is(err, common.ErrGenerationFailed) {
			log.WithError(err).WithField("account_id", acc.ID).Error("Ошибка списания")
		}
		h.sendMessage(chatID, ErrorText(req.Kind, res, err))
		return
	}
	if !res.Status.OK() {
		h.sendMessage(chatID, StatusText(res.Status, h.limits))
		return
	}

	h.sendMessage(chatID, res.Text+h.footer(ctx, acc.ID, res.Status))
}

// footer — остаток баланса после списания с него.
func (h *Handler) footer(ctx context.Context, accountID int64, status arbiter.Status) string {
	switch status {
	case arbiter.StatusOKCredit:
		if n, err := h.balances.GetBalance(ctx, accountID); err == nil {
			return fmt.Sprintf("\n\n💰 Осталось: %s", common.FormatMessages(n))
		}
	case arbiter.StatusOKAdvice:
		if n, err := h.balances.GetAdviceBalance(ctx, accountID); err == nil {
			return fmt.Sprintf("\n\n💡 Осталось: %s", common.FormatAdvices(n))
		}
	}
	return ""
}

// StatusText — ответ на отказ арбитра. У каждой причины своё сообщение.
func StatusText(status arbiter.Status, limits pass.Limits) string {
	switch status {
	case arbiter.StatusRateLimited:
		return fmt.Sprintf("⏳ Не так быстро! По подписке можно делать расклад раз в %d сек.",
			int(limits.MinInterval.Seconds()))
	case arbiter.StatusDayLimitExceeded:
		return fmt.Sprintf("🌙 На сегодня лимит подписки исчерпан (%d в день). Возвращайтесь завтра!",
			limits.DayLimit)
	case arbiter.StatusNoCredits:
		return "💫 Сообщения закончились.\nПополнить баланс: /buy\nАктивировать промокод: /promo"
	case arbiter.StatusNoAdvice:
		return "💡 Советы закончились.\nКупить пакет советов или подписку: /buy"
	default:
		return "⏳ Сервис временно недоступен, попробуйте позже"
	}
}

// ErrorText — ответ на ошибку Perform. Текст про неудачный расклад
// только для сбоя генерации; любая другая ошибка значит, что списания не было.
func ErrorText(kind Kind, res Result, err error) string {
	if errors.Is(err, common.ErrGenerationFailed) {
		return FailureText(kind, res.Refunded)
	}
	return "⏳ Сервис временно недоступен, попробуйте позже"
}

// FailureText — ответ, когда генерация не удалась после списания.
func FailureText(kind Kind, refunded bool) string {
	what := "расклад"
	if kind == KindAdvice {
		what = "совет"
	}
	text := fmt.Sprintf("⚠️ Не удалось получить %s, попробуйте ещё раз чуть позже.", what)
	if refunded {
		text += "\nСписание возвращено на баланс."
	}
	return text
}

func (h *Handler) sendTyping(chatID int64) {
	if _, err := h.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.WithError(err).Debug("Ошибка отправки chat action")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
