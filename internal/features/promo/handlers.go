package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

// Handler — команда /promo.
type Handler struct {
	service  *Service
	balances *ledger.Service
	bot      *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик /promo.
func NewHandler(service *Service, balances *ledger.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, balances: balances, bot: bot}
}

// HandlePromo активирует код из аргумента команды: /promo ABC123
func (h *Handler) HandlePromo(ctx context.Context, chatID int64, acc *ledger.Account, args string) {
	if strings.TrimSpace(args) == "" {
		h.sendMessage(chatID, "🎁 Введите промокод после команды, например:\n/promo ABC123")
		return
	}

	res, err := h.service.Redeem(ctx, acc.ID, args)
	if err != nil {
		h.sendMessage(chatID, errorText(err))
		return
	}

	text := SuccessText(res)
	if balance, err := h.balances.GetBalance(ctx, acc.ID); err == nil {
		text += fmt.Sprintf("\n\nВаш баланс: %s", common.FormatMessages(balance))
	}
	h.sendMessage(chatID, text)

	if res.ReferrerID != nil && res.ReferrerBonus > 0 {
		h.notifyReferrer(ctx, *res.ReferrerID, res.ReferrerBonus)
	}
}

func (h *Handler) notifyReferrer(ctx context.Context, referrerID int64, bonus int) {
	referrer, err := h.balances.Repo().GetByID(ctx, referrerID)
	if err != nil {
		log.WithError(err).WithField("account_id", referrerID).Warn("Не удалось уведомить пригласившего")
		return
	}
	h.sendMessage(referrer.TgID, fmt.Sprintf(
		"🤝 Ваш друг активировал ваш код! Начислено %s",
		common.FormatMessages(bonus),
	))
}

// errorText превращает ошибку активации в ответ пользователю.
func errorText(err error) string {
	switch {
	case errors.Is(err, common.ErrPromoEmpty),
		errors.Is(err, common.ErrPromoNotFound),
		errors.Is(err, common.ErrPromoSelf),
		errors.Is(err, common.ErrPromoAlreadyRedeemed),
		errors.Is(err, common.ErrPromoExpired),
		errors.Is(err, common.ErrPromoExhausted):
		return err.Error()
	default:
		return "⏳ Сервис временно недоступен, попробуйте позже"
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
