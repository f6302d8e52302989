// Package ledger — handlers.go обрабатывает команды профиля:
// /profile (/balance), /history, /invite.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
)

// PassStatus отдаёт дату окончания активной подписки (nil — подписки нет).
type PassStatus interface {
	ActiveUntil(ctx context.Context, accountID int64) (*time.Time, error)
}

// Handler обрабатывает команды профиля.
type Handler struct {
	service     *Service
	passes      PassStatus
	bot         *tgbotapi.BotAPI
	botUsername string
}

// NewHandler создаёт обработчик профиля.
func NewHandler(service *Service, passes PassStatus, bot *tgbotapi.BotAPI, botUsername string) *Handler {
	return &Handler{
		service:     service,
		passes:      passes,
		bot:         bot,
		botUsername: botUsername,
	}
}

// HandleProfile показывает балансы и статус подписки.
func (h *Handler) HandleProfile(ctx context.Context, chatID int64, acc *Account) {
	credits, err := h.service.GetBalance(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	advice, err := h.service.GetAdviceBalance(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	until, err := h.passes.ActiveUntil(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, err)
		return
	}

	h.sendMessage(chatID, FormatProfile(credits, advice, until))
}

// FormatProfile собирает текст профиля.
func FormatProfile(credits, advice int, passUntil *time.Time) string {
	var sb strings.Builder
	sb.WriteString("👤 Ваш профиль\n\n")
	sb.WriteString(fmt.Sprintf("💰 Баланс: %s\n", common.FormatMessages(credits)))
	sb.WriteString(fmt.Sprintf("💡 Советы: %s\n", common.FormatAdvices(advice)))
	if passUntil != nil {
		sb.WriteString(fmt.Sprintf("🌙 Подписка активна до %s", common.FormatDate(*passUntil)))
	} else {
		sb.WriteString("🌙 Подписки нет")
	}
	return sb.String()
}

// HandleHistory показывает последние операции.
func (h *Handler) HandleHistory(ctx context.Context, chatID int64, acc *Account) {
	text, err := h.service.GetTransactionHistory(ctx, acc.ID)
	if err != nil {
		h.sendError(chatID, err)
		return
	}
	h.sendMessage(chatID, text)
}

// HandleInvite показывает реферальную ссылку.
func (h *Handler) HandleInvite(ctx context.Context, chatID int64, acc *Account) {
	link := InviteLink(h.botUsername, acc.InviteCode)
	h.sendMessage(chatID, fmt.Sprintf(
		"🤝 Пригласите друга и получите бонус!\n\nВаш код: %s\nСсылка: %s",
		acc.InviteCode, link,
	))
}

func (h *Handler) sendError(chatID int64, err error) {
	log.WithError(err).WithField("chat_id", chatID).Error("Ошибка профиля")
	h.sendMessage(chatID, "⏳ Сервис временно недоступен, попробуйте позже")
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
