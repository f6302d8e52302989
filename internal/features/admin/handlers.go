package admin

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

// Команды, которые обрабатывает Handler.
const (
	CmdLogin     = "login"
	CmdLogout    = "logout"
	CmdPurchases = "purchases"
	CmdRecredit  = "recredit"
	CmdGrant     = "grant"
	CmdNewPromo  = "newpromo"
	CmdPromos    = "promos"
	CmdReconcile = "reconcile"
)

var commands = map[string]bool{
	CmdLogin: true, CmdLogout: true, CmdPurchases: true, CmdRecredit: true,
	CmdGrant: true, CmdNewPromo: true, CmdPromos: true, CmdReconcile: true,
}

// IsCommand — команда относится к админке.
func IsCommand(cmd string) bool {
	return commands[cmd]
}

const helpText = `🛠 Админ-команды:
/purchases [N] — незачисленные покупки
/recredit <charge_id> — зачислить покупку вручную
/grant <tg_id> <n> — начислить сообщения
/newpromo CODE AWARD [MAX_USES] [DAYS] — создать промокод
/promos [N] — последние промокоды
/reconcile <tg_id> — сверить баланс с журналом
/logout — выйти`

// Handler — админ-команды.
type Handler struct {
	service *Service
	bot     *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-команд.
func NewHandler(service *Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, bot: bot}
}

// Handle выполняет админ-команду. Все команды, кроме /login,
// требуют действующей сессии.
func (h *Handler) Handle(ctx context.Context, msg *tgbotapi.Message, cmd, args string) {
	chatID := msg.Chat.ID
	tgID := msg.From.ID

	if cmd == CmdLogin {
		h.handleLogin(ctx, msg, args)
		return
	}
	if err := h.service.Authorize(ctx, tgID); err != nil {
		h.sendMessage(chatID, "🔒 "+errorText(err))
		return
	}

	switch cmd {
	case CmdLogout:
		if err := h.service.Logout(ctx, tgID); err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, "👋 Сессия закрыта")

	case CmdPurchases:
		limit, err := parseLimit(args)
		if err != nil {
			h.sendMessage(chatID, "Использование: /purchases [N]")
			return
		}
		text, err := h.service.ListPurchases(ctx, limit)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, text)

	case CmdRecredit:
		if args == "" {
			h.sendMessage(chatID, "Использование: /recredit <charge_id>")
			return
		}
		out, err := h.service.Recredit(ctx, tgID, args)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("✅ Покупка #%d зачислена (tg:%d)", out.Purchase.ID, out.Purchase.TgID))
		h.sendMessage(out.Purchase.TgID, purchases.OutcomeText(out))

	case CmdGrant:
		req, err := parseGrant(args)
		if err != nil {
			h.sendMessage(chatID, "Использование: /grant <tg_id> <n>")
			return
		}
		acc, err := h.service.Grant(ctx, tgID, req)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("✅ Начислено %s (tg:%d)", common.FormatMessages(req.Amount), acc.TgID))

	case CmdNewPromo:
		req, err := parsePromo(args)
		if err != nil {
			h.sendMessage(chatID, "Использование: /newpromo CODE AWARD [MAX_USES] [DAYS]")
			return
		}
		p, err := h.service.CreatePromo(ctx, tgID, req)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, fmt.Sprintf("✅ Промокод %s создан: %s", p.Code, common.FormatMessages(p.FreeCreditsAward)))

	case CmdPromos:
		limit, err := parseLimit(args)
		if err != nil {
			h.sendMessage(chatID, "Использование: /promos [N]")
			return
		}
		text, err := h.service.ListPromos(ctx, limit)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, text)

	case CmdReconcile:
		target, err := parseTgID(args)
		if err != nil {
			h.sendMessage(chatID, "Использование: /reconcile <tg_id>")
			return
		}
		text, err := h.service.Reconcile(ctx, target)
		if err != nil {
			h.sendMessage(chatID, errorText(err))
			return
		}
		h.sendMessage(chatID, text)
	}
}

func (h *Handler) handleLogin(ctx context.Context, msg *tgbotapi.Message, password string) {
	chatID := msg.Chat.ID

	// Сообщение с паролем не должно оставаться в чате
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
		log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
	}

	if password == "" {
		h.sendMessage(chatID, "Использование: /login <пароль>")
		return
	}
	if err := h.service.Login(ctx, msg.From.ID, password); err != nil {
		h.sendMessage(chatID, "❌ "+errorText(err))
		return
	}
	h.sendMessage(chatID, "✅ Вы вошли как администратор\n\n"+helpText)
}

func errorText(err error) string {
	switch {
	case common.IsUnavailable(err):
		log.WithError(err).Error("Ошибка админ-команды")
		return "⏳ Сервис временно недоступен, попробуйте позже"
	case errors.Is(err, common.ErrNotAdmin),
		errors.Is(err, common.ErrSessionExpired),
		errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrTooManyAttempts),
		errors.Is(err, common.ErrAccountNotFound),
		errors.Is(err, common.ErrPurchaseNotFound),
		errors.Is(err, common.ErrAlreadyCredited),
		errors.Is(err, common.ErrUnknownPayload),
		errors.Is(err, common.ErrPromoExists),
		errors.Is(err, common.ErrPromoInviteCode),
		errors.Is(err, common.ErrInvalidAmount):
		return err.Error()
	default:
		log.WithError(err).Warn("Админ-команда отклонена")
		return "Ошибка: " + err.Error()
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
