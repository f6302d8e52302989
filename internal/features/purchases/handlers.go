package purchases

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
)

// CallbackPrefix — префикс callback data кнопок каталога.
const CallbackPrefix = "buy:"

// Handler — /buy, счета и обработка оплаты.
type Handler struct {
	service       *Service
	catalog       Catalog
	billing       config.Billing
	bot           *tgbotapi.BotAPI
	providerToken string
	providerName  string
	currency      string
}

// NewHandler создаёт обработчик покупок.
func NewHandler(service *Service, cfg *config.Config, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:       service,
		catalog:       NewCatalog(cfg),
		billing:       cfg.Billing(),
		bot:           bot,
		providerToken: cfg.PaymentsProviderToken,
		providerName:  cfg.PaymentsProviderName,
		currency:      cfg.Currency,
	}
}

// HandleBuy показывает каталог кнопками. С аргументом (/buy pass30)
// сразу выставляет счёт на эту позицию.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64, offer string) {
	if h.providerToken == "" {
		h.sendMessage(chatID, "⚠️ Оплата временно недоступна")
		return
	}
	if offer = strings.TrimSpace(offer); offer != "" {
		item, ok := h.catalog.FindOffer(offer)
		if !ok {
			h.sendMessage(chatID, "Неизвестный тип покупки. Список: /buy")
			return
		}
		h.sendInvoice(chatID, item)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range h.catalog.Items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(Title(it, h.billing), CallbackPrefix+it.Payload()),
		))
	}

	msg := tgbotapi.NewMessage(chatID, "🛒 Выберите пакет:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки каталога")
	}
}

// HandleBuyCallback выставляет счёт по нажатой кнопке каталога.
func (h *Handler) HandleBuyCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.WithError(err).Debug("Ошибка ответа на callback")
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	item, ok := h.catalog.Find(strings.TrimPrefix(cb.Data, CallbackPrefix))
	if !ok {
		h.sendMessage(chatID, "Неизвестный тип покупки.")
		return
	}
	h.sendInvoice(chatID, item)
}

func (h *Handler) sendInvoice(chatID int64, item Item) {
	title := Title(item, h.billing)
	invoice := tgbotapi.NewInvoice(
		chatID, title, Description(item, h.billing), item.Payload(), h.providerToken, "", h.currency,
		[]tgbotapi.LabeledPrice{{Label: title, Amount: item.Amount}},
	)
	// Без этого API получает suggested_tip_amounts: null и отклоняет счёт
	invoice.SuggestedTipAmounts = []int{}

	if _, err := h.bot.Send(invoice); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка выставления счёта")
		h.sendMessage(chatID, "⏳ Не удалось выставить счёт, попробуйте позже")
	}
}

// HandlePreCheckout подтверждает оплату, если позиция есть в каталоге и сумма совпадает.
func (h *Handler) HandlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}

	item, ok := h.catalog.Find(q.InvoicePayload)
	if !ok || item.Amount != q.TotalAmount {
		answer.OK = false
		answer.ErrorMessage = "Этот товар больше недоступен, откройте /buy заново"
		log.WithFields(log.Fields{
			"payload": q.InvoicePayload,
			"amount":  q.TotalAmount,
		}).Warn("Pre-checkout отклонён")
	}

	if _, err := h.bot.Request(answer); err != nil {
		log.WithError(err).Error("Ошибка ответа на pre-checkout")
	}
}

// HandleSuccessfulPayment проводит оплату и сообщает результат.
func (h *Handler) HandleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	sp := msg.SuccessfulPayment
	ev := PaymentEvent{
		TgID:             msg.From.ID,
		Username:         msg.From.UserName,
		TotalAmount:      sp.TotalAmount,
		Currency:         strings.TrimSpace(sp.Currency),
		Payload:          sp.InvoicePayload,
		Provider:         h.providerName,
		ProviderChargeID: sp.ProviderPaymentChargeID,
		TelegramChargeID: sp.TelegramPaymentChargeID,
		Raw: map[string]any{
			"currency":                   sp.Currency,
			"total_amount":               sp.TotalAmount,
			"invoice_payload":            sp.InvoicePayload,
			"telegram_payment_charge_id": sp.TelegramPaymentChargeID,
			"provider_payment_charge_id": sp.ProviderPaymentChargeID,
		},
	}
	if ev.Currency == "" {
		ev.Currency = h.currency
	}

	out, err := h.service.HandlePayment(ctx, ev)
	switch {
	case err == nil:
		h.sendMessage(msg.Chat.ID, OutcomeText(out))
	case errors.Is(err, common.ErrDuplicateCharge):
		// повторное уведомление, пользователь уже получил ответ
	case errors.Is(err, common.ErrUnknownPayload), errors.Is(err, common.ErrAmountMismatch):
		h.sendMessage(msg.Chat.ID, "✅ Оплата получена, но автоматически зачислить её не удалось. "+
			"Администратор проверит платёж вручную.\nID платежа: "+ev.ChargeID())
	default:
		h.sendMessage(msg.Chat.ID, "⏳ Оплата получена, зачисление задерживается. "+
			"Если баланс не обновится в течение часа, напишите нам.\nID платежа: "+ev.ChargeID())
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
