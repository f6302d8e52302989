// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// LogMessage логирует входящее сообщение: tg_id, chat_id, username
// и начало текста. Платёжные сообщения помечаются отдельно.
func LogMessage(message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	fields := log.Fields{
		"tg_id":    message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
	}
	if message.SuccessfulPayment != nil {
		fields["payload"] = message.SuccessfulPayment.InvoicePayload
		fields["amount"] = message.SuccessfulPayment.TotalAmount
		log.WithFields(fields).Info("Входящий платёж")
		return
	}

	fields["text"] = truncate(message.Text, maxLoggedText)
	log.WithFields(fields).Debug("Входящее сообщение")
}

// truncate обрезает строку по рунам, не ломая UTF-8.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
