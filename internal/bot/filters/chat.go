// Package filters решает, какие апдейты бот вообще обрабатывает.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// ChatFilter пропускает только личные чаты с живым пользователем.
type ChatFilter struct{}

func NewChatFilter() *ChatFilter {
	return &ChatFilter{}
}

// CheckAccess — сообщение из лички от пользователя (не бота).
func (f *ChatFilter) CheckAccess(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	return f.allow(message.Chat, message.From)
}

// CheckCallback — нажатие кнопки в личке.
func (f *ChatFilter) CheckCallback(cb *tgbotapi.CallbackQuery) bool {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return false
	}
	return f.allow(cb.Message.Chat, cb.From)
}

func (f *ChatFilter) allow(chat *tgbotapi.Chat, from *tgbotapi.User) bool {
	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chat.ID,
		"chat_type": chat.Type,
	})

	if from == nil {
		logger.Debug("deny: no sender (service/channel message)")
		return false
	}
	if from.IsBot {
		logger.WithField("tg_id", from.ID).Debug("deny: bot sender")
		return false
	}
	if !chat.IsPrivate() {
		logger.Debug("deny: not a private chat")
		return false
	}
	return true
}
