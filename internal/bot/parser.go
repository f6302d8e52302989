package bot

import (
	"strings"
	"unicode"
)

// CommandParser разбирает команды вида /cmd[@bot] [аргументы].
type CommandParser struct {
	botUsername string
}

// NewCommandParser создаёт парсер. botUsername нужен, чтобы отличать
// /cmd@наш_бот от команд другим ботам.
func NewCommandParser(botUsername string) *CommandParser {
	return &CommandParser{botUsername: strings.TrimPrefix(botUsername, "@")}
}

// ParseCommand возвращает команду в нижнем регистре и аргументы одной строкой
// (вопрос к раскладу может содержать пробелы и переносы).
func (p *CommandParser) ParseCommand(text string) (string, string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	text = text[1:]

	head, args := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, args = text[:i], text[i:]
	}

	cmd, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, p.botUsername) {
		return "", "", false
	}
	if cmd == "" {
		return "", "", false
	}

	return strings.ToLower(cmd), strings.TrimSpace(args), true
}
