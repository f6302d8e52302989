package ledger

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
)

// inviteAlphabet — без 0/O и 1/I, чтобы код было легко продиктовать.
// 32 символа: байт % 32 не даёт перекоса распределения.
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// InviteCodeLength — длина инвайт-кода.
const InviteCodeLength = 6

// NewInviteCode генерирует случайный инвайт-код.
// Уникальность гарантирует ограничение uq_accounts_invite_code, при коллизии
// репозиторий просто генерирует новый код.
func NewInviteCode() (string, error) {
	buf := make([]byte, InviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("ошибка генерации инвайт-кода: %w", err)
	}
	out := make([]byte, InviteCodeLength)
	for i, b := range buf {
		out[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(out), nil
}

// NormalizeCode приводит введённый код (промокод или инвайт) к каноничному виду:
// без пробелов по краям, в верхнем регистре. Применяется везде, где код
// сохраняется или ищется, поэтому сравнение кодов регистронезависимое.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// InviteLink собирает deep-link для приглашения друга.
func InviteLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", strings.TrimPrefix(botUsername, "@"), code)
}

func formatTgID(id int64) string {
	return "id" + strconv.FormatInt(id, 10)
}
