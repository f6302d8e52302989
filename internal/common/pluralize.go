// Package common — pluralize.go склоняет единицы баланса бота.
package common

import "fmt"

// PluralizeMessages возвращает правильную форму слова «сообщение».
//
// Примеры:
//
//	PluralizeMessages(1)  → "сообщение"
//	PluralizeMessages(3)  → "сообщения"
//	PluralizeMessages(11) → "сообщений"
func PluralizeMessages(n int) string {
	return pluralForm(n, "сообщение", "сообщения", "сообщений")
}

// PluralizeAdvices возвращает правильную форму слова «совет».
func PluralizeAdvices(n int) string {
	return pluralForm(n, "совет", "совета", "советов")
}

// PluralizeDays возвращает правильную форму слова «день».
func PluralizeDays(n int) string {
	return pluralForm(n, "день", "дня", "дней")
}

// FormatMessages создаёт строку вида "10 сообщений".
func FormatMessages(n int) string {
	return fmt.Sprintf("%d %s", n, PluralizeMessages(n))
}

// FormatAdvices создаёт строку вида "3 совета".
func FormatAdvices(n int) string {
	return fmt.Sprintf("%d %s", n, PluralizeAdvices(n))
}
