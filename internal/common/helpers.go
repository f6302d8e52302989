// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм и дат, работа с UTC-днями.
package common

import (
	"fmt"
	"time"
)

// pluralForm выбирает форму слова по правилам русского языка.
//
// Правила:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
func pluralForm(n int, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// FormatDate форматирует дату для пользователя: 02.01.2006.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// FormatDateTime форматирует дату и время: 02.01.2006 15:04.
func FormatDateTime(t time.Time) string {
	return t.Format("02.01.2006 15:04")
}

// UTCDay возвращает начало календарного дня в UTC.
// Лимиты подписки считаются по UTC-суткам, независимо от пояса сервера.
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatRubles переводит копейки в строку вида "299₽" или "99.50₽".
func FormatRubles(kopecks int) string {
	if kopecks%100 == 0 {
		return fmt.Sprintf("%d₽", kopecks/100)
	}
	return fmt.Sprintf("%d.%02d₽", kopecks/100, kopecks%100)
}
