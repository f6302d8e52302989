// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import (
	"errors"
	"fmt"
)

// Ошибки хранилища
var (
	// ErrUnavailable — БД недоступна или запрос упал. Не путать с отказом по правилам:
	// пользователю показываем «попробуйте позже».
	ErrUnavailable = errors.New("сервис временно недоступен")
)

// Ошибки леджера (сообщения, советы)
var (
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrAccountNotFound — аккаунт не найден в базе
	ErrAccountNotFound = errors.New("аккаунт не найден")
)

// Ошибки промокодов
var (
	ErrPromoEmpty           = errors.New("Введите промокод")
	ErrPromoNotFound        = errors.New("Такого промокода нет")
	ErrPromoSelf            = errors.New("Нельзя активировать свой собственный код 😊")
	ErrPromoAlreadyRedeemed = errors.New("Вы уже активировали этот промокод")
	ErrPromoExpired         = errors.New("Срок действия промокода истёк")
	ErrPromoExhausted       = errors.New("Лимит активаций промокода исчерпан")
	// ErrPromoExists — админ создаёт код, который уже есть
	ErrPromoExists = errors.New("такой промокод уже существует")
	// ErrPromoInviteCode — код совпадает с инвайт-кодом пользователя
	ErrPromoInviteCode = errors.New("код совпадает с инвайт-кодом пользователя")
)

// Ошибки покупок
var (
	// ErrDuplicateCharge — платёж с таким charge id уже записан (повторное уведомление)
	ErrDuplicateCharge = errors.New("платёж уже обработан")
	// ErrPurchaseNotFound — покупка по charge id не найдена
	ErrPurchaseNotFound = errors.New("покупка не найдена")
	// ErrAlreadyCredited — покупка уже зачислена
	ErrAlreadyCredited = errors.New("покупка уже зачислена")
	// ErrUnknownPayload — payload инвойса не распознан
	ErrUnknownPayload = errors.New("неизвестный тип покупки")
	// ErrAmountMismatch — сумма платежа не совпадает с ценой из payload
	ErrAmountMismatch = errors.New("сумма платежа не совпадает с ценой")
	// ErrInvalidPayment — в уведомлении о платеже не хватает полей
	ErrInvalidPayment = errors.New("некорректное уведомление о платеже")
)

// Ошибки расклада
var (
	// ErrGenerationFailed — списание прошло, но текст расклада получить не удалось
	ErrGenerationFailed = errors.New("не удалось получить расклад")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("у вас нет прав администратора")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
	// ErrSessionExpired — сессия истекла
	ErrSessionExpired = errors.New("сессия истекла, авторизуйтесь заново")
)

// Unavailable оборачивает ошибку хранилища так, чтобы errors.Is(err, ErrUnavailable)
// срабатывал, а исходная причина оставалась в цепочке.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// IsUnavailable — сокращение для errors.Is(err, ErrUnavailable).
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
