// Package purchases превращает уведомления об оплате в начисления ровно один раз
// и даёт админу ручное восстановление, если автоматическое начисление не прошло.
//
// Покупка создаётся со статусом paid, затем в одной транзакции переводится
// в credited и получает начисление. Повторное уведомление с тем же
// provider_charge_id упирается в уникальное ограничение и ничего не меняет.
package purchases

import (
	"time"

	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

// Status — состояние покупки.
type Status string

const (
	StatusPaid     Status = "paid"
	StatusCredited Status = "credited"
	StatusFailed   Status = "failed"
)

// Purchase — запись о платеже.
type Purchase struct {
	ID        int64
	AccountID int64
	TgID      int64
	Kind      Kind
	// Units — сколько единиц начисляется: сообщений, советов или дней подписки
	Units            int
	Amount           int
	Currency         string
	Payload          string
	Provider         string
	ProviderChargeID string
	Status           Status
	Meta             ledger.Meta
	CreatedAt        time.Time
	CreditedAt       *time.Time
}

// NewPurchase — данные для Repository.Create.
type NewPurchase struct {
	AccountID        int64
	TgID             int64
	Item             Item
	Currency         string
	Payload          string
	Provider         string
	ProviderChargeID string
	Status           Status
	Meta             ledger.Meta
}

// PaymentEvent — успешный платёж из Telegram (successful_payment).
type PaymentEvent struct {
	TgID             int64  `validate:"required"`
	Username         string `validate:"omitempty,max=64"`
	TotalAmount      int    `validate:"gt=0"`
	Currency         string `validate:"required,len=3"`
	Payload          string `validate:"required,max=255"`
	Provider         string `validate:"required"`
	ProviderChargeID string `validate:"required_without=TelegramChargeID"`
	TelegramChargeID string
	Raw              map[string]any
}

// ChargeID — внешний идентификатор платежа: провайдерский, иначе телеграмный.
func (e PaymentEvent) ChargeID() string {
	if e.ProviderChargeID != "" {
		return e.ProviderChargeID
	}
	return e.TelegramChargeID
}

// Outcome — что получил пользователь за покупку.
type Outcome struct {
	Purchase *Purchase
	// Credits/Advice — сколько начислено; PassUntil — новая дата окончания подписки
	Credits   int
	Advice    int
	PassUntil *time.Time
}
