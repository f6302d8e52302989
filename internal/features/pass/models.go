// Package pass — подписка на безлимитные расклады с fair-use лимитами.
// models.go описывает подписку и дневной счётчик использования.
package pass

import "time"

// PlanUnlimited — единственный тариф: 30 дней раскладов в пределах дневного лимита.
const PlanUnlimited = "pass_unlim"

// Pass — подписка аккаунта. Одна строка на аккаунт, продление сдвигает expires_at.
type Pass struct {
	ID                int64      `json:"id"`
	AccountID         int64      `json:"account_id"`
	Plan              string     `json:"plan"`
	ExpiresAt         time.Time  `json:"expires_at"`
	NotifiedExpiresAt *time.Time `json:"notified_expires_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ActiveAt — подписка активна, пока expires_at >= now (граница включительно).
func (p *Pass) ActiveAt(now time.Time) bool {
	return p != nil && !now.After(p.ExpiresAt)
}

// Usage — счётчик использований подписки за UTC-день.
// used только растёт.
type Usage struct {
	AccountID int64     `json:"account_id"`
	Day       time.Time `json:"day"`
	Used      int       `json:"used"`
	LastTS    time.Time `json:"last_ts"`
}

// Expiring — подписка, о скором окончании которой нужно напомнить.
type Expiring struct {
	PassID    int64
	AccountID int64
	TgID      int64
	ExpiresAt time.Time
}
