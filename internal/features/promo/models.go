// Package promo — промокоды и реферальные коды.
//
// Реферальный промокод совпадает с invite_code владельца и создаётся
// лениво при первой активации. Коды сравниваются без учёта регистра:
// при создании, активации и поиске по инвайт-коду строка приводится
// к верхнему регистру.
package promo

import (
	"time"

	"serotonyl.ru/tarot-bot/internal/common"
)

// PromoCode — промокод.
type PromoCode struct {
	ID                 int64
	Code               string
	IsReferral         bool
	FreeCreditsAward   int
	ExpiresAt          *time.Time
	MaxUses            *int
	UsedCount          int
	CreatedByAccountID *int64
	CreatedAt          time.Time
}

// CreatedBy — код создан этим аккаунтом.
func (p *PromoCode) CreatedBy(accountID int64) bool {
	return p.CreatedByAccountID != nil && *p.CreatedByAccountID == accountID
}

// Redemption — итог успешной активации.
type Redemption struct {
	PromoCodeID int64
	Code        string
	Award       int
	// ReferrerID и ReferrerBonus заполнены только для реферальных кодов
	ReferrerID    *int64
	ReferrerBonus int
}

// NewCode — параметры промокода, который создаёт админ.
type NewCode struct {
	Code      string     `validate:"required,min=3,max=64,alphanum"`
	Award     int        `validate:"gte=0,lte=10000"`
	MaxUses   *int       `validate:"omitempty,gt=0"`
	ExpiresAt *time.Time `validate:"omitempty"`
	CreatedBy *int64
}

// checkRedeemable проверяет код в порядке: самоактивация, повторная
// активация, срок, лимит. Возвращает nil, если код можно активировать.
func checkRedeemable(p *PromoCode, accountID int64, alreadyRedeemed bool, now time.Time) error {
	if p.CreatedBy(accountID) {
		return common.ErrPromoSelf
	}
	if alreadyRedeemed {
		return common.ErrPromoAlreadyRedeemed
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return common.ErrPromoExpired
	}
	if p.MaxUses != nil && p.UsedCount >= *p.MaxUses {
		return common.ErrPromoExhausted
	}
	return nil
}

// awardFor — сколько сообщений получит активирующий.
func awardFor(p *PromoCode, defaultCredits int) int {
	if p.FreeCreditsAward > 0 {
		return p.FreeCreditsAward
	}
	return defaultCredits
}
