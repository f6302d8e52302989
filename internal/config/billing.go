package config

import "time"

// Billing — политика начислений и fair-use лимитов подписки.
// Все числа настраиваемые, сервисы получают копию при создании.
type Billing struct {
	DefaultFreeCredits    int
	PromoDefaultCredits   int
	ReferralBonusInvited  int
	ReferralBonusReferrer int

	PassDays        int
	PassDayLimit    int
	PassBurstPerMin int

	AdvicePackSize  int
	RefundOnFailure bool
}

// DefaultBilling — значения по умолчанию (как в .env.example).
func DefaultBilling() Billing {
	return Billing{
		DefaultFreeCredits:    2,
		PromoDefaultCredits:   10,
		ReferralBonusInvited:  10,
		ReferralBonusReferrer: 10,
		PassDays:              30,
		PassDayLimit:          25,
		PassBurstPerMin:       2,
		AdvicePackSize:        3,
	}
}

// PassDuration — продолжительность одной покупки подписки.
func (b Billing) PassDuration() time.Duration {
	return time.Duration(b.PassDays) * 24 * time.Hour
}

// PassMinInterval — минимальный интервал между списаниями по подписке:
// 60 / burst целых секунд, но не меньше секунды.
func (b Billing) PassMinInterval() time.Duration {
	burst := b.PassBurstPerMin
	if burst < 1 {
		burst = 1
	}
	seconds := 60 / burst
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
