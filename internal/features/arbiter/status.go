// Package arbiter выбирает, чем оплатить одну единицу услуги:
// подпиской, сообщениями или советами.
package arbiter

// Status — итог попытки списания.
type Status string

const (
	// StatusUnavailable — источник неприменим, пробуем следующий
	StatusUnavailable Status = ""

	StatusOKPass           Status = "OK_PASS"
	StatusOKCredit         Status = "OK_CREDIT"
	StatusOKAdvice         Status = "OK_ADVICE"
	StatusRateLimited      Status = "RATE_LIMITED"
	StatusDayLimitExceeded Status = "DAY_LIMIT_EXCEEDED"
	StatusNoCredits        Status = "NO_CREDITS"
	StatusNoAdvice         Status = "NO_ADVICE"
)

// OK — успешное списание из любого источника.
func (s Status) OK() bool {
	return s == StatusOKPass || s == StatusOKCredit || s == StatusOKAdvice
}

// FundedByBalance — списание ушло с баланса, а не с подписки.
func (s Status) FundedByBalance() bool {
	return s == StatusOKCredit || s == StatusOKAdvice
}

func (s Status) String() string {
	if s == StatusUnavailable {
		return "UNAVAILABLE"
	}
	return string(s)
}
