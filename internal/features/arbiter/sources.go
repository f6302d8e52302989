package arbiter

import (
	"context"
	"time"

	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/pass"
)

// Passes — то, что арбитру нужно от подписок.
type Passes interface {
	GetActive(ctx context.Context, accountID int64, now time.Time) (*pass.Pass, error)
	Consume(ctx context.Context, accountID int64, now time.Time) (pass.Verdict, error)
}

// Balances — то, что арбитру нужно от леджера.
type Balances interface {
	SpendCredit(ctx context.Context, accountID int64, meta ledger.Meta) (bool, error)
	SpendAdvice(ctx context.Context, accountID int64, meta ledger.Meta) (bool, error)
}

// PassSource оплачивает расклад подпиской с учётом fair-use лимитов.
type PassSource struct {
	passes Passes
}

// NewPassSource создаёт источник «подписка с лимитами».
func NewPassSource(passes Passes) *PassSource {
	return &PassSource{passes: passes}
}

func (s *PassSource) Name() string { return "pass" }

func (s *PassSource) TrySpend(ctx context.Context, acc *ledger.Account, _ string, now time.Time) (Status, error) {
	active, err := s.passes.GetActive(ctx, acc.ID, now)
	if err != nil {
		return StatusUnavailable, err
	}
	if active == nil {
		return StatusUnavailable, nil
	}

	verdict, err := s.passes.Consume(ctx, acc.ID, now)
	if err != nil {
		return StatusUnavailable, err
	}
	switch verdict {
	case pass.Allowed:
		return StatusOKPass, nil
	case pass.RateLimited:
		return StatusRateLimited, nil
	default:
		return StatusDayLimitExceeded, nil
	}
}

// UnlimitedPassSource — подписка без лимитов (советы).
type UnlimitedPassSource struct {
	passes Passes
}

// NewUnlimitedPassSource создаёт источник «подписка без лимитов».
func NewUnlimitedPassSource(passes Passes) *UnlimitedPassSource {
	return &UnlimitedPassSource{passes: passes}
}

func (s *UnlimitedPassSource) Name() string { return "pass_unlimited" }

func (s *UnlimitedPassSource) TrySpend(ctx context.Context, acc *ledger.Account, _ string, now time.Time) (Status, error) {
	active, err := s.passes.GetActive(ctx, acc.ID, now)
	if err != nil {
		return StatusUnavailable, err
	}
	if active == nil {
		return StatusUnavailable, nil
	}
	return StatusOKPass, nil
}

// CreditSource списывает одно сообщение.
type CreditSource struct {
	balances Balances
}

// NewCreditSource создаёт источник «сообщения».
func NewCreditSource(balances Balances) *CreditSource {
	return &CreditSource{balances: balances}
}

func (s *CreditSource) Name() string { return "credit" }

func (s *CreditSource) TrySpend(ctx context.Context, acc *ledger.Account, opID string, _ time.Time) (Status, error) {
	ok, err := s.balances.SpendCredit(ctx, acc.ID, ledger.Meta{"op_id": opID})
	if err != nil || !ok {
		return StatusUnavailable, err
	}
	return StatusOKCredit, nil
}

// AdviceSource списывает один купленный совет.
type AdviceSource struct {
	balances Balances
}

// NewAdviceSource создаёт источник «купленные советы».
func NewAdviceSource(balances Balances) *AdviceSource {
	return &AdviceSource{balances: balances}
}

func (s *AdviceSource) Name() string { return "advice" }

func (s *AdviceSource) TrySpend(ctx context.Context, acc *ledger.Account, opID string, _ time.Time) (Status, error) {
	ok, err := s.balances.SpendAdvice(ctx, acc.ID, ledger.Meta{"op_id": opID})
	if err != nil || !ok {
		return StatusUnavailable, err
	}
	return StatusOKAdvice, nil
}

// NewReadingArbiter: подписка, затем сообщения.
func NewReadingArbiter(passes Passes, balances Balances) *Arbiter {
	return New(StatusNoCredits, NewPassSource(passes), NewCreditSource(balances))
}

// NewAdviceArbiter: подписка без лимитов, затем купленные советы.
func NewAdviceArbiter(passes Passes, balances Balances) *Arbiter {
	return New(StatusNoAdvice, NewUnlimitedPassSource(passes), NewAdviceSource(balances))
}
