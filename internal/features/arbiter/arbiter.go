package arbiter

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

// FundingSource — один способ оплатить услугу.
// Возвращает StatusUnavailable, если к аккаунту не применим; любой другой
// статус окончательный.
type FundingSource interface {
	Name() string
	TrySpend(ctx context.Context, acc *ledger.Account, opID string, now time.Time) (Status, error)
}

// Result — итог SpendOne.
type Result struct {
	Status Status
	Source string
	// OpID — идентификатор операции, попадает в meta транзакции
	OpID string
}

// Arbiter перебирает источники по приоритету.
type Arbiter struct {
	sources   []FundingSource
	exhausted Status
	now       func() time.Time
}

// New создаёт арбитра. exhausted возвращается, когда ни один источник не подошёл.
func New(exhausted Status, sources ...FundingSource) *Arbiter {
	return &Arbiter{
		sources:   sources,
		exhausted: exhausted,
		now:       time.Now,
	}
}

// SpendOne списывает одну единицу услуги с первого применимого источника.
func (a *Arbiter) SpendOne(ctx context.Context, acc *ledger.Account) (Result, error) {
	now := a.now()
	opID := uuid.NewString()

	for _, src := range a.sources {
		status, err := src.TrySpend(ctx, acc, opID, now)
		if err != nil {
			return Result{OpID: opID}, err
		}
		if status == StatusUnavailable {
			continue
		}

		entry := log.WithFields(log.Fields{
			"account_id": acc.ID,
			"source":     src.Name(),
			"status":     status.String(),
			"op_id":      opID,
		})
		if status.OK() {
			entry.Debug("Списание выполнено")
		} else {
			entry.Info("Списание отклонено")
		}
		return Result{Status: status, Source: src.Name(), OpID: opID}, nil
	}

	log.WithFields(log.Fields{
		"account_id": acc.ID,
		"status":     a.exhausted.String(),
	}).Info("Нечем оплатить")
	return Result{Status: a.exhausted, OpID: opID}, nil
}
