// Package reading — расклады и советы: списание через арбитра, затем генерация.
//
// Списание фиксируется до вызова генератора. Если генерация упала, единица
// остаётся потраченной, а при READING_REFUND_ON_FAILURE=true сообщение или
// совет возвращаются на баланс. Использование подписки не возвращается.
package reading

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/features/arbiter"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

// Kind — тип запроса.
type Kind string

const (
	KindReading Kind = "reading"
	KindAdvice  Kind = "advice"
)

// Request — что сгенерировать.
type Request struct {
	Kind     Kind
	Question string
}

// Generator — внешний источник текста расклада.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Spender — списание одной единицы услуги.
type Spender interface {
	SpendOne(ctx context.Context, acc *ledger.Account) (arbiter.Result, error)
}

// Refunder возвращает списанное при ошибке генерации.
type Refunder interface {
	Grant(ctx context.Context, accountID int64, amount int, reason string, meta ledger.Meta) error
	GrantAdvice(ctx context.Context, accountID int64, amount int, reason string, meta ledger.Meta) error
}

// Result — итог запроса.
type Result struct {
	Status   arbiter.Status
	Text     string
	Refunded bool
}

// Service выполняет расклады.
type Service struct {
	readings Spender
	advices  Spender
	gen      Generator
	refunds  Refunder
	refund   bool
	timeout  time.Duration
}

// NewService создаёт сервис раскладов.
func NewService(readings, advices Spender, gen Generator, refunds Refunder, refundOnFailure bool, timeout time.Duration) *Service {
	return &Service{
		readings: readings,
		advices:  advices,
		gen:      gen,
		refunds:  refunds,
		refund:   refundOnFailure,
		timeout:  timeout,
	}
}

// Perform списывает единицу и генерирует текст.
// Отказ арбитра — не ошибка: Result.Status содержит причину.
func (s *Service) Perform(ctx context.Context, acc *ledger.Account, req Request) (Result, error) {
	spender := s.readings
	if req.Kind == KindAdvice {
		spender = s.advices
	}

	spent, err := spender.SpendOne(ctx, acc)
	if err != nil {
		return Result{}, err
	}
	if !spent.Status.OK() {
		return Result{Status: spent.Status}, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, genErr := s.gen.Generate(gctx, req)
	if genErr == nil {
		return Result{Status: spent.Status, Text: text}, nil
	}

	fields := log.Fields{
		"account_id": acc.ID,
		"kind":       string(req.Kind),
		"status":     spent.Status.String(),
		"op_id":      spent.OpID,
	}
	log.WithError(genErr).WithFields(fields).Warn("Генерация не удалась")

	res := Result{Status: spent.Status}
	if s.refund && spent.Status.FundedByBalance() {
		if err := s.refundOne(ctx, acc.ID, spent); err != nil {
			log.WithError(err).WithFields(fields).Error("Не удалось вернуть списание")
		} else {
			res.Refunded = true
			log.WithFields(fields).Info("Списание возвращено")
		}
	}
	return res, fmt.Errorf("%w: %w", common.ErrGenerationFailed, genErr)
}

func (s *Service) refundOne(ctx context.Context, accountID int64, spent arbiter.Result) error {
	meta := ledger.Meta{"op_id": spent.OpID, "refund_of": spent.Status.String()}
	if spent.Status == arbiter.StatusOKAdvice {
		return s.refunds.GrantAdvice(ctx, accountID, 1, ledger.ReasonGenerationRefund, meta)
	}
	return s.refunds.Grant(ctx, accountID, 1, ledger.ReasonGenerationRefund, meta)
}
