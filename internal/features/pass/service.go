// Package pass — service.go: активность подписки, учёт использования, напоминания.
package pass

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
)

// Service управляет подписками.
type Service struct {
	repo    *Repository
	billing config.Billing
	limits  Limits
	now     func() time.Time
}

// NewService создаёт сервис подписок.
func NewService(repo *Repository, billing config.Billing) *Service {
	return &Service{
		repo:    repo,
		billing: billing,
		limits:  LimitsFrom(billing),
		now:     time.Now,
	}
}

// Limits возвращает действующую fair-use политику.
func (s *Service) Limits() Limits {
	return s.limits
}

// GetActive возвращает подписку, если она активна на момент now, иначе nil.
func (s *Service) GetActive(ctx context.Context, accountID int64, now time.Time) (*Pass, error) {
	p, err := s.repo.GetPass(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !p.ActiveAt(now) {
		return nil, nil
	}
	return p, nil
}

// ActiveUntil — дата окончания активной подписки или nil (для профиля).
func (s *Service) ActiveUntil(ctx context.Context, accountID int64) (*time.Time, error) {
	p, err := common.RetryOnce(ctx, "pass_active_until", func(ctx context.Context) (*Pass, error) {
		return s.GetActive(ctx, accountID, s.now())
	})
	if err != nil || p == nil {
		return nil, err
	}
	return &p.ExpiresAt, nil
}

// Consume засчитывает одно использование подписки за текущий UTC-день.
// При отказе счётчик не меняется, причина берётся из текущей строки.
func (s *Service) Consume(ctx context.Context, accountID int64, now time.Time) (Verdict, error) {
	day := common.UTCDay(now)
	ok, err := s.repo.Consume(ctx, accountID, day, now, s.limits)
	if err != nil {
		return 0, err
	}
	if ok {
		return Allowed, nil
	}

	usage, err := s.repo.GetUsage(ctx, accountID, day)
	if err != nil {
		return 0, err
	}
	verdict := s.limits.Check(usage, now)
	if verdict == Allowed {
		// Строку успели поменять между upsert и чтением: считаем это частым запросом
		verdict = RateLimited
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"verdict":    verdict.String(),
	}).Debug("Подписка: отказ по лимиту")
	return verdict, nil
}

// ActivateTx продлевает подписку на days дней внутри транзакции вызывающего.
// days берётся из покупки; при days <= 0 — PASS_DAYS из текущей политики.
func (s *Service) ActivateTx(ctx context.Context, q postgres.Querier, accountID int64, days int) (time.Time, error) {
	duration := s.billing.PassDuration()
	if days > 0 {
		duration = time.Duration(days) * 24 * time.Hour
	}
	expiresAt, err := s.repo.ExtendTx(ctx, q, accountID, PlanUnlimited, duration, s.now())
	if err != nil {
		return time.Time{}, err
	}
	log.WithFields(log.Fields{
		"account_id": accountID,
		"days":       int(duration / (24 * time.Hour)),
		"expires_at": expiresAt,
	}).Info("Подписка продлена")
	return expiresAt, nil
}

// SendExpiryReminders напоминает владельцам подписок, истекающих в ближайшее window.
// Для каждой даты окончания напоминание уходит один раз.
func (s *Service) SendExpiryReminders(ctx context.Context, window time.Duration, send func(tgID int64, text string)) error {
	now := s.now()
	expiring, err := s.repo.ListExpiring(ctx, now, now.Add(window))
	if err != nil {
		return err
	}

	for _, e := range expiring {
		days := int(e.ExpiresAt.Sub(now).Hours()/24) + 1
		send(e.TgID, fmt.Sprintf(
			"🌙 Ваша подписка закончится %s (через %d %s).\nПродлить можно командой /buy",
			common.FormatDate(e.ExpiresAt), days, common.PluralizeDays(days),
		))
		if err := s.repo.MarkNotified(ctx, e.PassID, e.ExpiresAt); err != nil {
			return err
		}
	}

	if len(expiring) > 0 {
		log.WithField("count", len(expiring)).Info("Напоминания о подписке отправлены")
	}
	return nil
}
