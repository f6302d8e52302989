// Package admin — service.go содержит аутентификацию админов и ручные
// операции восстановления: перезачисление покупок, начисления, промокоды, сверку.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/promo"
	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

// Service управляет админ-доступом и ручными операциями.
type Service struct {
	repo      *Repository
	cfg       *config.Config
	accounts  *ledger.Service
	purchases *purchases.Service
	promos    *promo.Service
	now       func() time.Time
}

// NewService создаёт сервис админки.
func NewService(repo *Repository, cfg *config.Config, accounts *ledger.Service, purchases *purchases.Service, promos *promo.Service) *Service {
	return &Service{
		repo:      repo,
		cfg:       cfg,
		accounts:  accounts,
		purchases: purchases,
		promos:    promos,
		now:       time.Now,
	}
}

// Login проверяет пароль и открывает сессию на SessionTTL.
// После MaxFailedAttempts неудач за LockoutPeriod вход блокируется.
func (s *Service) Login(ctx context.Context, tgID int64, password string) error {
	if !s.cfg.IsAdmin(tgID) {
		return common.ErrNotAdmin
	}

	failed, err := s.repo.CountFailedSince(ctx, tgID, s.now().Add(-LockoutPeriod))
	if err != nil {
		return err
	}
	if failed >= MaxFailedAttempts {
		log.WithField("tg_id", tgID).Warn("Вход админа заблокирован")
		return common.ErrTooManyAttempts
	}

	match := VerifyPassword(password, s.cfg.AdminPasswordHash)
	if err := s.repo.LogAttempt(ctx, tgID, match); err != nil {
		log.WithError(err).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("tg_id", tgID).Warn("Неверный пароль админа")
		return common.ErrWrongPassword
	}

	session := &Session{
		TgID:         tgID,
		SessionToken: uuid.NewString(),
		ExpiresAt:    s.now().Add(SessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return err
	}
	log.WithField("tg_id", tgID).Info("Админ авторизовался")
	return nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, tgID int64) error {
	return s.repo.DeactivateSession(ctx, tgID)
}

// Authorize проверяет, что tgID — админ с действующей сессией.
func (s *Service) Authorize(ctx context.Context, tgID int64) error {
	if !s.cfg.IsAdmin(tgID) {
		return common.ErrNotAdmin
	}
	session, err := s.repo.GetActiveSession(ctx, tgID)
	if err != nil {
		return err
	}
	if session == nil {
		return common.ErrSessionExpired
	}
	if err := s.repo.UpdateActivity(ctx, tgID); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return nil
}

// ListPurchases — последние незачисленные покупки.
func (s *Service) ListPurchases(ctx context.Context, limit int) (string, error) {
	list, err := s.purchases.ListUncredited(ctx, limit)
	if err != nil {
		return "", err
	}
	return purchases.FormatList(list), nil
}

// ListPromos — последние промокоды, созданные админами.
func (s *Service) ListPromos(ctx context.Context, limit int) (string, error) {
	list, err := s.promos.ListRecent(ctx, limit)
	if err != nil {
		return "", err
	}
	return promo.FormatList(list), nil
}

// Recredit зачисляет покупку по provider_charge_id.
func (s *Service) Recredit(ctx context.Context, adminID int64, chargeID string) (*purchases.Outcome, error) {
	out, err := s.purchases.Recredit(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"admin_id": adminID, "charge_id": chargeID}).Info("Админ перезачислил покупку")
	return out, nil
}

// Grant начисляет сообщения аккаунту по tg_id.
func (s *Service) Grant(ctx context.Context, adminID int64, req GrantRequest) (*ledger.Account, error) {
	acc, err := s.accounts.GetByTgID(ctx, req.TgID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.Grant(ctx, acc.ID, req.Amount, ledger.ReasonAdminGrant, ledger.Meta{"admin_id": adminID}); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"admin_id":   adminID,
		"account_id": acc.ID,
		"amount":     req.Amount,
	}).Info("Админ начислил сообщения")
	return acc, nil
}

// CreatePromo создаёт промокод.
func (s *Service) CreatePromo(ctx context.Context, adminID int64, req PromoRequest) (*promo.PromoCode, error) {
	c := promo.NewCode{
		Code:    req.Code,
		Award:   req.Award,
		MaxUses: req.MaxUses,
	}
	if req.Days > 0 {
		exp := s.now().Add(time.Duration(req.Days) * 24 * time.Hour)
		c.ExpiresAt = &exp
	}
	if acc, err := s.accounts.GetByTgID(ctx, adminID); err == nil {
		c.CreatedBy = &acc.ID
	} else if !errors.Is(err, common.ErrAccountNotFound) {
		return nil, err
	}
	return s.promos.Create(ctx, c)
}

// Reconcile сверяет баланс аккаунта с журналом.
func (s *Service) Reconcile(ctx context.Context, tgID int64) (string, error) {
	acc, err := s.accounts.GetByTgID(ctx, tgID)
	if err != nil {
		return "", err
	}
	rec, err := s.accounts.Reconcile(ctx, acc.ID)
	if err != nil {
		return "", err
	}
	return FormatReconciliation(tgID, rec), nil
}

// FormatReconciliation — текст сверки для админа.
func FormatReconciliation(tgID int64, rec *ledger.Reconciliation) string {
	mark := "✅ Сходится"
	if !rec.Consistent() {
		mark = "❗️ Расхождение"
	}
	return fmt.Sprintf(
		"%s (tg:%d)\n\nСообщения: %d (журнал: +%d −%d)\nСоветы: %d (журнал: +%d −%d)",
		mark, tgID,
		rec.Credits, rec.CreditGrants, rec.CreditSpends,
		rec.AdviceCredits, rec.AdviceGrants, rec.AdviceSpends,
	)
}
