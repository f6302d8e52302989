// Package promo — service.go: активация промокодов и реферальные бонусы.
package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/db/postgres"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

// Service управляет промокодами.
type Service struct {
	db       *pgxpool.Pool
	repo     *Repository
	accounts *ledger.Repository
	billing  config.Billing
	validate *validator.Validate
	now      func() time.Time
}

// NewService создаёт сервис промокодов.
func NewService(db *pgxpool.Pool, repo *Repository, accounts *ledger.Repository, billing config.Billing) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		accounts: accounts,
		billing:  billing,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Redeem активирует код для аккаунта. Все записи (активация, счётчик,
// начисления обоим участникам) делаются в одной транзакции.
func (s *Service) Redeem(ctx context.Context, accountID int64, codeText string) (*Redemption, error) {
	code := ledger.NormalizeCode(codeText)
	if code == "" {
		return nil, common.ErrPromoEmpty
	}

	var res *Redemption
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		p, err := s.resolve(ctx, tx, accountID, code)
		if err != nil {
			return err
		}

		already, err := s.repo.HasRedeemed(ctx, tx, accountID, p.ID)
		if err != nil {
			return err
		}
		if err := checkRedeemable(p, accountID, already, s.now()); err != nil {
			return err
		}

		if err := s.repo.InsertRedemption(ctx, tx, accountID, p.ID); err != nil {
			return err
		}
		if err := s.repo.IncrementUsage(ctx, tx, p.ID); err != nil {
			return err
		}

		referral := p.IsReferral && p.CreatedByAccountID != nil
		if referral {
			// Встречные активации инвайтов блокируют оба аккаунта в одном порядке
			if err := s.accounts.LockAccounts(ctx, tx, accountID, *p.CreatedByAccountID); err != nil {
				return err
			}
		}

		award := awardFor(p, s.billing.PromoDefaultCredits)
		meta := ledger.Meta{"code": p.Code, "promo_code_id": p.ID}
		if err := s.accounts.GrantTx(ctx, tx, accountID, ledger.UnitCredit, award, ledger.ReasonPromoRedeem, meta); err != nil {
			return err
		}
		res = &Redemption{PromoCodeID: p.ID, Code: p.Code, Award: award}

		if referral {
			referrerID := *p.CreatedByAccountID
			bonus := s.billing.ReferralBonusReferrer
			if bonus > 0 {
				refMeta := ledger.Meta{"code": p.Code, "invited_account_id": accountID}
				if err := s.accounts.GrantTx(ctx, tx, referrerID, ledger.UnitCredit, bonus, ledger.ReasonReferralBonus, refMeta); err != nil {
					return err
				}
			}
			if err := s.accounts.SetReferrer(ctx, tx, accountID, referrerID); err != nil {
				return err
			}
			res.ReferrerID = &referrerID
			res.ReferrerBonus = bonus
		}
		return nil
	})
	if err != nil {
		if common.IsUnavailable(err) {
			log.WithError(err).WithField("account_id", accountID).Error("Ошибка активации промокода")
		} else {
			log.WithFields(log.Fields{
				"account_id": accountID,
				"code":       code,
				"reason":     err.Error(),
			}).Info("Промокод отклонён")
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"code":       res.Code,
		"award":      res.Award,
		"referral":   res.ReferrerID != nil,
	}).Info("Промокод активирован")
	return res, nil
}

// resolve находит промокод под блокировкой. Если такого нет, но строка
// совпадает с чужим инвайт-кодом, реферальный промокод создаётся на лету.
func (s *Service) resolve(ctx context.Context, tx pgx.Tx, accountID int64, code string) (*PromoCode, error) {
	p, err := s.repo.LockByCode(ctx, tx, code)
	if err != nil || p != nil {
		return p, err
	}

	owner, err := s.accounts.GetByInviteCode(ctx, tx, code)
	if errors.Is(err, common.ErrAccountNotFound) {
		return nil, common.ErrPromoNotFound
	}
	if err != nil {
		return nil, err
	}
	if owner.ID == accountID {
		return nil, common.ErrPromoSelf
	}

	if err := s.repo.EnsureReferral(ctx, tx, code, owner.ID, s.billing.ReferralBonusInvited); err != nil {
		return nil, err
	}
	p, err = s.repo.LockByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, common.ErrPromoNotFound
	}
	return p, nil
}

// EnsureReferralCode заранее создаёт реферальный промокод аккаунта (при /start).
func (s *Service) EnsureReferralCode(ctx context.Context, acc *ledger.Account) error {
	code := ledger.NormalizeCode(acc.InviteCode)
	_, err := common.RetryOnce(ctx, "ensure_referral_code", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.EnsureReferral(ctx, s.db, code, acc.ID, s.billing.ReferralBonusInvited)
	})
	return err
}

// Create создаёт промокод от имени админа. Код не может совпадать
// с существующим промокодом или чьим-то инвайт-кодом.
func (s *Service) Create(ctx context.Context, c NewCode) (*PromoCode, error) {
	c.Code = ledger.NormalizeCode(c.Code)
	if err := s.validate.Struct(c); err != nil {
		return nil, fmt.Errorf("некорректный промокод: %w", err)
	}

	existing, err := s.repo.GetByCode(ctx, c.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.ErrPromoExists
	}
	_, err = s.accounts.GetByInviteCode(ctx, s.db, c.Code)
	if err == nil {
		return nil, common.ErrPromoInviteCode
	}
	if !errors.Is(err, common.ErrAccountNotFound) {
		return nil, err
	}

	p, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"code":     p.Code,
		"award":    p.FreeCreditsAward,
		"max_uses": p.MaxUses,
	}).Info("Промокод создан")
	return p, nil
}

// ListRecent — последние промокоды админов, новые сверху.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*PromoCode, error) {
	return common.RetryOnce(ctx, "list_promos", func(ctx context.Context) ([]*PromoCode, error) {
		return s.repo.ListRecent(ctx, limit)
	})
}

// FormatList — текст списка промокодов для админа.
func FormatList(list []*PromoCode) string {
	if len(list) == 0 {
		return "Промокодов пока нет"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎟 Промокоды (%d):\n\n", len(list)))
	for _, p := range list {
		uses := fmt.Sprintf("%d", p.UsedCount)
		if p.MaxUses != nil {
			uses = fmt.Sprintf("%d/%d", p.UsedCount, *p.MaxUses)
		}
		sb.WriteString(fmt.Sprintf("%s — %s, активаций %s", p.Code, common.FormatMessages(p.FreeCreditsAward), uses))
		if p.ExpiresAt != nil {
			sb.WriteString(", до " + common.FormatDate(*p.ExpiresAt))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SuccessText — ответ пользователю после активации.
func SuccessText(r *Redemption) string {
	return fmt.Sprintf("Промокод активирован! Начислено %s 🎉", common.FormatMessages(r.Award))
}
