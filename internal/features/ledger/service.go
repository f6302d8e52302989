// Package ledger — service.go содержит бизнес-логику леджера:
// регистрация аккаунтов, начисления, списания и история.
package ledger

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
)

// Service управляет балансами аккаунтов.
type Service struct {
	repo    *Repository
	billing config.Billing
}

// NewService создаёт новый сервис леджера.
func NewService(repo *Repository, billing config.Billing) *Service {
	return &Service{repo: repo, billing: billing}
}

// Repo — доступ к репозиторию для транзакционных сценариев (промокоды, покупки).
func (s *Service) Repo() *Repository {
	return s.repo
}

// EnsureAccount возвращает аккаунт пользователя, создавая его при первом обращении.
// Идемпотентно, поэтому при сбое БД повторяется один раз.
func (s *Service) EnsureAccount(ctx context.Context, tgID int64, username string) (*Account, error) {
	return common.RetryOnce(ctx, "ensure_account", func(ctx context.Context) (*Account, error) {
		acc, created, err := s.repo.GetOrCreateAccount(ctx, tgID, username, s.billing.DefaultFreeCredits)
		if err != nil {
			return nil, err
		}
		if created {
			log.WithFields(log.Fields{
				"account_id":  acc.ID,
				"tg_id":       tgID,
				"invite_code": acc.InviteCode,
				"welcome":     s.billing.DefaultFreeCredits,
			}).Info("Новый аккаунт создан")
		}
		return acc, nil
	})
}

// GetByTgID возвращает аккаунт по Telegram ID.
func (s *Service) GetByTgID(ctx context.Context, tgID int64) (*Account, error) {
	return s.repo.GetByTgID(ctx, tgID)
}

// Grant начисляет сообщения на счёт.
func (s *Service) Grant(ctx context.Context, accountID int64, amount int, reason string, meta Meta) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.repo.Grant(ctx, accountID, amount, reason, meta); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"account_id": accountID,
		"amount":     amount,
		"reason":     reason,
	}).Info("Начислены сообщения")
	return nil
}

// GrantAdvice начисляет советы на счёт.
func (s *Service) GrantAdvice(ctx context.Context, accountID int64, amount int, reason string, meta Meta) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.repo.GrantAdvice(ctx, accountID, amount, reason, meta); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"account_id": accountID,
		"amount":     amount,
		"reason":     reason,
	}).Info("Начислены советы")
	return nil
}

// SpendCredit списывает одно сообщение. Не повторяется при сбое:
// повтор после неизвестного исхода мог бы списать дважды.
func (s *Service) SpendCredit(ctx context.Context, accountID int64, meta Meta) (bool, error) {
	return s.repo.SpendCredit(ctx, accountID, meta)
}

// SpendAdvice списывает один совет.
func (s *Service) SpendAdvice(ctx context.Context, accountID int64, meta Meta) (bool, error) {
	return s.repo.SpendAdvice(ctx, accountID, meta)
}

// GetBalance возвращает баланс сообщений.
func (s *Service) GetBalance(ctx context.Context, accountID int64) (int, error) {
	return common.RetryOnce(ctx, "get_balance", func(ctx context.Context) (int, error) {
		credits, _, err := s.repo.GetBalances(ctx, accountID)
		return credits, err
	})
}

// GetAdviceBalance возвращает баланс советов.
func (s *Service) GetAdviceBalance(ctx context.Context, accountID int64) (int, error) {
	return common.RetryOnce(ctx, "get_advice_balance", func(ctx context.Context) (int, error) {
		_, advice, err := s.repo.GetBalances(ctx, accountID)
		return advice, err
	})
}

// Reconcile сверяет баланс аккаунта с журналом и пишет предупреждение при расхождении.
func (s *Service) Reconcile(ctx context.Context, accountID int64) (*Reconciliation, error) {
	rec, err := s.repo.Reconcile(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !rec.Consistent() {
		log.WithFields(log.Fields{
			"account_id":    accountID,
			"credits":       rec.Credits,
			"credit_grants": rec.CreditGrants,
			"credit_spends": rec.CreditSpends,
			"advice":        rec.AdviceCredits,
			"advice_grants": rec.AdviceGrants,
			"advice_spends": rec.AdviceSpends,
		}).Error("Баланс не сходится с журналом")
	}
	return rec, nil
}

// GetTransactionHistory возвращает форматированную историю последних 10 операций.
func (s *Service) GetTransactionHistory(ctx context.Context, accountID int64) (string, error) {
	transactions, err := s.repo.GetTransactions(ctx, accountID, 10)
	if err != nil {
		return "", err
	}
	return FormatHistory(transactions), nil
}

// FormatHistory рендерит список транзакций для пользователя.
func FormatHistory(transactions []*Transaction) string {
	if len(transactions) == 0 {
		return "📋 У вас пока нет операций"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Последние операции (%d):\n\n", len(transactions)))
	for i, tx := range transactions {
		sign := "+"
		if tx.Type == TxSpend {
			sign = "-"
		}
		unit := common.PluralizeMessages(tx.Amount)
		if tx.Unit == UnitAdvice {
			unit = common.PluralizeAdvices(tx.Amount)
		}
		sb.WriteString(fmt.Sprintf("%d. %s | %s%d %s | %s\n",
			i+1, common.FormatDateTime(tx.CreatedAt), sign, tx.Amount, unit, reasonTitle(tx.Reason)))
	}
	return sb.String()
}

func reasonTitle(reason string) string {
	switch reason {
	case ReasonWelcomeBonus:
		return "приветственный бонус"
	case ReasonCreditSpend:
		return "расклад"
	case ReasonAdviceSpend:
		return "совет"
	case ReasonPromoRedeem:
		return "промокод"
	case ReasonReferralBonus:
		return "бонус за приглашение"
	case ReasonPurchase:
		return "покупка"
	case ReasonAdminRecredit, ReasonAdminGrant:
		return "начисление администратора"
	case ReasonGenerationRefund:
		return "возврат"
	default:
		return reason
	}
}
