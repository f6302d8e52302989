// Package purchases — service.go: обработка оплаты, начисление и ручное восстановление.
package purchases

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

// PassActivator продлевает подписку внутри транзакции покупки.
type PassActivator interface {
	ActivateTx(ctx context.Context, q postgres.Querier, accountID int64, days int) (time.Time, error)
}

// Service управляет покупками.
type Service struct {
	db       *pgxpool.Pool
	repo     *Repository
	accounts *ledger.Service
	passes   PassActivator
	billing  config.Billing
	validate *validator.Validate
	now      func() time.Time
}

// NewService создаёт сервис покупок.
func NewService(db *pgxpool.Pool, repo *Repository, accounts *ledger.Service, passes PassActivator, billing config.Billing) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		accounts: accounts,
		passes:   passes,
		billing:  billing,
		validate: validator.New(),
		now:      time.Now,
	}
}

// unitsFor — сколько единиц даёт позиция.
func (s *Service) unitsFor(it Item) int {
	switch it.Kind {
	case KindCredits:
		return it.Units
	case KindPass:
		return s.billing.PassDays
	case KindAdvicePack:
		return s.billing.AdvicePackSize
	case KindAdviceOne:
		return 1
	default:
		return 0
	}
}

// HandlePayment проводит успешный платёж: аккаунт, запись покупки, начисление.
// Повторное уведомление о том же платеже возвращает ErrDuplicateCharge и
// ничего не начисляет. Неразобранный payload и несовпадение суммы
// сохраняются со статусом failed, чтобы админ увидел их в /purchases.
func (s *Service) HandlePayment(ctx context.Context, ev PaymentEvent) (*Outcome, error) {
	if err := s.validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidPayment, err)
	}

	acc, err := s.accounts.EnsureAccount(ctx, ev.TgID, ev.Username)
	if err != nil {
		return nil, err
	}

	meta := ledger.Meta{}
	if ev.Raw != nil {
		meta["raw"] = ev.Raw
	}
	if ev.TelegramChargeID != "" {
		meta["telegram_charge_id"] = ev.TelegramChargeID
	}

	item, rejectErr := ParsePayload(ev.Payload)
	if rejectErr != nil {
		item = Item{Kind: KindUnknown}
	} else if item.Amount != ev.TotalAmount {
		rejectErr = fmt.Errorf("%w: payload %d, оплачено %d", common.ErrAmountMismatch, item.Amount, ev.TotalAmount)
	}

	status := StatusPaid
	if rejectErr != nil {
		status = StatusFailed
		meta["error"] = rejectErr.Error()
	}

	stored := Item{Kind: item.Kind, Units: s.unitsFor(item), Amount: ev.TotalAmount}
	np := NewPurchase{
		AccountID:        acc.ID,
		TgID:             ev.TgID,
		Item:             stored,
		Currency:         ev.Currency,
		Payload:          ev.Payload,
		Provider:         ev.Provider,
		ProviderChargeID: ev.ChargeID(),
		Status:           status,
		Meta:             meta,
	}

	fields := log.Fields{
		"account_id": acc.ID,
		"charge_id":  np.ProviderChargeID,
		"payload":    ev.Payload,
		"amount":     ev.TotalAmount,
	}

	id, err := s.repo.Create(ctx, np)
	if errors.Is(err, common.ErrDuplicateCharge) {
		log.WithFields(fields).Info("Повторное уведомление об оплате, пропускаем")
		return nil, err
	}
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Не удалось сохранить покупку")
		return nil, err
	}
	if rejectErr != nil {
		log.WithFields(fields).WithField("reason", rejectErr.Error()).Warn("Покупка сохранена как failed")
		return nil, rejectErr
	}

	p := &Purchase{
		ID:               id,
		AccountID:        acc.ID,
		TgID:             ev.TgID,
		Kind:             stored.Kind,
		Units:            stored.Units,
		Amount:           stored.Amount,
		Currency:         ev.Currency,
		Payload:          ev.Payload,
		Provider:         ev.Provider,
		ProviderChargeID: np.ProviderChargeID,
		Status:           StatusPaid,
		Meta:             meta,
	}

	out, err := s.Credit(ctx, p, ledger.ReasonPurchase, nil)
	if err != nil {
		log.WithError(err).WithFields(fields).Error("Покупка не зачислена")
		// Покупка попадёт в /purchases и в почасовую сводку. Если не удалось
		// даже отметить failed, она останется paid и тоже будет видна.
		if markErr := s.repo.MarkFailed(ctx, id, err.Error()); markErr != nil {
			log.WithError(markErr).WithFields(fields).Warn("Не удалось отметить покупку как failed")
		}
		return nil, err
	}
	log.WithFields(fields).WithField("kind", string(p.Kind)).Info("Покупка зачислена")
	return out, nil
}

// Credit в одной транзакции переводит покупку в credited и начисляет
// единицы по её виду. Количество берётся из покупки, а не из текущей политики.
// ErrAlreadyCredited — покупка уже зачислена.
func (s *Service) Credit(ctx context.Context, p *Purchase, reason string, extra ledger.Meta) (*Outcome, error) {
	if p.Kind == KindUnknown || p.Units <= 0 {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownPayload, p.Payload)
	}

	meta := ledger.Meta{"purchase_id": p.ID, "charge_id": p.ProviderChargeID}
	for k, v := range extra {
		meta[k] = v
	}

	out := &Outcome{Purchase: p}
	grants := s.accounts.Repo()
	err := postgres.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		ok, err := s.repo.MarkCredited(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrAlreadyCredited
		}

		switch p.Kind {
		case KindCredits:
			out.Credits = p.Units
			return grants.GrantTx(ctx, tx, p.AccountID, ledger.UnitCredit, p.Units, reason, meta)
		case KindPass:
			until, err := s.passes.ActivateTx(ctx, tx, p.AccountID, p.Units)
			if err != nil {
				return err
			}
			out.PassUntil = &until
			return nil
		default:
			out.Advice = p.Units
			return grants.GrantTx(ctx, tx, p.AccountID, ledger.UnitAdvice, p.Units, reason, meta)
		}
	})
	if err != nil {
		return nil, err
	}
	p.Status = StatusCredited
	return out, nil
}

// Recredit — ручное начисление по provider_charge_id.
func (s *Service) Recredit(ctx context.Context, chargeID string) (*Outcome, error) {
	p, err := s.repo.GetByCharge(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusCredited {
		return nil, common.ErrAlreadyCredited
	}

	out, err := s.Credit(ctx, p, ledger.ReasonAdminRecredit, ledger.Meta{
		"recredit_of": p.ID,
		"charge_id":   chargeID,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"purchase_id": p.ID,
		"charge_id":   chargeID,
		"account_id":  p.AccountID,
	}).Info("Покупка зачислена вручную")
	return out, nil
}

// ListUncredited — незачисленные покупки для админа, новые сверху.
func (s *Service) ListUncredited(ctx context.Context, limit int) ([]*Purchase, error) {
	return common.RetryOnce(ctx, "list_uncredited", func(ctx context.Context) ([]*Purchase, error) {
		return s.repo.ListUncredited(ctx, limit, time.Time{})
	})
}

// ListStale — незачисленные покупки старше age (для оповещения админов).
func (s *Service) ListStale(ctx context.Context, age time.Duration) ([]*Purchase, error) {
	return s.repo.ListUncredited(ctx, MaxListLimit, s.now().Add(-age))
}

// FormatList — текст списка покупок для админа.
func FormatList(list []*Purchase) string {
	if len(list) == 0 {
		return "✅ Незачисленных покупок нет"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🧾 Незачисленные покупки (%d):\n\n", len(list)))
	for _, p := range list {
		sb.WriteString(fmt.Sprintf("#%d %s tg:%d %s %s [%s]\n%s\n\n",
			p.ID, common.FormatDateTime(p.CreatedAt), p.TgID, p.Payload,
			common.FormatRubles(p.Amount), p.Status, p.ProviderChargeID,
		))
	}
	sb.WriteString("Зачислить вручную: /recredit <charge_id>")
	return sb.String()
}

// OutcomeText — ответ пользователю после оплаты.
func OutcomeText(out *Outcome) string {
	note := ""
	if out.Purchase != nil && out.Purchase.ProviderChargeID != "" {
		note = "\nID платежа: " + out.Purchase.ProviderChargeID
	}
	switch {
	case out.PassUntil != nil:
		return fmt.Sprintf("✅ Подписка активирована.\nДоступ до: %s%s", common.FormatDate(*out.PassUntil), note)
	case out.Credits > 0:
		return fmt.Sprintf("✅ Начислено %s%s", common.FormatMessages(out.Credits), note)
	case out.Advice > 0:
		return fmt.Sprintf("✅ Начислено %s. Используйте команду /advice%s", common.FormatAdvices(out.Advice), note)
	default:
		return "✅ Оплата получена." + note
	}
}
