// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: ежечасная проверка незачисленных
// покупок и ежедневные напоминания об окончании подписки.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

const (
	// Ежечасно, в начале часа
	uncreditedSpec = "0 * * * *"
	// Ежедневно в 09:00 UTC
	reminderSpec = "0 9 * * *"
)

// StalePurchases — источник зависших покупок.
type StalePurchases interface {
	ListStale(ctx context.Context, age time.Duration) ([]*purchases.Purchase, error)
}

// PassReminders рассылает напоминания об окончании подписки.
type PassReminders interface {
	SendExpiryReminders(ctx context.Context, window time.Duration, send func(tgID int64, text string)) error
}

// Options — параметры расписания.
type Options struct {
	AdminIDs       []int64
	AlertAfter     time.Duration
	ReminderWindow time.Duration
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	purchases StalePurchases
	passes    PassReminders
	opts      Options
	sendFunc  func(tgID int64, text string)
}

// NewScheduler создаёт планировщик задач. Все расписания в UTC.
func NewScheduler(stale StalePurchases, passes PassReminders, opts Options, sendFunc func(tgID int64, text string)) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		purchases: stale,
		passes:    passes,
		opts:      opts,
		sendFunc:  sendFunc,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(uncreditedSpec, func() { s.alertUncredited(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(reminderSpec, func() { s.remindPasses(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	log.Info("Планировщик задач запущен (UTC)")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// alertUncredited сообщает админам о покупках, которые не зачислены дольше AlertAfter.
func (s *Scheduler) alertUncredited(ctx context.Context) {
	list, err := s.purchases.ListStale(ctx, s.opts.AlertAfter)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка проверки незачисленных покупок")
		return
	}
	if len(list) == 0 {
		log.Debug("[CRON] Незачисленных покупок нет")
		return
	}

	log.WithField("count", len(list)).Warn("[CRON] Есть незачисленные покупки")
	text := "⚠️ Покупки без зачисления\n\n" + purchases.FormatList(list)
	for _, id := range s.opts.AdminIDs {
		s.sendFunc(id, text)
	}
}

func (s *Scheduler) remindPasses(ctx context.Context) {
	log.Debug("[CRON] Напоминания о подписке")
	if err := s.passes.SendExpiryReminders(ctx, s.opts.ReminderWindow, s.sendFunc); err != nil {
		log.WithError(err).Error("[CRON] Ошибка напоминаний о подписке")
	}
}
