package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

type fakeStale struct {
	list []*purchases.Purchase
	err  error
	age  time.Duration
}

func (f *fakeStale) ListStale(ctx context.Context, age time.Duration) ([]*purchases.Purchase, error) {
	f.age = age
	return f.list, f.err
}

type fakeReminders struct {
	window time.Duration
	calls  int
}

func (f *fakeReminders) SendExpiryReminders(ctx context.Context, window time.Duration, send func(int64, string)) error {
	f.window = window
	f.calls++
	send(7, "reminder")
	return nil
}

type outbox map[int64][]string

func (o outbox) send(tgID int64, text string) {
	o[tgID] = append(o[tgID], text)
}

var opts = Options{AdminIDs: []int64{1, 2}, AlertAfter: 10 * time.Minute, ReminderWindow: 72 * time.Hour}

func TestAlertUncredited(t *testing.T) {
	stale := &fakeStale{list: []*purchases.Purchase{{
		ID: 5, TgID: 42, Payload: "pass30_29900", Amount: 29900,
		Status: purchases.StatusFailed, ProviderChargeID: "CHG-5",
	}}}
	sent := outbox{}
	s := NewScheduler(stale, &fakeReminders{}, opts, sent.send)

	s.alertUncredited(context.Background())

	if stale.age != opts.AlertAfter {
		t.Errorf("age = %v", stale.age)
	}
	for _, id := range opts.AdminIDs {
		if len(sent[id]) != 1 || !strings.Contains(sent[id][0], "CHG-5") {
			t.Errorf("admin %d got %v", id, sent[id])
		}
	}
}

func TestAlertUncreditedQuiet(t *testing.T) {
	for name, stale := range map[string]*fakeStale{
		"empty": {},
		"error": {err: errors.New("db down")},
	} {
		sent := outbox{}
		NewScheduler(stale, &fakeReminders{}, opts, sent.send).alertUncredited(context.Background())
		if len(sent) != 0 {
			t.Errorf("%s: nothing must be sent, got %v", name, sent)
		}
	}
}

func TestRemindPasses(t *testing.T) {
	rem := &fakeReminders{}
	sent := outbox{}
	NewScheduler(&fakeStale{}, rem, opts, sent.send).remindPasses(context.Background())

	if rem.calls != 1 || rem.window != opts.ReminderWindow || len(sent[7]) != 1 {
		t.Errorf("calls=%d window=%v sent=%v", rem.calls, rem.window, sent)
	}
}

func TestSchedules(t *testing.T) {
	for _, spec := range []string{uncreditedSpec, reminderSpec} {
		if _, err := cron.ParseStandard(spec); err != nil {
			t.Errorf("spec %q: %v", spec, err)
		}
	}

	sched, _ := cron.ParseStandard(reminderSpec)
	from := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if next := sched.Next(from); !next.Equal(time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("next reminder = %v", next)
	}
}
