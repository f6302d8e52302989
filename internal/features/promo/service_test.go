package promo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
	"serotonyl.ru/tarot-bot/internal/db/postgres/pgtest"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
)

type fixture struct {
	svc      *Service
	accounts *ledger.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := pgtest.Open(t)
	accounts := ledger.NewRepository(pool)
	return &fixture{
		svc:      NewService(pool, NewRepository(pool), accounts, config.DefaultBilling()),
		accounts: accounts,
	}
}

func (f *fixture) account(t *testing.T, tgID int64) *ledger.Account {
	t.Helper()
	acc, _, err := f.accounts.GetOrCreateAccount(context.Background(), tgID, "", 0)
	if err != nil {
		t.Fatalf("account %d: %v", tgID, err)
	}
	return acc
}

func (f *fixture) credits(t *testing.T, accountID int64) int {
	t.Helper()
	credits, _, err := f.accounts.GetBalances(context.Background(), accountID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return credits
}

func (f *fixture) assertConsistent(t *testing.T, accountID int64) {
	t.Helper()
	rec, err := f.accounts.Reconcile(context.Background(), accountID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !rec.Consistent() {
		t.Errorf("account %d inconsistent: %+v", accountID, rec)
	}
}

func TestRedeemSingleUseCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1001)
	b := f.account(t, 1002)

	if _, err := f.svc.Create(ctx, NewCode{Code: "ABC123", Award: 10, MaxUses: intPtr(1)}); err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := f.svc.Redeem(ctx, a.ID, " abc123 ")
	if err != nil {
		t.Fatalf("redeem A: %v", err)
	}
	if res.Award != 10 {
		t.Errorf("award = %d", res.Award)
	}
	if got := f.credits(t, a.ID); got != 10 {
		t.Errorf("A credits = %d, want 10", got)
	}

	if _, err := f.svc.Redeem(ctx, b.ID, "ABC123"); !errors.Is(err, common.ErrPromoExhausted) {
		t.Errorf("redeem B: got %v, want exhausted", err)
	}
	if _, err := f.svc.Redeem(ctx, a.ID, "ABC123"); !errors.Is(err, common.ErrPromoAlreadyRedeemed) {
		t.Errorf("redeem A again: got %v, want already redeemed", err)
	}
	if got := f.credits(t, b.ID); got != 0 {
		t.Errorf("B credits = %d, want 0", got)
	}

	f.assertConsistent(t, a.ID)
	f.assertConsistent(t, b.ID)
}

func TestRedeemRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1101)

	if _, err := f.svc.Redeem(ctx, a.ID, "   "); !errors.Is(err, common.ErrPromoEmpty) {
		t.Errorf("empty: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, a.ID, "NOPE42"); !errors.Is(err, common.ErrPromoNotFound) {
		t.Errorf("unknown: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, a.ID, strings.ToLower(a.InviteCode)); !errors.Is(err, common.ErrPromoSelf) {
		t.Errorf("own invite code: %v", err)
	}
	if got := f.credits(t, a.ID); got != 0 {
		t.Errorf("rejections must not grant, credits = %d", got)
	}
}

func TestRedeemReferral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.account(t, 1201)
	friend := f.account(t, 1202)

	res, err := f.svc.Redeem(ctx, friend.ID, owner.InviteCode)
	if err != nil {
		t.Fatalf("redeem referral: %v", err)
	}
	if res.ReferrerID == nil || *res.ReferrerID != owner.ID {
		t.Fatalf("referrer not set: %+v", res)
	}
	if got := f.credits(t, friend.ID); got != 10 {
		t.Errorf("friend credits = %d, want 10", got)
	}
	if got := f.credits(t, owner.ID); got != 10 {
		t.Errorf("owner credits = %d, want 10", got)
	}

	updated, _ := f.accounts.GetByID(ctx, friend.ID)
	if updated.ReferredByAccountID == nil || *updated.ReferredByAccountID != owner.ID {
		t.Error("referred_by_account_id must point to the owner")
	}

	// Владелец не может активировать собственный, уже созданный реферальный код
	if _, err := f.svc.Redeem(ctx, owner.ID, owner.InviteCode); !errors.Is(err, common.ErrPromoSelf) {
		t.Errorf("owner self redeem: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, friend.ID, owner.InviteCode); !errors.Is(err, common.ErrPromoAlreadyRedeemed) {
		t.Errorf("friend second redeem: %v", err)
	}

	f.assertConsistent(t, owner.ID)
	f.assertConsistent(t, friend.ID)
}

func TestEnsureReferralCodeIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.account(t, 1301)

	for i := 0; i < 3; i++ {
		if err := f.svc.EnsureReferralCode(ctx, owner); err != nil {
			t.Fatalf("ensure %d: %v", i, err)
		}
	}
	p, err := f.svc.repo.GetByCode(ctx, owner.InviteCode)
	if err != nil || p == nil {
		t.Fatalf("referral code missing: %v", err)
	}
	if !p.IsReferral || !p.CreatedBy(owner.ID) {
		t.Errorf("unexpected referral row: %+v", p)
	}
}

func TestRedeemConcurrentSameAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.account(t, 1401)
	if _, err := f.svc.Create(ctx, NewCode{Code: "RACE01", Award: 7}); err != nil {
		t.Fatal(err)
	}

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Redeem(ctx, a.ID, "RACE01"); err == nil {
				ok.Add(1)
			} else if !errors.Is(err, common.ErrPromoAlreadyRedeemed) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 {
		t.Errorf("successful redemptions = %d, want 1", ok.Load())
	}
	if got := f.credits(t, a.ID); got != 7 {
		t.Errorf("credits = %d, want 7", got)
	}
	f.assertConsistent(t, a.ID)
}

func TestRedeemConcurrentMaxUses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, NewCode{Code: "LIMIT3", Award: 5, MaxUses: intPtr(3)}); err != nil {
		t.Fatal(err)
	}

	var accounts []*ledger.Account
	for i := 0; i < 10; i++ {
		accounts = append(accounts, f.account(t, int64(1500+i)))
	}

	var ok atomic.Int32
	var wg sync.WaitGroup
	for _, acc := range accounts {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := f.svc.Redeem(ctx, id, "LIMIT3"); err == nil {
				ok.Add(1)
			} else if !errors.Is(err, common.ErrPromoExhausted) {
				t.Errorf("unexpected error: %v", err)
			}
		}(acc.ID)
	}
	wg.Wait()

	if ok.Load() != 3 {
		t.Errorf("successful redemptions = %d, want 3", ok.Load())
	}
	p, _ := f.svc.repo.GetByCode(ctx, "LIMIT3")
	if p.UsedCount != 3 {
		t.Errorf("used_count = %d, want 3", p.UsedCount)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, NewCode{Code: "x!", Award: 1}); err == nil {
		t.Error("invalid code must be rejected")
	}
	if _, err := f.svc.Create(ctx, NewCode{Code: "DUP001", Award: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Create(ctx, NewCode{Code: "dup001", Award: 1}); !errors.Is(err, common.ErrPromoExists) {
		t.Errorf("duplicate: %v", err)
	}
}

func TestRedeemMutualInvitesConcurrently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		a := f.account(t, int64(1600+round*2))
		b := f.account(t, int64(1601+round*2))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, pair := range [][2]*ledger.Account{{a, b}, {b, a}} {
			wg.Add(1)
			go func(i int, who, owner *ledger.Account) {
				defer wg.Done()
				_, errs[i] = f.svc.Redeem(ctx, who.ID, owner.InviteCode)
			}(i, pair[0], pair[1])
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("round %d redeem %d: %v", round, i, err)
			}
		}
		// Каждый получил бонус за активацию и бонус за приглашение
		if got := f.credits(t, a.ID); got != 20 {
			t.Errorf("round %d: A credits = %d, want 20", round, got)
		}
		if got := f.credits(t, b.ID); got != 20 {
			t.Errorf("round %d: B credits = %d, want 20", round, got)
		}
		f.assertConsistent(t, a.ID)
		f.assertConsistent(t, b.ID)
	}
}

func TestCreateRejectsInviteCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.account(t, 1701)

	_, err := f.svc.Create(ctx, NewCode{Code: strings.ToLower(owner.InviteCode), Award: 5})
	if !errors.Is(err, common.ErrPromoInviteCode) {
		t.Fatalf("got %v, want ErrPromoInviteCode", err)
	}
	p, err := f.svc.repo.GetByCode(ctx, owner.InviteCode)
	if err != nil || p != nil {
		t.Errorf("promo must not be created: %+v %v", p, err)
	}
}

func TestListRecent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.account(t, 1801)
	if err := f.svc.EnsureReferralCode(ctx, owner); err != nil {
		t.Fatal(err)
	}
	for _, c := range []NewCode{{Code: "FIRST1", Award: 3}, {Code: "SECOND", Award: 5, MaxUses: intPtr(10)}} {
		if _, err := f.svc.Create(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Code, err)
		}
	}

	list, err := f.svc.ListRecent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	// реферальные коды в список не попадают
	if len(list) != 2 {
		t.Fatalf("listed %d codes, want 2", len(list))
	}
	text := FormatList(list)
	if !strings.Contains(text, "SECOND") || !strings.Contains(text, "0/10") {
		t.Errorf("unexpected list text:\n%s", text)
	}
}
