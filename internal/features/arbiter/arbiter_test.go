package arbiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/pass"
)

type fakePasses struct {
	active   bool
	verdict  pass.Verdict
	err      error
	consumed int
}

func (f *fakePasses) GetActive(ctx context.Context, accountID int64, now time.Time) (*pass.Pass, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.active {
		return nil, nil
	}
	return &pass.Pass{AccountID: accountID, ExpiresAt: now.Add(time.Hour)}, nil
}

func (f *fakePasses) Consume(ctx context.Context, accountID int64, now time.Time) (pass.Verdict, error) {
	f.consumed++
	return f.verdict, nil
}

type fakeBalances struct {
	credits int
	advice  int
	err     error
	metas   []ledger.Meta
}

func (f *fakeBalances) SpendCredit(ctx context.Context, accountID int64, meta ledger.Meta) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.metas = append(f.metas, meta)
	if f.credits == 0 {
		return false, nil
	}
	f.credits--
	return true, nil
}

func (f *fakeBalances) SpendAdvice(ctx context.Context, accountID int64, meta ledger.Meta) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.advice == 0 {
		return false, nil
	}
	f.advice--
	return true, nil
}

func TestReadingArbiter(t *testing.T) {
	tests := []struct {
		name        string
		passes      fakePasses
		credits     int
		want        Status
		wantCredits int
	}{
		{"pass allowed", fakePasses{active: true, verdict: pass.Allowed}, 5, StatusOKPass, 5},
		{"pass rate limited keeps credits", fakePasses{active: true, verdict: pass.RateLimited}, 5, StatusRateLimited, 5},
		{"pass day limit keeps credits", fakePasses{active: true, verdict: pass.DayLimitExceeded}, 5, StatusDayLimitExceeded, 5},
		{"no pass uses credit", fakePasses{}, 3, StatusOKCredit, 2},
		{"no pass no credits", fakePasses{}, 0, StatusNoCredits, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes := tt.passes
			balances := &fakeBalances{credits: tt.credits}
			a := NewReadingArbiter(&passes, balances)

			res, err := a.SpendOne(context.Background(), &ledger.Account{ID: 1})
			if err != nil {
				t.Fatalf("SpendOne: %v", err)
			}
			if res.Status != tt.want {
				t.Errorf("status = %v, want %v", res.Status, tt.want)
			}
			if balances.credits != tt.wantCredits {
				t.Errorf("credits = %d, want %d", balances.credits, tt.wantCredits)
			}
		})
	}
}

func TestReadingArbiterInactivePassSkipsConsume(t *testing.T) {
	passes := &fakePasses{active: false, verdict: pass.Allowed}
	a := NewReadingArbiter(passes, &fakeBalances{credits: 1})

	if _, err := a.SpendOne(context.Background(), &ledger.Account{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if passes.consumed != 0 {
		t.Errorf("inactive pass must not touch usage counter")
	}
}

func TestAdviceArbiter(t *testing.T) {
	tests := []struct {
		name   string
		active bool
		advice int
		want   Status
	}{
		{"pass gives unlimited advice", true, 0, StatusOKPass},
		{"advice token", false, 2, StatusOKAdvice},
		{"nothing left", false, 0, StatusNoAdvice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passes := &fakePasses{active: tt.active, verdict: pass.DayLimitExceeded}
			a := NewAdviceArbiter(passes, &fakeBalances{advice: tt.advice})

			res, err := a.SpendOne(context.Background(), &ledger.Account{ID: 1})
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != tt.want {
				t.Errorf("status = %v, want %v", res.Status, tt.want)
			}
			if passes.consumed != 0 {
				t.Error("advice must not count against pass limits")
			}
		})
	}
}

func TestSpendOnePropagatesStorageError(t *testing.T) {
	storageErr := common.Unavailable("списание", errors.New("connection refused"))
	a := NewReadingArbiter(&fakePasses{}, &fakeBalances{err: storageErr})

	_, err := a.SpendOne(context.Background(), &ledger.Account{ID: 1})
	if !common.IsUnavailable(err) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

func TestSpendOneMetaCarriesOpID(t *testing.T) {
	balances := &fakeBalances{credits: 1}
	a := NewReadingArbiter(&fakePasses{}, balances)

	res, err := a.SpendOne(context.Background(), &ledger.Account{ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if res.OpID == "" || len(balances.metas) != 1 || balances.metas[0]["op_id"] != res.OpID {
		t.Errorf("op_id not propagated: %+v %+v", res, balances.metas)
	}
}

func TestStatusHelpers(t *testing.T) {
	if !StatusOKPass.OK() || StatusOKPass.FundedByBalance() {
		t.Error("OK_PASS")
	}
	if !StatusOKCredit.FundedByBalance() || !StatusOKAdvice.FundedByBalance() {
		t.Error("balance-funded statuses")
	}
	if StatusNoCredits.OK() || StatusRateLimited.OK() {
		t.Error("rejections are not OK")
	}
	if StatusUnavailable.String() != "UNAVAILABLE" {
		t.Error("unavailable name")
	}
}
