package admin

import (
	"strings"
	"testing"

	"serotonyl.ru/tarot-bot/internal/features/ledger"
	"serotonyl.ru/tarot-bot/internal/features/purchases"
)

// Дешёвые параметры, чтобы тесты не тратили 64 MB на хеш.
var testParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", testParams)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("hash format: %s", hash)
	}
	if !VerifyPassword("s3cret", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("s3cret!", hash) {
		t.Error("wrong password accepted")
	}

	other, _ := HashPassword("s3cret", testParams)
	if other == hash {
		t.Error("salt must differ between hashes")
	}
}

func TestVerifyPasswordMalformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$garbage$AAAA$AAAA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$AAAA",
	} {
		if VerifyPassword("x", h) {
			t.Errorf("malformed hash %q accepted", h)
		}
	}
}

func TestParseGrant(t *testing.T) {
	tests := []struct {
		args    string
		want    GrantRequest
		wantErr bool
	}{
		{"123 5", GrantRequest{TgID: 123, Amount: 5}, false},
		{"  123   5 ", GrantRequest{TgID: 123, Amount: 5}, false},
		{"123", GrantRequest{}, true},
		{"123 0", GrantRequest{}, true},
		{"123 -2", GrantRequest{}, true},
		{"abc 5", GrantRequest{}, true},
		{"123 5 6", GrantRequest{}, true},
	}
	for _, tt := range tests {
		got, err := parseGrant(tt.args)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseGrant(%q) err = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseGrant(%q) = %+v, want %+v", tt.args, got, tt.want)
		}
	}
}

func TestParsePromo(t *testing.T) {
	req, err := parsePromo("SPRING 15 100 7")
	if err != nil {
		t.Fatal(err)
	}
	if req.Code != "SPRING" || req.Award != 15 || req.MaxUses == nil || *req.MaxUses != 100 || req.Days != 7 {
		t.Errorf("req = %+v", req)
	}

	req, err = parsePromo("FREE 10")
	if err != nil || req.MaxUses != nil || req.Days != 0 {
		t.Errorf("optional args: %+v, %v", req, err)
	}

	req, err = parsePromo("FREE 10 0 30")
	if err != nil || req.MaxUses != nil || req.Days != 30 {
		t.Errorf("zero max uses means unlimited: %+v, %v", req, err)
	}

	for _, bad := range []string{"", "FREE", "FREE x", "FREE -1", "FREE 10 x", "FREE 10 1 -3", "A 1 2 3 4"} {
		if _, err := parsePromo(bad); err == nil {
			t.Errorf("parsePromo(%q) must fail", bad)
		}
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		args    string
		want    int
		wantErr bool
	}{
		{"", purchases.DefaultListLimit, false},
		{"5", 5, false},
		{"1000", purchases.MaxListLimit, false},
		{"0", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseLimit(tt.args)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v", tt.args, got, err)
		}
	}
}

func TestFormatReconciliation(t *testing.T) {
	ok := FormatReconciliation(7, &ledger.Reconciliation{Credits: 3, CreditGrants: 5, CreditSpends: 2})
	if !strings.HasPrefix(ok, "✅") || !strings.Contains(ok, "tg:7") {
		t.Errorf("consistent: %s", ok)
	}
	bad := FormatReconciliation(7, &ledger.Reconciliation{Credits: 4, CreditGrants: 5, CreditSpends: 2})
	if !strings.HasPrefix(bad, "❗️") {
		t.Errorf("mismatch: %s", bad)
	}
}

func TestIsCommand(t *testing.T) {
	for _, cmd := range []string{CmdLogin, CmdLogout, CmdPurchases, CmdRecredit, CmdGrant, CmdNewPromo, CmdPromos, CmdReconcile} {
		if !IsCommand(cmd) {
			t.Errorf("%s must be an admin command", cmd)
		}
	}
	if IsCommand("reading") {
		t.Error("reading is not an admin command")
	}
}
