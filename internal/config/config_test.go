package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		TelegramBotToken:        "123:abc",
		BotUsername:             "kartataro1_bot",
		DBHost:                  "localhost",
		DBPort:                  5432,
		DBUser:                  "botuser",
		DBPassword:              "secret",
		DBName:                  "tarot_bot",
		DBSSLMode:               "disable",
		DBMaxConns:              10,
		DBMinConns:              2,
		AppEnv:                  "test",
		AppLogLevel:             "debug",
		BotMaxInflight:          8,
		BotUpdateTimeoutSeconds: 60,
		AdminPasswordHash:       "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		DefaultFreeCredits:      2,
		PromoDefaultCredits:     10,
		ReferralBonusInvited:    10,
		ReferralBonusReferrer:   10,
		PassDays:                30,
		PassDayLimit:            25,
		PassBurstPerMin:         2,
		AdvicePackSize:          3,
		PaymentsProviderName:    "yookassa",
		Currency:                "RUB",
		PassPriceKopecks:        29900,
		AdvicePackPrice:         8000,
		AdviceOnePrice:          8000,
		CreditPacks:             []CreditPack{{Credits: 10, Price: 10000}},
		ReadingTimeout:          30 * time.Second,
		UncreditedAlertAfter:    10 * time.Minute,
		PassReminderWindow:      72 * time.Hour,
		RateLimitRequests:       10,
		RateLimitWindow:         time.Minute,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero day limit", func(c *Config) { c.PassDayLimit = 0 }, true},
		{"zero burst", func(c *Config) { c.PassBurstPerMin = 0 }, true},
		{"negative welcome", func(c *Config) { c.DefaultFreeCredits = -1 }, true},
		{"min conns above max", func(c *Config) { c.DBMinConns = 50 }, true},
		{"bad hash", func(c *Config) { c.AdminPasswordHash = "plain" }, true},
		{"bad currency", func(c *Config) { c.Currency = "RUBLE" }, true},
		{"bad sslmode", func(c *Config) { c.DBSSLMode = "maybe" }, true},
		{"no packs", func(c *Config) { c.CreditPacks = nil }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseInt64CSV(t *testing.T) {
	ids, err := parseInt64CSV(" 1, 22 ,333,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 22 || ids[2] != 333 {
		t.Errorf("got %v", ids)
	}

	if _, err := parseInt64CSV("1,abc"); err == nil {
		t.Error("expected error for non-numeric id")
	}

	ids, err = parseInt64CSV("")
	if err != nil || ids != nil {
		t.Errorf("empty input: got %v, %v", ids, err)
	}
}

func TestParseCreditPacks(t *testing.T) {
	packs, err := parseCreditPacks("10:10000, 30:25000,50:40000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []CreditPack{{10, 10000}, {30, 25000}, {50, 40000}}
	if len(packs) != len(want) {
		t.Fatalf("got %d packs, want %d", len(packs), len(want))
	}
	for i := range want {
		if packs[i] != want[i] {
			t.Errorf("pack %d = %+v, want %+v", i, packs[i], want[i])
		}
	}

	for _, bad := range []string{"10", "x:100", "10:0", "-1:100"} {
		if _, err := parseCreditPacks(bad); err == nil {
			t.Errorf("parseCreditPacks(%q) expected error", bad)
		}
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := validConfig()
	cfg.AdminIDs = []int64{42, 7}
	if !cfg.IsAdmin(7) {
		t.Error("7 should be admin")
	}
	if cfg.IsAdmin(8) {
		t.Error("8 should not be admin")
	}
}

func TestPassMinInterval(t *testing.T) {
	tests := []struct {
		burst int
		want  time.Duration
	}{
		{2, 30 * time.Second},
		{1, 60 * time.Second},
		{0, 60 * time.Second},
		{7, 8 * time.Second},
		{120, time.Second},
	}
	for _, tt := range tests {
		b := DefaultBilling()
		b.PassBurstPerMin = tt.burst
		if got := b.PassMinInterval(); got != tt.want {
			t.Errorf("burst %d: got %v, want %v", tt.burst, got, tt.want)
		}
	}
}

func TestBillingFromConfig(t *testing.T) {
	cfg := validConfig()
	cfg.ReadingRefundOnFailure = true
	b := cfg.Billing()
	if b.PassDayLimit != 25 || b.PassDays != 30 || !b.RefundOnFailure {
		t.Errorf("unexpected billing: %+v", b)
	}
	if b.PassDuration() != 30*24*time.Hour {
		t.Errorf("PassDuration = %v", b.PassDuration())
	}
}
