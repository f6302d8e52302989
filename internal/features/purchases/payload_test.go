package purchases

import (
	"errors"
	"testing"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		want    Item
		wantErr bool
	}{
		{"credits_10_10000", Item{Kind: KindCredits, Units: 10, Amount: 10000}, false},
		{"pass30_29900", Item{Kind: KindPass, Amount: 29900}, false},
		{"advicepack3_8000", Item{Kind: KindAdvicePack, Amount: 8000}, false},
		{"advice1_8000", Item{Kind: KindAdviceOne, Amount: 8000}, false},
		{" credits_50_40000 ", Item{Kind: KindCredits, Units: 50, Amount: 40000}, false},
		{"credits_10", Item{}, true},
		{"credits_0_100", Item{}, true},
		{"credits_x_100", Item{}, true},
		{"pass30_", Item{}, true},
		{"pass30_-5", Item{}, true},
		{"order_10_10000", Item{}, true},
		{"", Item{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParsePayload(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, common.ErrUnknownPayload) {
					t.Fatalf("ParsePayload(%q) err = %v, want ErrUnknownPayload", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePayload(%q): %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParsePayload(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestPayloadFormat(t *testing.T) {
	items := []Item{
		{Kind: KindCredits, Units: 30, Amount: 25000},
		{Kind: KindPass, Amount: 29900},
		{Kind: KindAdvicePack, Amount: 8000},
		{Kind: KindAdviceOne, Amount: 8000},
	}
	want := []string{"credits_30_25000", "pass30_29900", "advicepack3_8000", "advice1_8000"}
	for i, it := range items {
		if got := it.Payload(); got != want[i] {
			t.Errorf("Payload() = %q, want %q", got, want[i])
		}
	}
}

func testConfig() *config.Config {
	return &config.Config{
		CreditPacks:      []config.CreditPack{{Credits: 10, Price: 10000}, {Credits: 30, Price: 25000}},
		PassPriceKopecks: 29900,
		AdvicePackPrice:  8000,
		AdviceOnePrice:   8000,
	}
}

func TestCatalog(t *testing.T) {
	c := NewCatalog(testConfig())

	if len(c.Items) != 5 {
		t.Fatalf("catalog size = %d, want 5", len(c.Items))
	}
	if _, ok := c.Find("credits_10_10000"); !ok {
		t.Error("pack from config must be found")
	}
	if _, ok := c.Find("credits_10_1"); ok {
		t.Error("price must match the catalog")
	}
	if _, ok := c.Find("credits_50_40000"); ok {
		t.Error("pack missing from config must not be found")
	}

	for name, want := range map[string]Kind{"pass30": KindPass, "PASS30": KindPass, "credits10": KindCredits, "advice1": KindAdviceOne} {
		it, ok := c.FindOffer(name)
		if !ok || it.Kind != want {
			t.Errorf("FindOffer(%q) = %+v, %v", name, it, ok)
		}
	}
	if _, ok := c.FindOffer("credits50"); ok {
		t.Error("offer missing from config must not be found")
	}
}

func TestTitle(t *testing.T) {
	b := config.DefaultBilling()
	tests := []struct {
		item Item
		want string
	}{
		{Item{Kind: KindCredits, Units: 10, Amount: 10000}, "10 сообщений — 100₽"},
		{Item{Kind: KindPass, Amount: 29900}, "Подписка (30 дней) — 299₽"},
		{Item{Kind: KindAdvicePack, Amount: 8000}, "Пакет советов (3) — 80₽"},
		{Item{Kind: KindAdviceOne, Amount: 8000}, "Разовый совет — 80₽"},
	}
	for _, tt := range tests {
		if got := Title(tt.item, b); got != tt.want {
			t.Errorf("Title(%+v) = %q, want %q", tt.item, got, tt.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := map[int]int{-3: 1, 0: 1, 1: 1, 10: 10, 50: 50, 51: 50, 1000: 50}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestPaymentEventChargeID(t *testing.T) {
	if got := (PaymentEvent{ProviderChargeID: "P", TelegramChargeID: "T"}).ChargeID(); got != "P" {
		t.Errorf("provider id wins, got %q", got)
	}
	if got := (PaymentEvent{TelegramChargeID: "T"}).ChargeID(); got != "T" {
		t.Errorf("falls back to telegram id, got %q", got)
	}
}
