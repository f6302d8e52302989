package purchases

import (
	"fmt"
	"strconv"
	"strings"

	"serotonyl.ru/tarot-bot/internal/common"
	"serotonyl.ru/tarot-bot/internal/config"
)

// Kind — что куплено.
type Kind string

const (
	KindCredits    Kind = "credits"
	KindPass       Kind = "pass30"
	KindAdvicePack Kind = "advicepack3"
	KindAdviceOne  Kind = "advice1"
	// KindUnknown — payload не разобран, покупка сохраняется как failed
	KindUnknown Kind = "unknown"
)

// Item — позиция счёта. Payload счёта однозначно задаёт Item.
type Item struct {
	Kind   Kind
	Units  int // сообщений в пакете; для остальных видов 0
	Amount int // цена в копейках
}

// Payload кодирует позицию в строку invoice payload:
// credits_{n}_{amount}, pass30_{amount}, advicepack3_{amount}, advice1_{amount}.
func (it Item) Payload() string {
	if it.Kind == KindCredits {
		return fmt.Sprintf("%s_%d_%d", it.Kind, it.Units, it.Amount)
	}
	return fmt.Sprintf("%s_%d", it.Kind, it.Amount)
}

// ParsePayload разбирает payload. Любой незнакомый формат — ErrUnknownPayload.
func ParsePayload(payload string) (Item, error) {
	parts := strings.Split(strings.TrimSpace(payload), "_")

	atoi := func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil && n > 0
	}

	switch Kind(parts[0]) {
	case KindCredits:
		if len(parts) != 3 {
			break
		}
		units, ok1 := atoi(parts[1])
		amount, ok2 := atoi(parts[2])
		if ok1 && ok2 {
			return Item{Kind: KindCredits, Units: units, Amount: amount}, nil
		}
	case KindPass, KindAdvicePack, KindAdviceOne:
		if len(parts) != 2 {
			break
		}
		if amount, ok := atoi(parts[1]); ok {
			return Item{Kind: Kind(parts[0]), Amount: amount}, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %q", common.ErrUnknownPayload, payload)
}

// Catalog — что продаёт бот.
type Catalog struct {
	Items []Item
}

// NewCatalog собирает каталог из конфига.
func NewCatalog(cfg *config.Config) Catalog {
	var items []Item
	for _, p := range cfg.CreditPacks {
		items = append(items, Item{Kind: KindCredits, Units: p.Credits, Amount: p.Price})
	}
	items = append(items,
		Item{Kind: KindPass, Amount: cfg.PassPriceKopecks},
		Item{Kind: KindAdvicePack, Amount: cfg.AdvicePackPrice},
		Item{Kind: KindAdviceOne, Amount: cfg.AdviceOnePrice},
	)
	return Catalog{Items: items}
}

// Contains — позиция есть в каталоге с той же ценой.
func (c Catalog) Contains(it Item) bool {
	for _, x := range c.Items {
		if x == it {
			return true
		}
	}
	return false
}

// Find ищет позицию по payload.
func (c Catalog) Find(payload string) (Item, bool) {
	it, err := ParsePayload(payload)
	if err != nil || !c.Contains(it) {
		return Item{}, false
	}
	return it, true
}

// Offer — короткое имя позиции для /buy: credits10, pass30, advicepack3, advice1.
func (it Item) Offer() string {
	if it.Kind == KindCredits {
		return fmt.Sprintf("%s%d", it.Kind, it.Units)
	}
	return string(it.Kind)
}

// FindOffer ищет позицию по короткому имени без учёта регистра.
func (c Catalog) FindOffer(name string) (Item, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, it := range c.Items {
		if it.Offer() == name {
			return it, true
		}
	}
	return Item{}, false
}

// Title — заголовок счёта.
func Title(it Item, billing config.Billing) string {
	price := common.FormatRubles(it.Amount)
	switch it.Kind {
	case KindCredits:
		return fmt.Sprintf("%s — %s", common.FormatMessages(it.Units), price)
	case KindPass:
		return fmt.Sprintf("Подписка (%d %s) — %s", billing.PassDays, common.PluralizeDays(billing.PassDays), price)
	case KindAdvicePack:
		return fmt.Sprintf("Пакет советов (%d) — %s", billing.AdvicePackSize, price)
	case KindAdviceOne:
		return fmt.Sprintf("Разовый совет — %s", price)
	default:
		return price
	}
}

// Description — описание счёта.
func Description(it Item, billing config.Billing) string {
	switch it.Kind {
	case KindCredits:
		return fmt.Sprintf("Пакет на %s", common.FormatMessages(it.Units))
	case KindPass:
		return "Безлимитный месячный доступ"
	case KindAdvicePack:
		return fmt.Sprintf("Пакет из %s (используется командой /advice)", common.FormatAdvices(billing.AdvicePackSize))
	case KindAdviceOne:
		return "Один совет к раскладу"
	default:
		return ""
	}
}
