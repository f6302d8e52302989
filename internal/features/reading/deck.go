package reading

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// Card — карта колоды.
type Card struct {
	Name     string
	Upright  string
	Reversed string
}

// MajorArcana — 22 старших аркана.
var MajorArcana = []Card{
	{"Шут", "новое начало, спонтанность, вера в путь", "безрассудство, риск без оглядки"},
	{"Маг", "воля, мастерство, умение действовать", "манипуляции, нерешительность"},
	{"Верховная Жрица", "интуиция, скрытое знание", "тайны, отказ слушать себя"},
	{"Императрица", "изобилие, забота, рост", "зависимость, застой"},
	{"Император", "порядок, структура, опора", "жёсткость, контроль"},
	{"Иерофант", "традиции, наставник, обучение", "бунт, отказ от правил"},
	{"Влюблённые", "выбор сердцем, союз", "разлад, сомнения в выборе"},
	{"Колесница", "движение вперёд, победа воли", "потеря направления"},
	{"Сила", "мягкая сила, терпение, смелость", "неуверенность, вспышки гнева"},
	{"Отшельник", "поиск ответа внутри, уединение", "изоляция, одиночество"},
	{"Колесо Фортуны", "перемены, поворот судьбы", "затянувшаяся полоса неудач"},
	{"Справедливость", "честность, равновесие, последствия", "несправедливость, уклонение"},
	{"Повешенный", "пауза, новый взгляд", "напрасная жертва, промедление"},
	{"Смерть", "завершение этапа, трансформация", "страх перемен"},
	{"Умеренность", "баланс, гармония, мера", "крайности, нетерпение"},
	{"Дьявол", "соблазн, привязанности", "освобождение от пут"},
	{"Башня", "внезапные перемены, озарение", "отложенный кризис"},
	{"Звезда", "надежда, вдохновение", "разочарование, потеря веры"},
	{"Луна", "иллюзии, подсознание, сны", "прояснение, выход из тумана"},
	{"Солнце", "радость, успех, ясность", "временные тучи"},
	{"Суд", "пробуждение, итог, прощение", "самокритика, упущенный шанс"},
	{"Мир", "завершённость, целостность", "незаконченное дело"},
}

// Drawn — вытянутая карта.
type Drawn struct {
	Card     Card
	Reversed bool
}

func (d Drawn) String() string {
	if d.Reversed {
		return fmt.Sprintf("%s (перевёрнутая) — %s", d.Card.Name, d.Card.Reversed)
	}
	return fmt.Sprintf("%s — %s", d.Card.Name, d.Card.Upright)
}

var spreadPositions = []string{"Прошлое", "Настоящее", "Будущее"}

// DeckGenerator собирает расклад из старших арканов без внешних вызовов.
type DeckGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDeckGenerator создаёт генератор. src == nil — случайный источник.
func NewDeckGenerator(src rand.Source) *DeckGenerator {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1|1)
	}
	return &DeckGenerator{rnd: rand.New(src)}
}

// Draw вытягивает n разных карт.
func (g *DeckGenerator) Draw(n int) []Drawn {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n > len(MajorArcana) {
		n = len(MajorArcana)
	}
	idx := g.rnd.Perm(len(MajorArcana))[:n]
	out := make([]Drawn, 0, n)
	for _, i := range idx {
		out = append(out, Drawn{Card: MajorArcana[i], Reversed: g.rnd.IntN(2) == 1})
	}
	return out
}

// Generate реализует Generator.
func (g *DeckGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var sb strings.Builder
	switch req.Kind {
	case KindAdvice:
		card := g.Draw(1)[0]
		sb.WriteString("💡 Совет карт\n\n")
		sb.WriteString(card.String())
	default:
		cards := g.Draw(len(spreadPositions))
		sb.WriteString("🔮 Ваш расклад")
		if q := strings.TrimSpace(req.Question); q != "" {
			sb.WriteString(fmt.Sprintf(" на вопрос «%s»", q))
		}
		sb.WriteString("\n\n")
		for i, c := range cards {
			sb.WriteString(fmt.Sprintf("%s: %s\n", spreadPositions[i], c))
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
