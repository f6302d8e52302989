// Package config загружает конфигурацию бота из переменных окружения.
// Сначала подхватывается .env (если он есть), затем envconfig маппит
// переменные на поля структуры, а validator проверяет значения.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true" validate:"required"`
	BotUsername      string  `envconfig:"BOT_USERNAME" default:"kartataro1_bot" validate:"required"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres" validate:"required"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432" validate:"gt=0,lt=65536"`
	DBUser     string `envconfig:"DB_USER" default:"botuser" validate:"required"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"tarot_bot" validate:"required"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25" validate:"gt=0"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5" validate:"gte=0,ltefield=DBMaxConns"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development" validate:"oneof=development production test"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64" validate:"gt=0"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60" validate:"gt=0"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true" validate:"startswith=$argon2id$"`

	// --- Credits ---
	DefaultFreeCredits    int `envconfig:"DEFAULT_FREE_CREDITS" default:"2" validate:"gte=0"`
	PromoDefaultCredits   int `envconfig:"PROMO_DEFAULT_CREDITS" default:"10" validate:"gt=0"`
	ReferralBonusInvited  int `envconfig:"REFERRAL_BONUS_INVITED" default:"10" validate:"gte=0"`
	ReferralBonusReferrer int `envconfig:"REFERRAL_BONUS_REFERRER" default:"10" validate:"gte=0"`

	// --- Pass (подписка) ---
	PassDays        int `envconfig:"PASS_DAYS" default:"30" validate:"gt=0"`
	PassDayLimit    int `envconfig:"PASS_DAY_LIMIT" default:"25" validate:"gt=0"`
	PassBurstPerMin int `envconfig:"PASS_BURST_PER_MIN" default:"2" validate:"gt=0"`

	// --- Advice ---
	AdvicePackSize int `envconfig:"ADVICE_PACK_SIZE" default:"3" validate:"gt=0"`

	// --- Payments ---
	PaymentsProviderToken string `envconfig:"PAYMENTS_PROVIDER_TOKEN"`
	PaymentsProviderName  string `envconfig:"PAYMENTS_PROVIDER_NAME" default:"yookassa" validate:"required"`
	Currency              string `envconfig:"CURRENCY" default:"RUB" validate:"len=3"`
	PassPriceKopecks      int    `envconfig:"PASS_PRICE_KOPECKS" default:"29900" validate:"gt=0"`
	AdvicePackPrice       int    `envconfig:"ADVICE_PACK_PRICE_KOPECKS" default:"8000" validate:"gt=0"`
	AdviceOnePrice        int    `envconfig:"ADVICE_ONE_PRICE_KOPECKS" default:"8000" validate:"gt=0"`

	// Пакеты сообщений: "кол-во:цена_в_копейках" через запятую
	CreditPacksRaw string       `envconfig:"CREDIT_PACKS" default:"10:10000,30:25000,50:40000"`
	CreditPacks    []CreditPack `envconfig:"-"`

	// --- Reading ---
	ReadingRefundOnFailure bool          `envconfig:"READING_REFUND_ON_FAILURE" default:"false"`
	ReadingTimeout         time.Duration `envconfig:"READING_TIMEOUT" default:"30s" validate:"gt=0"`

	// --- Jobs ---
	UncreditedAlertAfter time.Duration `envconfig:"UNCREDITED_ALERT_AFTER" default:"10m" validate:"gt=0"`
	PassReminderWindow   time.Duration `envconfig:"PASS_REMINDER_WINDOW" default:"72h" validate:"gt=0"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10" validate:"gt=0"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m" validate:"gt=0"`
}

// CreditPack — пакет сообщений из каталога покупок.
type CreditPack struct {
	Credits int
	Price   int // в копейках
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// IsAdmin проверяет, входит ли tg_id в ADMIN_IDS.
func (c *Config) IsAdmin(tgID int64) bool {
	for _, id := range c.AdminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

// Validate проверяет значения по тегам validate.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("некорректная настройка %s: правило %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}
	if len(c.CreditPacks) == 0 {
		return fmt.Errorf("CREDIT_PACKS не задан")
	}
	return nil
}

// Billing собирает политику начислений и лимитов из конфига.
// Создаётся один раз на старте и передаётся в сервисы.
func (c *Config) Billing() Billing {
	return Billing{
		DefaultFreeCredits:    c.DefaultFreeCredits,
		PromoDefaultCredits:   c.PromoDefaultCredits,
		ReferralBonusInvited:  c.ReferralBonusInvited,
		ReferralBonusReferrer: c.ReferralBonusReferrer,
		PassDays:              c.PassDays,
		PassDayLimit:          c.PassDayLimit,
		PassBurstPerMin:       c.PassBurstPerMin,
		AdvicePackSize:        c.AdvicePackSize,
		RefundOnFailure:       c.ReadingRefundOnFailure,
	}
}

// Load читает .env и переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	// .env необязателен: в Docker переменные приходят из compose
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("не удалось прочитать .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	packs, err := parseCreditPacks(cfg.CreditPacksRaw)
	if err != nil {
		return nil, fmt.Errorf("CREDIT_PACKS parse: %w", err)
	}
	cfg.CreditPacks = packs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseCreditPacks разбирает строку вида "10:10000,30:25000".
func parseCreditPacks(s string) ([]CreditPack, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []CreditPack
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		credits, price, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("bad pack %q: ожидается кол-во:цена", item)
		}
		c, err := strconv.Atoi(strings.TrimSpace(credits))
		if err != nil || c <= 0 {
			return nil, fmt.Errorf("bad pack credits %q", item)
		}
		p, err := strconv.Atoi(strings.TrimSpace(price))
		if err != nil || p <= 0 {
			return nil, fmt.Errorf("bad pack price %q", item)
		}
		out = append(out, CreditPack{Credits: c, Price: p})
	}
	return out, nil
}
