// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"vpn_shop"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Таймаут одной операции с БД. По истечении — ошибка ErrStoreTimeout,
	// и повторять можно только всю операцию целиком.
	DBQueryTimeout time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"10s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Shop (все суммы в копейках) ---
	KeyPrice          int64 `envconfig:"KEY_PRICE" default:"15000"`
	KeyValidityDays   int   `envconfig:"KEY_VALIDITY_DAYS" default:"30"`
	TrialValidityDays int   `envconfig:"TRIAL_VALIDITY_DAYS" default:"3"`

	// --- Nicepay ---
	NicepayBaseURL     string        `envconfig:"NICEPAY_BASE_URL" required:"true"`
	NicepayMerchantID  string        `envconfig:"NICEPAY_MERCHANT_ID" required:"true"`
	NicepaySecretKey   string        `envconfig:"NICEPAY_SECRET_KEY" required:"true"`
	NicepayCurrency    string        `envconfig:"NICEPAY_CURRENCY" default:"RUB"`
	NicepayMinAmount   int64         `envconfig:"NICEPAY_MIN_AMOUNT" default:"25000"`
	NicepayMaxAmount   int64         `envconfig:"NICEPAY_MAX_AMOUNT" default:"1000000"`
	NicepaySuccessURL  string        `envconfig:"NICEPAY_SUCCESS_URL" default:""`
	NicepayFailURL     string        `envconfig:"NICEPAY_FAIL_URL" default:""`
	NicepayHTTPTimeout time.Duration `envconfig:"NICEPAY_HTTP_TIMEOUT" default:"15s"`

	// Варианты сумм для кнопок пополнения, рубли, через запятую
	PaymentOptionsRaw string  `envconfig:"PAYMENT_OPTIONS" default:"300,400,500,700,1000"`
	PaymentOptions    []int64 `envconfig:"-"`

	// --- Web (вебхуки Nicepay) ---
	WebhookPort int    `envconfig:"WEBHOOK_PORT" default:"3000"`
	WebhookPath string `envconfig:"WEBHOOK_PATH" default:"/nicepay/callback"`

	// --- Jobs ---
	// Cron-выражение проверки истекших ключей (по умолчанию каждый час)
	ExpirySweepSchedule string `envconfig:"EXPIRY_SWEEP_SCHEDULE" default:"0 * * * *"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// KeyValidity возвращает срок действия обычного ключа.
func (c *Config) KeyValidity() time.Duration {
	return time.Duration(c.KeyValidityDays) * 24 * time.Hour
}

// TrialValidity возвращает срок действия тестового ключа.
func (c *Config) TrialValidity() time.Duration {
	return time.Duration(c.TrialValidityDays) * 24 * time.Hour
}

// IsAdmin проверяет, входит ли пользователь в список администраторов.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.KeyPrice <= 0 {
		return fmt.Errorf("KEY_PRICE должен быть > 0")
	}
	if c.KeyValidityDays <= 0 || c.TrialValidityDays <= 0 {
		return fmt.Errorf("некорректные KEY_VALIDITY_DAYS/TRIAL_VALIDITY_DAYS")
	}
	if c.NicepayMinAmount <= 0 || c.NicepayMaxAmount < c.NicepayMinAmount {
		return fmt.Errorf("некорректные NICEPAY_MIN_AMOUNT/NICEPAY_MAX_AMOUNT")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DBQueryTimeout <= 0 {
		return fmt.Errorf("DB_QUERY_TIMEOUT должен быть > 0")
	}
	if len(c.AdminIDs) == 0 {
		return fmt.Errorf("ADMIN_IDS не задан")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	// Суммы кнопок пополнения приходят в рублях, храним в копейках
	opts, err := parseInt64CSV(cfg.PaymentOptionsRaw)
	if err != nil {
		return nil, fmt.Errorf("PAYMENT_OPTIONS parse: %w", err)
	}
	for _, rub := range opts {
		cfg.PaymentOptions = append(cfg.PaymentOptions, rub*100)
	}

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
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
