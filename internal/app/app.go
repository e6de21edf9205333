// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в один объект App.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/bot"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/db/postgres"
	"vpnshop.ru/telegram-bot/internal/features/admin"
	"vpnshop.ru/telegram-bot/internal/features/keys"
	"vpnshop.ru/telegram-bot/internal/features/payments"
	"vpnshop.ru/telegram-bot/internal/features/shop"
	"vpnshop.ru/telegram-bot/internal/features/users"
	"vpnshop.ru/telegram-bot/internal/jobs"
	"vpnshop.ru/telegram-bot/internal/notify"
	"vpnshop.ru/telegram-bot/internal/web"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Web       *web.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// Уведомления пользователям (истечение ключей) идут напрямую через API
	notifier := notify.Func(func(ctx context.Context, userID int64, text string) error {
		_, err := botAPI.Send(tgbotapi.NewMessage(userID, text))
		return err
	})

	// === 3. Репозитории ===
	userRepo := users.NewRepository(pool, cfg.DBQueryTimeout)
	keyRepo := keys.NewRepository(pool, cfg.DBQueryTimeout)
	shopRepo := shop.NewRepository(pool, cfg.DBQueryTimeout)
	paymentRepo := payments.NewRepository(pool, cfg.DBQueryTimeout)
	adminRepo := admin.NewRepository(pool, cfg.DBQueryTimeout)

	// === 4. Сервисы ===
	userService := users.NewService(userRepo)
	keyService := keys.NewService(keyRepo, notifier)
	shopService := shop.NewService(shopRepo, cfg)
	nicepayClient := payments.NewClient(cfg)
	paymentService := payments.NewService(paymentRepo, nicepayClient, cfg)
	adminService := admin.NewService(adminRepo, cfg.AdminPasswordHash)

	// === 5. Обработчики ===
	userHandler := users.NewHandler(botAPI, userService)
	keyHandler := keys.NewHandler(botAPI, keyService)
	shopHandler := shop.NewHandler(botAPI, shopService, cfg)
	paymentHandler := payments.NewHandler(botAPI, paymentService, cfg)
	adminHandler := admin.NewHandler(botAPI, adminService, userService, keyService, shopService, cfg)

	// === 6. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		userService,
		userHandler,
		keyHandler,
		shopHandler,
		paymentHandler,
		adminHandler,
	)

	// === 7. HTTP-сервер вебхуков ===
	webServer := web.NewServer(cfg, paymentService)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(keyService, cfg.ExpirySweepSchedule)

	return &App{
		Bot:       b,
		Web:       webServer,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Keys},
		{3, migration003Orders},
		{4, migration004Payments},
		{5, migration005Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    username VARCHAR(255),
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    has_trial BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_user_id ON users(user_id);
`

var migration002Keys = `
CREATE TABLE IF NOT EXISTS keys (
    id BIGSERIAL PRIMARY KEY,
    key_value TEXT UNIQUE NOT NULL,
    category VARCHAR(32) NOT NULL DEFAULT 'default'
        CHECK (category IN ('default', 'trial')),
    status VARCHAR(32) NOT NULL DEFAULT 'available'
        CHECK (status IN ('available', 'assigned', 'expired', 'revoked')),
    user_id BIGINT REFERENCES users(user_id),
    sold_at TIMESTAMP,
    expires_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_keys_category_status ON keys(category, status);
CREATE INDEX IF NOT EXISTS idx_keys_user_id ON keys(user_id);
-- Не больше одного выданного ключа на пользователя
CREATE UNIQUE INDEX IF NOT EXISTS uq_keys_assigned_owner ON keys(user_id) WHERE status = 'assigned';
CREATE INDEX IF NOT EXISTS idx_keys_expires_at ON keys(expires_at) WHERE status = 'assigned';
`

var migration003Orders = `
CREATE TABLE IF NOT EXISTS orders (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    key_id BIGINT UNIQUE NOT NULL REFERENCES keys(id),
    amount BIGINT NOT NULL CHECK (amount >= 0),
    status VARCHAR(32) NOT NULL DEFAULT 'completed',
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC);
`

var migration004Payments = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    provider VARCHAR(32) NOT NULL DEFAULT 'nicepay',
    user_id BIGINT NOT NULL REFERENCES users(user_id),
    amount BIGINT NOT NULL CHECK (amount > 0),
    currency VARCHAR(8) NOT NULL DEFAULT 'RUB',
    status VARCHAR(32) NOT NULL DEFAULT 'created'
        CHECK (status IN ('created', 'pending', 'success', 'failed', 'cancelled')),
    order_id VARCHAR(255) UNIQUE NOT NULL,
    provider_payment_id VARCHAR(255) UNIQUE NOT NULL,
    raw_create_response JSONB,
    last_webhook JSONB,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time DESC);
`
