// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go подключает обработчики и запускает polling.
package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/bot/middleware"
	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/admin"
	"vpnshop.ru/telegram-bot/internal/features/keys"
	"vpnshop.ru/telegram-bot/internal/features/payments"
	"vpnshop.ru/telegram-bot/internal/features/shop"
	"vpnshop.ru/telegram-bot/internal/features/users"
)

const helpText = `ℹ️ Это магазин VPN-ключей.

🔑 Купить ключ — купить ключ с баланса
🎁 Тестовый ключ — бесплатный ключ на пробу (один раз)
🗝 Мой ключ — показать действующий ключ
💳 Пополнить баланс — оплата картой
💼 Мой баланс — текущий баланс
📜 История покупок — последние покупки

Команды: /start /help /balance /mykey /available_keys`

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	rateLimiter *middleware.RateLimiter

	userService *users.Service

	userHandler     *users.Handler
	keyHandler      *keys.Handler
	shopHandler     *shop.Handler
	paymentsHandler *payments.Handler
	adminHandler    *admin.Handler

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	userService *users.Service,
	userHandler *users.Handler,
	keyHandler *keys.Handler,
	shopHandler *shop.Handler,
	paymentsHandler *payments.Handler,
	adminHandler *admin.Handler,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:             api,
		cfg:             cfg,
		rateLimiter:     middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		userService:     userService,
		userHandler:     userHandler,
		keyHandler:      keyHandler,
		shopHandler:     shopHandler,
		paymentsHandler: paymentsHandler,
		adminHandler:    adminHandler,
		inflight:        make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Кнопки выбора суммы пополнения
	if update.CallbackQuery != nil {
		if !b.rateLimiter.Allow(update.CallbackQuery.From.ID) {
			return
		}
		b.paymentsHandler.HandleCallback(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.Text == "" || update.Message.From == nil {
		return
	}

	message := update.Message

	// Логируем входящее
	middleware.LogMessage(message)

	// Магазин работает только в личных сообщениях
	if !message.Chat.IsPrivate() {
		return
	}

	// Rate limiting
	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	// Регистрация при первом обращении — ошибки нельзя игнорировать,
	// иначе потом будет "оно не работает"
	if err := b.userService.EnsureUser(ctx, userID, message.From.UserName); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("EnsureUser failed")
	}

	// Админ-панель: пароль, состояния диалога и админ-команды
	if b.adminHandler.HandleMessage(ctx, message) {
		return
	}

	// Ожидаемый ввод произвольной суммы пополнения
	if b.paymentsHandler.HandleMessage(ctx, message) {
		return
	}

	if message.IsCommand() {
		b.routeCommand(ctx, chatID, userID, message.Command())
		return
	}

	b.routeButton(ctx, chatID, userID, message.Text)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string) {
	log.WithField("cmd", cmd).Debug("routing command")

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.sendMessage(chatID, helpText)
	case "balance":
		b.userHandler.HandleBalance(ctx, chatID, userID)
	case "mykey":
		b.keyHandler.HandleMyKey(ctx, chatID, userID)
	case "buy":
		b.shopHandler.HandleBuy(ctx, chatID, userID)
	case "trial":
		b.shopHandler.HandleTrial(ctx, chatID, userID)
	case "history":
		b.shopHandler.HandleHistory(ctx, chatID, userID)
	case "available_keys":
		b.keyHandler.HandleAvailable(ctx, chatID)
	}
}

// routeButton маршрутизирует нажатие кнопки главного меню.
func (b *Bot) routeButton(ctx context.Context, chatID, userID int64, text string) {
	switch text {
	case btnBuy:
		b.shopHandler.HandleBuy(ctx, chatID, userID)
	case btnTrial:
		b.shopHandler.HandleTrial(ctx, chatID, userID)
	case btnMyKey:
		b.keyHandler.HandleMyKey(ctx, chatID, userID)
	case btnTopUp:
		b.paymentsHandler.HandleTopUpMenu(ctx, chatID, userID)
	case btnBalance:
		b.userHandler.HandleBalance(ctx, chatID, userID)
	case btnHistory:
		b.shopHandler.HandleHistory(ctx, chatID, userID)
	case btnHelp:
		b.sendMessage(chatID, helpText)
	}
}

// handleStart отправляет приветствие с главным меню.
func (b *Bot) handleStart(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"👋 Добро пожаловать в магазин VPN-ключей!\n\nЦена ключа: %s на %d %s.\nВыберите действие в меню ниже.",
		common.FormatMoney(b.cfg.KeyPrice), b.cfg.KeyValidityDays, common.PluralizeDays(b.cfg.KeyValidityDays),
	))
	msg.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки приветствия")
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
