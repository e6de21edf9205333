package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// Handler обрабатывает команды покупки ключей.
type Handler struct {
	bot     *tgbotapi.BotAPI
	service *Service
	cfg     *config.Config
}

// NewHandler создаёт обработчик покупок.
func NewHandler(bot *tgbotapi.BotAPI, service *Service, cfg *config.Config) *Handler {
	return &Handler{bot: bot, service: service, cfg: cfg}
}

// HandleBuy покупает обычный ключ и показывает его пользователю.
func (h *Handler) HandleBuy(ctx context.Context, chatID, userID int64) {
	key, _, err := h.service.BuyKey(ctx, userID)
	if err != nil {
		h.sendPurchaseError(chatID, err)
		return
	}

	h.send(chatID, fmt.Sprintf(
		"✅ Покупка успешна!\n\n🔑 Ваш ключ:\n<code>%s</code>\n\nДействует до: %s\nСписано: %s",
		key.Value, common.FormatDateTime(*key.ExpiresAt), common.FormatMoney(h.cfg.KeyPrice),
	))
}

// HandleTrial выдаёт бесплатный тестовый ключ.
func (h *Handler) HandleTrial(ctx context.Context, chatID, userID int64) {
	key, _, err := h.service.ClaimTrialKey(ctx, userID)
	if err != nil {
		h.sendPurchaseError(chatID, err)
		return
	}

	days := h.cfg.TrialValidityDays
	h.send(chatID, fmt.Sprintf(
		"🎁 Ваш тестовый ключ на %d %s:\n\n<code>%s</code>\n\nДействует до: %s",
		days, common.PluralizeDays(days), key.Value, common.FormatDateTime(*key.ExpiresAt),
	))
}

// HandleHistory показывает последние покупки пользователя.
func (h *Handler) HandleHistory(ctx context.Context, chatID, userID int64) {
	items, err := h.service.GetUserHistory(ctx, userID, 10)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения истории покупок")
		h.send(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	if len(items) == 0 {
		h.send(chatID, "📜 У вас пока нет покупок.")
		return
	}

	var b strings.Builder
	b.WriteString("📜 Ваши покупки:\n")
	for _, item := range items {
		label := "ключ"
		if item.KeyCategory == keys.CategoryTrial {
			label = "тестовый ключ"
		}
		b.WriteString(fmt.Sprintf(
			"\n%s — %s, %s",
			common.FormatDate(item.CreatedAt), label, common.FormatMoney(item.Amount),
		))
	}
	h.send(chatID, b.String())
}

// sendPurchaseError переводит ошибку покупки в сообщение пользователю.
func (h *Handler) sendPurchaseError(chatID int64, err error) {
	switch {
	case errors.Is(err, common.ErrInsufficientFunds):
		h.send(chatID, fmt.Sprintf(
			"💳 Недостаточно средств. Цена ключа: %s.\n\nПополните баланс через меню.",
			common.FormatMoney(h.cfg.KeyPrice),
		))
	case errors.Is(err, common.ErrNoInventory):
		h.send(chatID, "😔 Ключи закончились. Попробуйте позже.")
	case errors.Is(err, common.ErrActiveKeyExists):
		h.send(chatID, "У вас уже есть действующий ключ. Посмотреть его: «🔑 Мой ключ».")
	case errors.Is(err, common.ErrTrialAlreadyUsed):
		h.send(chatID, "🎁 Тестовый ключ можно получить только один раз.")
	case errors.Is(err, common.ErrTrialBlocked):
		h.send(chatID, "🎁 Тестовый ключ недоступен после покупки платного.")
	default:
		log.WithError(err).Error("Ошибка оформления покупки")
		h.send(chatID, "❌ Произошла ошибка. Попробуйте позже.")
	}
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
