package keys

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
)

// Handler обрабатывает команды просмотра ключей.
type Handler struct {
	bot     *tgbotapi.BotAPI
	service *Service
}

// NewHandler создаёт обработчик команд ключей.
func NewHandler(bot *tgbotapi.BotAPI, service *Service) *Handler {
	return &Handler{bot: bot, service: service}
}

// HandleMyKey показывает действующий ключ пользователя.
func (h *Handler) HandleMyKey(ctx context.Context, chatID, userID int64) {
	key, err := h.service.GetUserActiveKey(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения ключа")
		h.send(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	if key == nil {
		h.send(chatID, "У вас нет активного ключа. Нажмите «🔑 Купить ключ», чтобы приобрести.")
		return
	}

	h.send(chatID, fmt.Sprintf(
		"🔑 Ваш ключ:\n\n<code>%s</code>\n\nДействует до: %s",
		key.Value, common.FormatDateTime(*key.ExpiresAt),
	))
}

// HandleAvailable показывает, сколько ключей осталось в продаже.
func (h *Handler) HandleAvailable(ctx context.Context, chatID int64) {
	count, err := h.service.AvailableCount(ctx, CategoryDefault)
	if err != nil {
		log.WithError(err).Error("Ошибка подсчёта доступных ключей")
		h.send(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	if count == 0 {
		h.send(chatID, "😔 Сейчас ключей в продаже нет. Загляните позже.")
		return
	}
	h.send(chatID, fmt.Sprintf("📦 В продаже: %d %s", count, common.PluralizeKeys(count)))
}

func (h *Handler) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
