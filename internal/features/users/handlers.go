package users

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
)

// Handler обрабатывает команды, связанные с учётной записью.
type Handler struct {
	bot     *tgbotapi.BotAPI
	service *Service
}

// NewHandler создаёт обработчик команд пользователей.
func NewHandler(bot *tgbotapi.BotAPI, service *Service) *Handler {
	return &Handler{bot: bot, service: service}
}

// HandleBalance показывает текущий баланс пользователя.
func (h *Handler) HandleBalance(ctx context.Context, chatID, userID int64) {
	balance, err := h.service.GetBalance(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения баланса")
		h.send(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	h.send(chatID, "💼 Ваш баланс: "+common.FormatMoney(balance))
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
