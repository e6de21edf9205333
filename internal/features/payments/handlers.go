package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
)

// Префикс callback-данных кнопок выбора суммы
const (
	callbackPrefix       = "topup_"
	callbackCustomAmount = "topup_custom"
)

// Время жизни ожидания ввода произвольной суммы
const customAmountTTL = 5 * time.Minute

// Handler обрабатывает команды пополнения баланса.
type Handler struct {
	bot     *tgbotapi.BotAPI
	service *Service
	cfg     *config.Config

	// Пользователи, от которых ждём произвольную сумму
	mu      sync.Mutex
	waiting map[int64]time.Time
}

// NewHandler создаёт обработчик пополнений.
func NewHandler(bot *tgbotapi.BotAPI, service *Service, cfg *config.Config) *Handler {
	return &Handler{
		bot:     bot,
		service: service,
		cfg:     cfg,
		waiting: make(map[int64]time.Time),
	}
}

// HandleTopUpMenu показывает меню выбора суммы пополнения.
func (h *Handler) HandleTopUpMenu(ctx context.Context, chatID, userID int64) {
	var rows [][]tgbotapi.InlineKeyboardButton
	row := make([]tgbotapi.InlineKeyboardButton, 0, 2)
	for _, amount := range h.cfg.PaymentOptions {
		btn := tgbotapi.NewInlineKeyboardButtonData(
			common.FormatMoney(amount),
			callbackPrefix+strconv.FormatInt(amount, 10),
		)
		row = append(row, btn)
		if len(row) == 2 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 2)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("💰 Другая сумма", callbackCustomAmount),
	})

	msg := tgbotapi.NewMessage(chatID, "💳 Выберите сумму пополнения:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки меню пополнения")
	}
}

// HandleCallback обрабатывает нажатие кнопки выбора суммы.
// Возвращает true, если callback относится к пополнению.
func (h *Handler) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) bool {
	if query.Message == nil || !strings.HasPrefix(query.Data, callbackPrefix) {
		return false
	}

	// Сразу отвечаем на callback, чтобы убрать "часики" у кнопки
	if _, err := h.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}

	chatID := query.Message.Chat.ID
	userID := query.From.ID

	if query.Data == callbackCustomAmount {
		h.mu.Lock()
		h.waiting[userID] = time.Now().Add(customAmountTTL)
		h.mu.Unlock()

		h.send(chatID, fmt.Sprintf(
			"Введите сумму пополнения в рублях (от %d до %d):",
			common.KopecksToRubles(h.cfg.NicepayMinAmount),
			common.KopecksToRubles(h.cfg.NicepayMaxAmount),
		))
		return true
	}

	amount, err := strconv.ParseInt(strings.TrimPrefix(query.Data, callbackPrefix), 10, 64)
	if err != nil {
		log.WithField("data", query.Data).Warn("Некорректный callback выбора суммы")
		return true
	}

	h.createInvoice(ctx, chatID, userID, amount)
	return true
}

// HandleMessage перехватывает ввод произвольной суммы.
// Возвращает true, если сообщение было обработано.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) bool {
	userID := msg.From.ID

	h.mu.Lock()
	deadline, ok := h.waiting[userID]
	if ok {
		delete(h.waiting, userID)
	}
	h.mu.Unlock()

	if !ok || time.Now().After(deadline) {
		return false
	}

	rubles, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil || rubles <= 0 {
		h.send(msg.Chat.ID, "❌ Введите целое число рублей, например: 500")
		return true
	}

	h.createInvoice(ctx, msg.Chat.ID, userID, common.RublesToKopecks(rubles))
	return true
}

// createInvoice выставляет счёт и отправляет пользователю ссылку на оплату.
func (h *Handler) createInvoice(ctx context.Context, chatID, userID, amount int64) {
	url, err := h.service.CreateTopUp(ctx, userID, amount)
	if err != nil {
		if errors.Is(err, common.ErrAmountOutOfRange) {
			h.send(chatID, fmt.Sprintf(
				"❌ Сумма должна быть от %s до %s.",
				common.FormatMoney(h.cfg.NicepayMinAmount),
				common.FormatMoney(h.cfg.NicepayMaxAmount),
			))
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("Ошибка создания счёта")
		h.send(chatID, "❌ Не удалось создать счёт. Попробуйте позже.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"💳 Счёт на %s создан.\n\nОплатите по кнопке ниже. Баланс пополнится автоматически после оплаты.",
		common.FormatMoney(amount),
	))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Оплатить "+common.FormatMoney(amount), url),
		),
	)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки ссылки на оплату")
	}
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
