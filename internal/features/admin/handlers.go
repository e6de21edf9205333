package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/keys"
	"vpnshop.ru/telegram-bot/internal/features/shop"
	"vpnshop.ru/telegram-bot/internal/features/users"
)

const adminHelpText = `🔧 Команды администратора:

/add_keys [default|trial] — импорт ключей (списком, по одному на строку)
/keys_stats — статистика склада ключей
/revoke <ключ> — отозвать выданный ключ
/user <telegram_id> — информация о пользователе
/add_balance <telegram_id> <сумма_в_рублях> — начислить баланс
/stats — общая статистика магазина
/logout — выйти из админ-панели`

// Handler обрабатывает сообщения администраторов.
type Handler struct {
	bot     *tgbotapi.BotAPI
	service *Service
	users   *users.Service
	keys    *keys.Service
	shop    *shop.Service
	cfg     *config.Config
}

// NewHandler создаёт обработчики админ-команд.
func NewHandler(bot *tgbotapi.BotAPI, service *Service, usersSvc *users.Service, keysSvc *keys.Service, shopSvc *shop.Service, cfg *config.Config) *Handler {
	return &Handler{bot: bot, service: service, users: usersSvc, keys: keysSvc, shop: shopSvc, cfg: cfg}
}

// HandleMessage обрабатывает сообщение администратора.
// Возвращает true, если сообщение было обработано как админское.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) bool {
	userID := msg.From.ID
	if !h.cfg.IsAdmin(userID) {
		return false
	}

	// Сначала состояния диалога: они перехватывают обычный текст
	if state := h.service.GetState(userID); state != nil {
		switch state.State {
		case StateAwaitingPassword:
			h.handlePassword(ctx, msg)
			return true
		case StateAwaitingKeys:
			h.handleKeysInput(ctx, msg, state)
			return true
		}
	}

	if !msg.IsCommand() {
		return false
	}

	if msg.Command() == "admin" {
		h.handleAdminCommand(ctx, msg)
		return true
	}

	switch msg.Command() {
	case "add_keys", "keys_stats", "revoke", "user", "add_balance", "stats", "logout":
	default:
		return false
	}

	// Остальные команды требуют активной сессии
	ok, err := h.service.CheckSession(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка проверки админ-сессии")
		h.reply(msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return true
	}
	if !ok {
		h.reply(msg.Chat.ID, "🔐 Требуется авторизация. Выполните /admin и введите пароль.")
		return true
	}

	switch msg.Command() {
	case "add_keys":
		h.handleAddKeys(msg)
	case "keys_stats":
		h.handleKeysStats(ctx, msg)
	case "revoke":
		h.handleRevoke(ctx, msg)
	case "user":
		h.handleUserInfo(ctx, msg)
	case "add_balance":
		h.handleAddBalance(ctx, msg)
	case "stats":
		h.handleStats(ctx, msg)
	case "logout":
		h.handleLogout(ctx, msg)
	}
	return true
}

func (h *Handler) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	ok, err := h.service.CheckSession(ctx, msg.From.ID)
	if err != nil {
		log.WithError(err).Error("Ошибка проверки админ-сессии")
		h.reply(msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	if ok {
		h.reply(msg.Chat.ID, adminHelpText)
		return
	}

	h.service.SetState(msg.From.ID, StateAwaitingPassword, nil)
	h.reply(msg.Chat.ID, "🔐 Введите пароль администратора:")
}

func (h *Handler) handlePassword(ctx context.Context, msg *tgbotapi.Message) {
	h.service.ClearState(msg.From.ID)

	// Удаляем сообщение с паролем из чата
	del := tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)
	if _, err := h.bot.Request(del); err != nil {
		log.WithError(err).Debug("Не удалось удалить сообщение с паролем")
	}

	err := h.service.Login(ctx, msg.From.ID, msg.Text)
	switch {
	case err == nil:
		h.reply(msg.Chat.ID, "✅ Авторизация успешна.\n\n"+adminHelpText)
	case errors.Is(err, common.ErrWrongPassword):
		h.reply(msg.Chat.ID, "❌ Неверный пароль. Выполните /admin для повторной попытки.")
	case errors.Is(err, common.ErrTooManyAttempts):
		h.reply(msg.Chat.ID, "🚫 Слишком много неудачных попыток. Попробуйте через час.")
	default:
		log.WithError(err).Error("Ошибка входа в админ-панель")
		h.reply(msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
	}
}

func (h *Handler) handleAddKeys(msg *tgbotapi.Message) {
	category := keys.CategoryDefault
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		category = keys.Category(arg)
		if !category.IsValid() {
			h.reply(msg.Chat.ID, "❌ Неизвестная категория. Используйте: /add_keys default или /add_keys trial")
			return
		}
	}

	h.service.SetState(msg.From.ID, StateAwaitingKeys, category)
	h.reply(msg.Chat.ID, fmt.Sprintf("📥 Отправьте ключи категории «%s» одним сообщением, по одному на строку.", category))
}

func (h *Handler) handleKeysInput(ctx context.Context, msg *tgbotapi.Message, state *State) {
	h.service.ClearState(msg.From.ID)

	category, ok := state.Data.(keys.Category)
	if !ok {
		category = keys.CategoryDefault
	}

	result, err := h.keys.BulkImport(ctx, strings.Split(msg.Text, "\n"), category)
	if err != nil {
		log.WithError(err).Error("Ошибка импорта ключей")
		h.reply(msg.Chat.ID, "❌ Не удалось импортировать ключи. Попробуйте позже.")
		return
	}

	h.reply(msg.Chat.ID, fmt.Sprintf(
		"✅ Импорт завершён.\n\nДобавлено: %d\nДубликатов пропущено: %d",
		result.Inserted, result.Duplicates,
	))
}

func (h *Handler) handleKeysStats(ctx context.Context, msg *tgbotapi.Message) {
	stats, err := h.keys.GetStats(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения статистики склада")
		h.reply(msg.Chat.ID, "❌ Не удалось получить статистику. Попробуйте позже.")
		return
	}
	if len(stats) == 0 {
		h.reply(msg.Chat.ID, "📦 Склад пуст.")
		return
	}

	var b strings.Builder
	b.WriteString("📦 Склад ключей:\n")
	for _, s := range stats {
		b.WriteString(fmt.Sprintf(
			"\n«%s»:\n  доступно: %d\n  выдано: %d\n  истекло: %d\n  отозвано: %d\n",
			s.Category, s.Available, s.Assigned, s.Expired, s.Revoked,
		))
	}
	h.reply(msg.Chat.ID, b.String())
}

func (h *Handler) handleRevoke(ctx context.Context, msg *tgbotapi.Message) {
	keyValue := strings.TrimSpace(msg.CommandArguments())
	if keyValue == "" {
		h.reply(msg.Chat.ID, "Использование: /revoke <ключ>")
		return
	}

	key, err := h.keys.Revoke(ctx, keyValue)
	if err != nil {
		log.WithError(err).Warn("Не удалось отозвать ключ")
		h.reply(msg.Chat.ID, "❌ Выданный ключ с таким значением не найден.")
		return
	}

	text := fmt.Sprintf("✅ Ключ отозван (ID %d).", key.ID)
	if key.UserID != nil {
		text += fmt.Sprintf("\nВладелец: %d", *key.UserID)
	}
	h.reply(msg.Chat.ID, text)
}

func (h *Handler) handleUserInfo(ctx context.Context, msg *tgbotapi.Message) {
	targetID, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		h.reply(msg.Chat.ID, "Использование: /user <telegram_id>")
		return
	}

	user, err := h.users.GetUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			h.reply(msg.Chat.ID, "❌ Пользователь не найден.")
			return
		}
		log.WithError(err).Error("Ошибка получения пользователя")
		h.reply(msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("👤 Пользователь %d\n", user.UserID))
	if user.Username != nil {
		b.WriteString(fmt.Sprintf("Username: @%s\n", *user.Username))
	}
	b.WriteString(fmt.Sprintf("Баланс: %s\n", common.FormatMoney(user.Balance)))
	b.WriteString(fmt.Sprintf("Тестовый ключ использован: %v\n", user.HasTrial))
	b.WriteString(fmt.Sprintf("Зарегистрирован: %s\n", common.FormatDate(user.CreatedAt)))

	key, err := h.keys.GetUserActiveKey(ctx, targetID)
	if err != nil {
		log.WithError(err).Warn("Ошибка получения активного ключа пользователя")
	} else if key != nil {
		b.WriteString(fmt.Sprintf("\n🔑 Активный ключ: %s\nДействует до: %s", key.Value, common.FormatDateTime(*key.ExpiresAt)))
	} else {
		b.WriteString("\n🔑 Активного ключа нет")
	}

	h.reply(msg.Chat.ID, b.String())
}

func (h *Handler) handleAddBalance(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		h.reply(msg.Chat.ID, "Использование: /add_balance <telegram_id> <сумма_в_рублях>")
		return
	}

	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.reply(msg.Chat.ID, "❌ Некорректный telegram_id.")
		return
	}
	rubles, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || rubles <= 0 {
		h.reply(msg.Chat.ID, "❌ Сумма должна быть положительным числом рублей.")
		return
	}

	err = h.users.ManualCredit(ctx, msg.From.ID, targetID, common.RublesToKopecks(rubles))
	if err != nil {
		if errors.Is(err, common.ErrUserNotFound) {
			h.reply(msg.Chat.ID, "❌ Пользователь не найден.")
			return
		}
		log.WithError(err).Error("Ошибка ручного начисления")
		h.reply(msg.Chat.ID, "❌ Не удалось начислить баланс. Попробуйте позже.")
		return
	}

	h.reply(msg.Chat.ID, fmt.Sprintf("✅ Пользователю %d начислено %s.", targetID, common.FormatMoney(common.RublesToKopecks(rubles))))
}

func (h *Handler) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	totals, err := h.shop.GetTotals(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения сводки заказов")
		h.reply(msg.Chat.ID, "❌ Не удалось получить статистику. Попробуйте позже.")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Статистика магазина:\n\n")
	b.WriteString(fmt.Sprintf("Заказов: %d\n", totals.Orders))
	b.WriteString(fmt.Sprintf("Выручка: %s\n", common.FormatMoney(totals.Revenue)))

	if byCat, err := h.shop.GetTotalsByCategory(ctx); err == nil {
		for _, c := range byCat {
			b.WriteString(fmt.Sprintf("  «%s»: %d заказов, %s\n", c.Category, c.Orders, common.FormatMoney(c.Revenue)))
		}
	} else {
		log.WithError(err).Warn("Ошибка получения сводки по категориям")
	}

	if count, err := h.users.CountUsers(ctx); err == nil {
		b.WriteString(fmt.Sprintf("\nПользователей: %d\n", count))
	} else {
		log.WithError(err).Warn("Ошибка подсчёта пользователей")
	}

	h.reply(msg.Chat.ID, b.String())
}

func (h *Handler) handleLogout(ctx context.Context, msg *tgbotapi.Message) {
	if err := h.service.Logout(ctx, msg.From.ID); err != nil {
		log.WithError(err).Error("Ошибка выхода из админ-панели")
		h.reply(msg.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	h.reply(msg.Chat.ID, "👋 Вы вышли из админ-панели.")
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.WithError(err).Error("Не удалось отправить сообщение")
	}
}
