package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Кнопки главного меню. По этим подписям маршрутизируются нажатия,
// поэтому менять текст можно только вместе с routeButton.
const (
	btnBuy     = "🔑 Купить ключ"
	btnTrial   = "🎁 Тестовый ключ"
	btnMyKey   = "🗝 Мой ключ"
	btnTopUp   = "💳 Пополнить баланс"
	btnBalance = "💼 Мой баланс"
	btnHistory = "📜 История покупок"
	btnHelp    = "ℹ️ Помощь"
)

// mainMenuKeyboard — постоянная reply-клавиатура магазина.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnBuy),
			tgbotapi.NewKeyboardButton(btnTrial),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyKey),
			tgbotapi.NewKeyboardButton(btnBalance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnTopUp),
			tgbotapi.NewKeyboardButton(btnHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}
