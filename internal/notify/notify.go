// Package notify определяет порт уведомлений: абстрактный приёмник
// пользовательских событий (выдача ключа, истечение срока).
// Ошибка доставки никогда не влияет на породившую событие операцию —
// она только логируется вызывающей стороной.
package notify

import "context"

// Notifier отправляет пользователю текстовое уведомление.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Func адаптирует функцию отправки к интерфейсу Notifier.
// Используется для подключения бота без зависимости от telegram-api.
type Func func(ctx context.Context, userID int64, text string) error

func (f Func) Notify(ctx context.Context, userID int64, text string) error {
	return f(ctx, userID, text)
}
