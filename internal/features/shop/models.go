// Package shop — оформление покупки ключа: атомарное резервирование
// ключа со склада, списание с баланса и запись заказа.
// models.go описывает структуру заказа и сводные отчёты.
package shop

import (
	"time"

	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// Статус заказа. Заказ создаётся только последним шагом успешной покупки,
// поэтому других статусов нет.
const OrderStatusCompleted = "completed"

// Order — запись о покупке. Одному ключу соответствует не больше одного
// заказа (уникальный индекс по key_id). После создания не изменяется.
type Order struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`    // Покупатель
	KeyID     int64     `db:"key_id"`     // Купленный ключ
	Amount    int64     `db:"amount"`     // Списанная сумма в копейках (0 для тестового)
	Status    string    `db:"status"`     // Всегда 'completed'
	CreatedAt time.Time `db:"created_at"` // Дата покупки
}

// PurchaseParams — параметры одной покупки.
type PurchaseParams struct {
	UserID   int64
	Price    int64 // в копейках; 0 для тестового ключа
	Category keys.Category
	Validity time.Duration // срок действия ключа с момента выдачи
	Trial    bool          // тестовая выдача: проверить и взвести флаг has_trial
}

// HistoryItem — строка истории покупок пользователя (заказ + данные ключа).
type HistoryItem struct {
	Amount      int64
	CreatedAt   time.Time
	KeyCategory keys.Category
	KeyValue    string
}

// Totals — сводка по всем заказам (для админ-статистики).
type Totals struct {
	Orders  int64 // Всего заказов
	Revenue int64 // Суммарная выручка в копейках
}

// CategoryTotals — сводка заказов по категории ключей.
type CategoryTotals struct {
	Category keys.Category
	Orders   int64
	Revenue  int64
}
