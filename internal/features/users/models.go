// Package users управляет учётными записями покупателей и их балансами.
// models.go описывает структуру записи пользователя.
package users

import "time"

// User представляет покупателя бота.
// Создаётся при первом обращении, никогда не удаляется.
type User struct {
	ID        int64     `db:"id"`         // ID записи
	UserID    int64     `db:"user_id"`    // Telegram user ID (уникальный)
	Username  *string   `db:"username"`   // Username в Telegram (может отсутствовать)
	Balance   int64     `db:"balance"`    // Баланс в копейках, никогда не отрицательный
	HasTrial  bool      `db:"has_trial"`  // Получал ли тестовый ключ (одноразовый флаг)
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
