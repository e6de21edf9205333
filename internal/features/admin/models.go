// Package admin реализует админ-панель магазина с парольной аутентификацией.
// models.go описывает структуры сессий, попыток входа и состояний диалога.
package admin

import "time"

// Session — активная сессия администратора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// State — состояние диалога с админом (конечный автомат).
// Импорт ключей работает по шагам: команда → ввод ключей списком.
type State struct {
	State     string      // Текущее состояние
	Data      interface{} // Данные контекста (например, категория импортируемых ключей)
	ExpiresAt time.Time   // Когда состояние истекает (5 минут)
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""                  // Нет активного состояния
	StateAwaitingPassword = "awaiting_password" // Ждём пароль
	StateAwaitingKeys     = "awaiting_keys"     // Ждём список ключей для импорта
)
