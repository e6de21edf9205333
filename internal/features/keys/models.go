// Package keys управляет складом VPN-ключей: импортом, жизненным циклом
// и проверкой сроков действия.
// models.go описывает структуру ключа и закрытые перечисления статусов и типов.
package keys

import "time"

// Status — статус ключа. Закрытое перечисление, валидируется на границе БД
// (CHECK-констрейнт в миграции) и в IsValid.
type Status string

const (
	// StatusAvailable — ключ на складе, доступен к продаже
	StatusAvailable Status = "available"
	// StatusAssigned — ключ выдан пользователю и действует
	StatusAssigned Status = "assigned"
	// StatusExpired — срок действия истёк (терминальный)
	StatusExpired Status = "expired"
	// StatusRevoked — отозван администратором (терминальный)
	StatusRevoked Status = "revoked"
)

// IsValid сообщает, входит ли статус в перечисление.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusExpired, StatusRevoked:
		return true
	}
	return false
}

// Category — тип ключа.
type Category string

const (
	// CategoryDefault — обычный платный ключ
	CategoryDefault Category = "default"
	// CategoryTrial — бесплатный тестовый ключ с коротким сроком
	CategoryTrial Category = "trial"
)

// IsValid сообщает, входит ли категория в перечисление.
func (c Category) IsValid() bool {
	return c == CategoryDefault || c == CategoryTrial
}

// Key представляет один VPN-ключ.
// Инварианты: user_id заполнен тогда и только тогда, когда статус assigned
// (у терминальных статусов владелец сохраняется для истории);
// expires_at заполнен для assigned и expired.
type Key struct {
	ID        int64      `db:"id"`         // ID записи
	Value     string     `db:"key_value"`  // Значение ключа (уникальное)
	Category  Category   `db:"category"`   // Тип: default | trial
	Status    Status     `db:"status"`     // Текущий статус
	UserID    *int64     `db:"user_id"`    // Владелец (nil, пока не выдан)
	SoldAt    *time.Time `db:"sold_at"`    // Когда выдан
	ExpiresAt *time.Time `db:"expires_at"` // Когда истекает (nil, пока не выдан)
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// Stats — количество ключей по статусам для одной категории.
type Stats struct {
	Category  Category
	Available int64
	Assigned  int64
	Expired   int64
	Revoked   int64
}

// ImportResult — итог массового импорта ключей.
type ImportResult struct {
	Inserted   int // Добавлено новых
	Duplicates int // Пропущено дубликатов
}
