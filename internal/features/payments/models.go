// Package payments управляет пополнениями баланса через платёжную систему
// Nicepay: создание счетов, учёт платежей и сверка входящих вебхуков.
// models.go описывает структуру платежа и закрытое перечисление статусов.
package payments

import "time"

// Status — статус платежа. Монотонный: достигнув success, платёж
// уже не может его потерять.
type Status string

const (
	// StatusCreated — счёт создан, оплата не начиналась
	StatusCreated Status = "created"
	// StatusPending — провайдер сообщил о начале оплаты
	StatusPending Status = "pending"
	// StatusSuccess — оплата подтверждена, баланс пополнен (терминальный)
	StatusSuccess Status = "success"
	// StatusFailed — оплата не прошла
	StatusFailed Status = "failed"
	// StatusCancelled — счёт отменён
	StatusCancelled Status = "cancelled"
)

// IsValid сообщает, входит ли статус в перечисление.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Payment — запись о пополнении баланса.
// Создаётся при выставлении счёта, изменяется только сверкой вебхуков,
// никогда не удаляется. Сырые ответы провайдера хранятся для разбора споров.
type Payment struct {
	ID                int64     `db:"id"`
	Provider          string    `db:"provider"`            // Всегда 'nicepay'
	UserID            int64     `db:"user_id"`             // Кто пополняет
	Amount            int64     `db:"amount"`              // Сумма в копейках
	Currency          string    `db:"currency"`            // Валюта (RUB)
	Status            Status    `db:"status"`              // Текущий статус
	OrderID           string    `db:"order_id"`            // Наш идемпотентный ID счёта
	ProviderPaymentID string    `db:"provider_payment_id"` // ID платежа у провайдера (уникальный)
	RawCreateResponse []byte    `db:"raw_create_response"` // Сырой ответ при создании счёта
	LastWebhook       []byte    `db:"last_webhook"`        // Последний принятый вебхук
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Invoice — результат создания счёта у провайдера.
type Invoice struct {
	OrderID           string // Наш локальный ID счёта
	ProviderPaymentID string // ID платежа у провайдера
	PaymentURL        string // Ссылка на оплату для пользователя
	RawResponse       []byte // Сырой ответ провайдера
}

// ReconcileResult — итог применения одного вебхука.
type ReconcileResult struct {
	Applied bool   // Было ли зачисление на баланс именно этим вызовом
	Status  string // Итоговый статус: success | failed | unknown | unchanged
}
