// Package payments — repository.go выполняет операции с таблицей payments.
// Зачисление на баланс и смена статуса платежа — одна транзакция:
// сбой между ними невозможен по построению. Статус монотонный —
// достигнутый success условные UPDATE не перезаписывают.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/db/postgres"
)

type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// Create записывает новый платёж в статусе created.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO payments (provider, user_id, amount, currency, status, order_id,
		                      provider_payment_id, raw_create_response)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, p.Provider, p.UserID, p.Amount, p.Currency, p.Status,
		p.OrderID, p.ProviderPaymentID, p.RawCreateResponse,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return postgres.MapError(fmt.Errorf("ошибка записи платежа: %w", err))
	}
	return nil
}

// GetByProviderID возвращает платёж по ID провайдера.
// Если платёж неизвестен — common.ErrUnknownReference.
func (r *Repository) GetByProviderID(ctx context.Context, providerPaymentID string) (*Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var p Payment
	err := r.db.QueryRow(ctx, `
		SELECT id, provider, user_id, amount, currency, status, order_id,
		       provider_payment_id, raw_create_response, last_webhook, created_at, updated_at
		FROM payments
		WHERE provider_payment_id = $1
	`, providerPaymentID).Scan(
		&p.ID, &p.Provider, &p.UserID, &p.Amount, &p.Currency, &p.Status,
		&p.OrderID, &p.ProviderPaymentID, &p.RawCreateResponse, &p.LastWebhook,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("provider_payment_id=%s: %w", providerPaymentID, common.ErrUnknownReference)
		}
		return nil, postgres.MapError(fmt.Errorf("ошибка чтения платежа: %w", err))
	}
	return &p, nil
}

// ApplySuccess применяет успешный вебхук ровно один раз.
//
// В одной транзакции: блокируем строку платежа, и если статус ещё
// не success — зачисляем сумму на баланс и переводим платёж в success.
// Если success уже стоит (повторный вебхук) — только сохраняем свежий
// сырый payload и возвращаем applied=false. Платёж неизвестен —
// common.ErrUnknownReference.
func (r *Repository) ApplySuccess(ctx context.Context, providerPaymentID string, rawWebhook []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка начала транзакции: %w", err))
	}
	defer tx.Rollback(ctx)

	var paymentID, userID, amount int64
	var status Status
	err = tx.QueryRow(ctx, `
		SELECT id, user_id, amount, status
		FROM payments
		WHERE provider_payment_id = $1
		FOR UPDATE
	`, providerPaymentID).Scan(&paymentID, &userID, &amount, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("provider_payment_id=%s: %w", providerPaymentID, common.ErrUnknownReference)
		}
		return false, postgres.MapError(fmt.Errorf("ошибка чтения платежа: %w", err))
	}

	if status == StatusSuccess {
		// Повтор вебхука: зачисление пропускаем, payload сохраняем
		_, err = tx.Exec(ctx, `
			UPDATE payments SET last_webhook = $2, updated_at = NOW() WHERE id = $1
		`, paymentID, rawWebhook)
		if err != nil {
			return false, postgres.MapError(fmt.Errorf("ошибка сохранения вебхука: %w", err))
		}
		return false, postgres.MapError(tx.Commit(ctx))
	}

	_, err = tx.Exec(ctx, `
		UPDATE payments SET status = 'success', last_webhook = $2, updated_at = NOW() WHERE id = $1
	`, paymentID, rawWebhook)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка обновления платежа: %w", err))
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка зачисления на баланс: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка фиксации зачисления: %w", err))
	}
	return true, nil
}

// MarkFailed переводит платёж в failed, не трогая баланс, и возвращает
// фактический статус после операции. Достигнутый success не перезаписывается
// (статус монотонный): в этом случае сохраняется только payload.
// Платёж неизвестен — common.ErrUnknownReference.
func (r *Repository) MarkFailed(ctx context.Context, providerPaymentID string, rawWebhook []byte) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		SET status = 'failed', last_webhook = $2, updated_at = NOW()
		WHERE provider_payment_id = $1 AND status <> 'success'
	`, providerPaymentID, rawWebhook)
	if err != nil {
		return "", postgres.MapError(fmt.Errorf("ошибка перевода платежа в failed: %w", err))
	}
	if tag.RowsAffected() > 0 {
		return StatusFailed, nil
	}

	// Либо платёж неизвестен, либо уже success — различаем отдельным чтением
	p, err := r.GetByProviderID(ctx, providerPaymentID)
	if err != nil {
		return "", err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE payments SET last_webhook = $2, updated_at = NOW() WHERE provider_payment_id = $1
	`, providerPaymentID, rawWebhook)
	if err != nil {
		return "", postgres.MapError(fmt.Errorf("ошибка сохранения вебхука: %w", err))
	}
	return p.Status, nil
}

// RecordWebhook сохраняет сырой payload вебхука, не меняя статус.
// Для исходов, которые мы не интерпретируем (pending и т.п.).
func (r *Repository) RecordWebhook(ctx context.Context, providerPaymentID string, rawWebhook []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET last_webhook = $2, updated_at = NOW() WHERE provider_payment_id = $1
	`, providerPaymentID, rawWebhook)
	if err != nil {
		return postgres.MapError(fmt.Errorf("ошибка сохранения вебхука: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider_payment_id=%s: %w", providerPaymentID, common.ErrUnknownReference)
	}
	return nil
}
