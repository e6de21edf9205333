// Package shop — repository.go выполняет транзакцию покупки и запросы
// по истории заказов.
//
// Вся покупка — одна транзакция БД: резервирование ключа, списание
// с баланса и запись заказа фиксируются вместе или не фиксируются вовсе.
// Любая ошибка после резервирования откатывает ключ обратно в available
// автоматически — ручной компенсации здесь нет по построению.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/db/postgres"
	"vpnshop.ru/telegram-bot/internal/features/keys"
)

type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// Purchase оформляет одну покупку атомарно.
//
// Порядок внутри транзакции:
//  1. Блокируем строку пользователя (FOR UPDATE) и читаем актуальный баланс —
//     балансу, прочитанному до транзакции, доверять нельзя.
//  2. Для тестового ключа — проверки одноразовости (has_trial, история ключей).
//  3. Переводим истёкший, но ещё не обработанный фоновой проверкой ключ
//     пользователя в expired — иначе резервирование упрётся в уникальный
//     индекс «один assigned-ключ на пользователя».
//  4. Проверяем, что нет действующего ключа, и что баланс покрывает цену.
//  5. Резервируем самый старый доступный ключ категории условным UPDATE
//     c FOR UPDATE SKIP LOCKED: две одновременные транзакции не могут
//     увидеть один и тот же ключ как доступный. Ни одной строки — ErrNoInventory.
//  6. Списываем цену (и взводим has_trial для тестовой выдачи).
//  7. Записываем заказ и фиксируем транзакцию.
func (r *Repository) Purchase(ctx context.Context, p PurchaseParams) (*keys.Key, *Order, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка начала транзакции: %w", err))
	}
	defer tx.Rollback(ctx)

	// 1. Актуальный баланс под блокировкой строки
	var balance int64
	var hasTrial bool
	err = tx.QueryRow(ctx, `
		SELECT balance, has_trial FROM users WHERE user_id = $1 FOR UPDATE
	`, p.UserID).Scan(&balance, &hasTrial)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("user_id=%d: %w", p.UserID, common.ErrUserNotFound)
		}
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка чтения баланса: %w", err))
	}

	// 2. Одноразовость тестового ключа
	if p.Trial {
		if hasTrial {
			return nil, nil, common.ErrTrialAlreadyUsed
		}
		var hadTrialKey bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM keys WHERE user_id = $1 AND category = 'trial')
		`, p.UserID).Scan(&hadTrialKey)
		if err != nil {
			return nil, nil, postgres.MapError(fmt.Errorf("ошибка проверки тестового ключа: %w", err))
		}
		if hadTrialKey {
			return nil, nil, common.ErrTrialAlreadyUsed
		}
		var hadPaidKey bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM keys WHERE user_id = $1 AND category <> 'trial')
		`, p.UserID).Scan(&hadPaidKey)
		if err != nil {
			return nil, nil, postgres.MapError(fmt.Errorf("ошибка проверки платных ключей: %w", err))
		}
		if hadPaidKey {
			return nil, nil, common.ErrTrialBlocked
		}
	}

	// 3. Ключ с истёкшим сроком, до которого ещё не дошла фоновая проверка,
	// переводим в expired прямо в этой транзакции: частичный уникальный индекс
	// допускает только один assigned-ключ на пользователя, и без этого шага
	// резервирование нового ключа упёрлось бы в индекс.
	_, err = tx.Exec(ctx, `
		UPDATE keys
		SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1 AND status = 'assigned' AND expires_at <= NOW()
	`, p.UserID)
	if err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка обработки истёкшего ключа: %w", err))
	}

	// 4. Действующий ключ и достаточность баланса. После шага 3 условие
	// совпадает с условием уникального индекса: assigned == действующий.
	var hasActive bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM keys
			WHERE user_id = $1 AND status = 'assigned'
		)
	`, p.UserID).Scan(&hasActive)
	if err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка проверки активного ключа: %w", err))
	}
	if hasActive {
		return nil, nil, common.ErrActiveKeyExists
	}
	if balance < p.Price {
		return nil, nil, common.ErrInsufficientFunds
	}

	// 5. Резервируем самый старый доступный ключ категории
	now := time.Now().UTC()
	expiresAt := now.Add(p.Validity)
	key, err := scanKey(tx.QueryRow(ctx, `
		UPDATE keys
		SET status = 'assigned', user_id = $1, sold_at = $3, expires_at = $4, updated_at = NOW()
		WHERE id = (
			SELECT id FROM keys
			WHERE category = $2 AND status = 'available'
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, key_value, category, status, user_id, sold_at, expires_at, created_at, updated_at
	`, p.UserID, p.Category, now, expiresAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, common.ErrNoInventory
		}
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка резервирования ключа: %w", err))
	}

	// 6. Списание (и флаг тестового ключа)
	if p.Trial {
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET balance = balance - $2, has_trial = TRUE, updated_at = NOW()
			WHERE user_id = $1
		`, p.UserID, p.Price)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE users
			SET balance = balance - $2, updated_at = NOW()
			WHERE user_id = $1
		`, p.UserID, p.Price)
	}
	if err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка списания: %w", err))
	}

	// 7. Запись заказа
	order := &Order{
		UserID: p.UserID,
		KeyID:  key.ID,
		Amount: p.Price,
		Status: OrderStatusCompleted,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, key_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, order.UserID, order.KeyID, order.Amount, order.Status).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка записи заказа: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, postgres.MapError(fmt.Errorf("ошибка фиксации покупки: %w", err))
	}
	return key, order, nil
}

func scanKey(row pgx.Row) (*keys.Key, error) {
	var k keys.Key
	err := row.Scan(
		&k.ID, &k.Value, &k.Category, &k.Status, &k.UserID,
		&k.SoldAt, &k.ExpiresAt, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// ListUserOrders возвращает последние N покупок пользователя с данными ключа.
func (r *Repository) ListUserOrders(ctx context.Context, userID int64, limit int) ([]*HistoryItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT o.amount, o.created_at, k.category, k.key_value
		FROM orders o
		JOIN keys k ON k.id = o.key_id
		WHERE o.user_id = $1
		ORDER BY o.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка получения истории покупок: %w", err))
	}
	defer rows.Close()

	var items []*HistoryItem
	for rows.Next() {
		var it HistoryItem
		if err := rows.Scan(&it.Amount, &it.CreatedAt, &it.KeyCategory, &it.KeyValue); err != nil {
			return nil, postgres.MapError(fmt.Errorf("ошибка сканирования заказа: %w", err))
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

// GetTotals возвращает сводку по всем заказам.
func (r *Repository) GetTotals(ctx context.Context) (*Totals, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var t Totals
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM orders
	`).Scan(&t.Orders, &t.Revenue)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка получения сводки заказов: %w", err))
	}
	return &t, nil
}

// GetTotalsByCategory возвращает количество заказов и выручку по категориям ключей.
func (r *Repository) GetTotalsByCategory(ctx context.Context) ([]*CategoryTotals, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT k.category, COUNT(*), COALESCE(SUM(o.amount), 0)
		FROM orders o
		JOIN keys k ON k.id = o.key_id
		GROUP BY k.category
		ORDER BY k.category
	`)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка получения сводки по категориям: %w", err))
	}
	defer rows.Close()

	var result []*CategoryTotals
	for rows.Next() {
		var ct CategoryTotals
		if err := rows.Scan(&ct.Category, &ct.Orders, &ct.Revenue); err != nil {
			return nil, postgres.MapError(fmt.Errorf("ошибка сканирования сводки: %w", err))
		}
		result = append(result, &ct)
	}
	return result, rows.Err()
}
