// Package keys — repository.go выполняет все операции с таблицей keys.
// Смена статуса всегда выполняется условным UPDATE по текущему статусу
// (compare-and-swap): два конкурентных перехода не могут сработать оба.
package keys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vpnshop.ru/telegram-bot/internal/db/postgres"
)

type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

const keyColumns = `id, key_value, category, status, user_id, sold_at, expires_at, created_at, updated_at`

func scanKey(row pgx.Row) (*Key, error) {
	var k Key
	err := row.Scan(
		&k.ID, &k.Value, &k.Category, &k.Status, &k.UserID,
		&k.SoldAt, &k.ExpiresAt, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// BulkImport добавляет ключи на склад, пропуская уже существующие значения.
// Дубликаты внутри самого списка тоже считаются пропущенными.
// Возвращает количество добавленных и пропущенных.
func (r *Repository) BulkImport(ctx context.Context, values []string, category Category) (*ImportResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка начала транзакции: %w", err))
	}
	defer tx.Rollback(ctx)

	result := &ImportResult{}
	for _, value := range values {
		tag, err := tx.Exec(ctx, `
			INSERT INTO keys (key_value, category, status)
			VALUES ($1, $2, 'available')
			ON CONFLICT (key_value) DO NOTHING
		`, value, category)
		if err != nil {
			return nil, postgres.MapError(fmt.Errorf("ошибка импорта ключа: %w", err))
		}
		if tag.RowsAffected() > 0 {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка фиксации импорта: %w", err))
	}
	return result, nil
}

// GetUserActiveKey возвращает действующий ключ пользователя:
// статус assigned И срок ещё не истёк. Ключ с истёкшим сроком считается
// недействующим сразу, не дожидаясь фоновой проверки.
// Если действующего ключа нет — (nil, nil).
func (r *Repository) GetUserActiveKey(ctx context.Context, userID int64) (*Key, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT ` + keyColumns + `
		FROM keys
		WHERE user_id = $1 AND status = 'assigned' AND expires_at > NOW()
		LIMIT 1
	`
	k, err := scanKey(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, postgres.MapError(fmt.Errorf("ошибка поиска ключа пользователя: %w", err))
	}
	return k, nil
}

// HasTrialKey сообщает, выдавался ли пользователю тестовый ключ когда-либо
// (включая истёкшие и отозванные — второй раз тест не даём).
func (r *Repository) HasTrialKey(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM keys
			WHERE user_id = $1 AND category = 'trial'
		)
	`, userID).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка проверки тестового ключа: %w", err))
	}
	return exists, nil
}

// HasPaidKey сообщает, получал ли пользователь когда-либо платный ключ
// (любой категории, кроме trial; включая истёкшие и отозванные).
func (r *Repository) HasPaidKey(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM keys
			WHERE user_id = $1 AND category <> 'trial'
		)
	`, userID).Scan(&exists)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка проверки платных ключей: %w", err))
	}
	return exists, nil
}

// AvailableCount возвращает количество доступных ключей категории.
func (r *Repository) AvailableCount(ctx context.Context, category Category) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM keys WHERE category = $1 AND status = 'available'
	`, category).Scan(&count)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("ошибка подсчёта доступных ключей: %w", err))
	}
	return count, nil
}

// GetStats возвращает количество ключей по статусам для каждой категории.
func (r *Repository) GetStats(ctx context.Context) ([]*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT category,
		       COUNT(*) FILTER (WHERE status = 'available'),
		       COUNT(*) FILTER (WHERE status = 'assigned'),
		       COUNT(*) FILTER (WHERE status = 'expired'),
		       COUNT(*) FILTER (WHERE status = 'revoked')
		FROM keys
		GROUP BY category
		ORDER BY category
	`)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка получения статистики ключей: %w", err))
	}
	defer rows.Close()

	var stats []*Stats
	for rows.Next() {
		var s Stats
		if err := rows.Scan(&s.Category, &s.Available, &s.Assigned, &s.Expired, &s.Revoked); err != nil {
			return nil, postgres.MapError(fmt.Errorf("ошибка сканирования статистики: %w", err))
		}
		stats = append(stats, &s)
	}
	return stats, rows.Err()
}

// ListElapsed возвращает выданные ключи с истёкшим сроком действия —
// кандидатов на перевод в expired фоновой проверкой.
func (r *Repository) ListElapsed(ctx context.Context) ([]*Key, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+keyColumns+`
		FROM keys
		WHERE status = 'assigned' AND expires_at <= NOW()
		ORDER BY expires_at
	`)
	if err != nil {
		return nil, postgres.MapError(fmt.Errorf("ошибка поиска истекших ключей: %w", err))
	}
	defer rows.Close()

	var result []*Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, postgres.MapError(fmt.Errorf("ошибка сканирования ключа: %w", err))
		}
		result = append(result, k)
	}
	return result, rows.Err()
}

// MarkExpired переводит один ключ assigned → expired.
// Условие по статусу делает операцию идемпотентной: повторный вызов
// (или конкурентный прогон проверки) вернёт false и ничего не изменит.
func (r *Repository) MarkExpired(ctx context.Context, keyID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE keys
		SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'assigned' AND expires_at <= NOW()
	`, keyID)
	if err != nil {
		return false, postgres.MapError(fmt.Errorf("ошибка перевода ключа в expired: %w", err))
	}
	return tag.RowsAffected() > 0, nil
}

// Revoke переводит ключ assigned → revoked по значению ключа.
// Возвращает отозванный ключ или nil, если подходящего не нашлось.
func (r *Repository) Revoke(ctx context.Context, keyValue string) (*Key, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		UPDATE keys
		SET status = 'revoked', updated_at = NOW()
		WHERE key_value = $1 AND status = 'assigned'
		RETURNING ` + keyColumns
	k, err := scanKey(r.db.QueryRow(ctx, query, keyValue))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, postgres.MapError(fmt.Errorf("ошибка отзыва ключа: %w", err))
	}
	return k, nil
}
