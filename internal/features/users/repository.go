// Package users — repository.go отвечает за все операции с таблицей users в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
// Все операции ограничены таймаутом: просроченная операция превращается
// в common.ErrStoreTimeout, и повторять её можно только целиком.
package users

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

// Ensure создаёт пользователя при первом обращении.
// На конфликте по user_id обновляет только username (баланс и флаги не трогает).
func (r *Repository) Ensure(ctx context.Context, userID int64, username string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var uname *string
	if username != "" {
		uname = &username
	}
	query := `
		INSERT INTO users (user_id, username, balance, has_trial)
		VALUES ($1, $2, 0, FALSE)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, userID, uname)
	if err != nil {
		return postgres.MapError(fmt.Errorf("ошибка создания/обновления пользователя: %w", err))
	}
	return nil
}

// GetByUserID возвращает пользователя. Если не найден — common.ErrUserNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, user_id, username, balance, has_trial, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`
	var u User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.UserID, &u.Username, &u.Balance, &u.HasTrial,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return nil, postgres.MapError(fmt.Errorf("ошибка чтения пользователя (user_id=%d): %w", userID, err))
	}
	return &u, nil
}

// GetBalance возвращает текущий баланс пользователя в копейках.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM users WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
		}
		return 0, postgres.MapError(fmt.Errorf("ошибка получения баланса: %w", err))
	}
	return balance, nil
}

// Credit начисляет сумму на баланс атомарным инкрементом.
// Используется для ручных корректировок администратором; пополнения
// через платёжную систему проходят через payments.Repository.ApplySuccess.
func (r *Repository) Credit(ctx context.Context, userID int64, amount int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return postgres.MapError(fmt.Errorf("ошибка начисления: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user_id=%d: %w", userID, common.ErrUserNotFound)
	}
	return nil
}

// Count возвращает общее количество пользователей (для админ-статистики).
func (r *Repository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, postgres.MapError(fmt.Errorf("ошибка подсчёта пользователей: %w", err))
	}
	return count, nil
}
