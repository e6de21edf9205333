package admin

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vpnshop.ru/telegram-bot/internal/db/postgres"
)

// Repository — репозиторий админ-сессий и попыток входа.
type Repository struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// NewRepository создаёт новый репозиторий админки.
func NewRepository(db *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{db: db, timeout: timeout}
}

// CreateSession создаёт новую сессию администратора.
// Предыдущие активные сессии пользователя деактивируются.
func (r *Repository) CreateSession(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return postgres.MapError(err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE admin_sessions SET is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE
	`, userID)
	if err != nil {
		return postgres.MapError(err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO admin_sessions (user_id, session_token, authenticated_at, expires_at, last_activity, is_active)
		VALUES ($1, $2, $3, $4, $3, TRUE)
	`, userID, token, now, now.Add(ttl))
	if err != nil {
		return postgres.MapError(err)
	}

	return postgres.MapError(tx.Commit(ctx))
}

// GetActiveSession возвращает активную непросроченную сессию пользователя.
// Возвращает nil, если сессии нет.
func (r *Repository) GetActiveSession(ctx context.Context, userID int64) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s Session
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, session_token, authenticated_at, expires_at, last_activity, is_active
		FROM admin_sessions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY authenticated_at DESC
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.SessionToken, &s.AuthenticatedAt, &s.ExpiresAt, &s.LastActivity, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, postgres.MapError(err)
	}

	return &s, nil
}

// UpdateActivity обновляет время последней активности сессии.
func (r *Repository) UpdateActivity(ctx context.Context, sessionID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE admin_sessions SET last_activity = NOW() WHERE id = $1
	`, sessionID)
	return postgres.MapError(err)
}

// DeactivateSessions завершает все активные сессии пользователя.
func (r *Repository) DeactivateSessions(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE admin_sessions SET is_active = FALSE
		WHERE user_id = $1 AND is_active = TRUE
	`, userID)
	return postgres.MapError(err)
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, userID int64, success bool) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO admin_login_attempts (user_id, attempt_time, success)
		VALUES ($1, NOW(), $2)
	`, userID, success)
	return postgres.MapError(err)
}

// CountRecentFailures считает неудачные попытки входа за период.
func (r *Repository) CountRecentFailures(ctx context.Context, userID int64, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_login_attempts
		WHERE user_id = $1 AND success = FALSE AND attempt_time > NOW() - $2::interval
	`, userID, window.String()).Scan(&count)
	if err != nil {
		return 0, postgres.MapError(err)
	}

	return count, nil
}
