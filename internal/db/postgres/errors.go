// Package postgres — errors.go переводит низкоуровневые ошибки pgx
// в доменные ошибки из internal/common. Благодаря этому сервисы и
// обработчики различают таймаут, проигранную гонку и обычную ошибку
// через errors.Is, не зная про коды PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"vpnshop.ru/telegram-bot/internal/common"
)

// Коды ошибок PostgreSQL, означающие проигранную гонку конкурентных обновлений.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// MapError оборачивает err в доменную ошибку хранилища, если она подпадает
// под таксономию: таймаут → ErrStoreTimeout, проигранная гонка → ErrStoreConflict.
// Остальные ошибки возвращаются как есть.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", common.ErrStoreTimeout, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %v", common.ErrStoreConflict, err)
		}
	}
	return err
}
