package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"vpnshop.ru/telegram-bot/internal/common"
)

func TestMapErrorNil(t *testing.T) {
	assert.NoError(t, MapError(nil))
}

func TestMapErrorDeadline(t *testing.T) {
	err := MapError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, common.ErrStoreTimeout)
}

func TestMapErrorConflictCodes(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := MapError(&pgconn.PgError{Code: code})
		assert.ErrorIs(t, err, common.ErrStoreConflict, "code=%s", code)
	}
}

func TestMapErrorPassthrough(t *testing.T) {
	plain := errors.New("ничего особенного")
	assert.Equal(t, plain, MapError(plain))

	constraint := &pgconn.PgError{Code: "23505"}
	err := MapError(constraint)
	assert.NotErrorIs(t, err, common.ErrStoreConflict)
	assert.NotErrorIs(t, err, common.ErrStoreTimeout)
}
