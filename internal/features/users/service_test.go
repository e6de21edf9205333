package users_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/features/users"
)

// fakeStore — замена репозитория пользователей.
type fakeStore struct {
	mu       sync.Mutex
	balances map[int64]int64
	names    map[int64]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: make(map[int64]int64), names: make(map[int64]string)}
}

func (s *fakeStore) Ensure(ctx context.Context, userID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[userID]; !ok {
		s.balances[userID] = 0
	}
	s.names[userID] = username
	return nil
}

func (s *fakeStore) GetByUserID(ctx context.Context, userID int64) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[userID]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	name := s.names[userID]
	return &users.User{UserID: userID, Username: &name, Balance: balance}, nil
}

func (s *fakeStore) GetBalance(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[userID]
	if !ok {
		return 0, common.ErrUserNotFound
	}
	return balance, nil
}

func (s *fakeStore) Credit(ctx context.Context, userID int64, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.balances[userID]; !ok {
		return common.ErrUserNotFound
	}
	s.balances[userID] += amount
	return nil
}

func (s *fakeStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.balances)), nil
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := users.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureUser(ctx, 100, "alice"))
	require.NoError(t, store.Credit(ctx, 100, 5000))

	// Повторная регистрация обновляет username, но не трогает баланс
	require.NoError(t, svc.EnsureUser(ctx, 100, "alice_new"))

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	u, err := svc.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", *u.Username)
}

func TestManualCredit(t *testing.T) {
	store := newFakeStore()
	svc := users.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureUser(ctx, 100, "alice"))

	require.NoError(t, svc.ManualCredit(ctx, 1, 100, 30000))

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), balance)
}

func TestManualCreditRejectsNonPositiveAmount(t *testing.T) {
	store := newFakeStore()
	svc := users.NewService(store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureUser(ctx, 100, "alice"))

	require.ErrorIs(t, svc.ManualCredit(ctx, 1, 100, 0), common.ErrInvalidAmount)
	require.ErrorIs(t, svc.ManualCredit(ctx, 1, 100, -100), common.ErrInvalidAmount)

	balance, err := svc.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestManualCreditUnknownUser(t *testing.T) {
	svc := users.NewService(newFakeStore())

	err := svc.ManualCredit(context.Background(), 1, 999, 10000)
	require.ErrorIs(t, err, common.ErrUserNotFound)
}
