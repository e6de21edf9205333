package keys_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// fakeStore — потокобезопасная замена репозитория ключей.
type fakeStore struct {
	mu   sync.Mutex
	keys []*keys.Key

	imported [][]string
}

func (s *fakeStore) BulkImport(ctx context.Context, values []string, category keys.Category) (*keys.ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.imported = append(s.imported, values)

	result := &keys.ImportResult{}
	seen := make(map[string]bool)
	for _, k := range s.keys {
		seen[k.Value] = true
	}
	for _, v := range values {
		if seen[v] {
			result.Duplicates++
			continue
		}
		seen[v] = true
		s.keys = append(s.keys, &keys.Key{
			ID:       int64(len(s.keys) + 1),
			Value:    v,
			Category: category,
			Status:   keys.StatusAvailable,
		})
		result.Inserted++
	}
	return result, nil
}

func (s *fakeStore) GetUserActiveKey(ctx context.Context, userID int64) (*keys.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, k := range s.keys {
		if k.UserID != nil && *k.UserID == userID &&
			k.Status == keys.StatusAssigned && k.ExpiresAt.After(now) {
			copied := *k
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) AvailableCount(ctx context.Context, category keys.Category) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, k := range s.keys {
		if k.Category == category && k.Status == keys.StatusAvailable {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) GetStats(ctx context.Context) ([]*keys.Stats, error) {
	return nil, nil
}

func (s *fakeStore) ListElapsed(ctx context.Context) ([]*keys.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var elapsed []*keys.Key
	for _, k := range s.keys {
		if k.Status == keys.StatusAssigned && k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
			copied := *k
			elapsed = append(elapsed, &copied)
		}
	}
	return elapsed, nil
}

func (s *fakeStore) MarkExpired(ctx context.Context, keyID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, k := range s.keys {
		if k.ID == keyID && k.Status == keys.StatusAssigned &&
			k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
			k.Status = keys.StatusExpired
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) Revoke(ctx context.Context, keyValue string) (*keys.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range s.keys {
		if k.Value == keyValue && k.Status == keys.StatusAssigned {
			k.Status = keys.StatusRevoked
			copied := *k
			return &copied, nil
		}
	}
	return nil, nil
}

// fakeNotifier записывает уведомления; может имитировать отказ отправки.
type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[int64]int
	failFor map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64]int), failFor: make(map[int64]bool)}
}

func (n *fakeNotifier) Notify(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.failFor[userID] {
		return errors.New("чат заблокирован")
	}
	n.sent[userID]++
	return nil
}

func assignedKey(id, userID int64, expiresAt time.Time) *keys.Key {
	soldAt := expiresAt.Add(-30 * 24 * time.Hour)
	return &keys.Key{
		ID:        id,
		Value:     "key-" + string(rune('0'+id)),
		Category:  keys.CategoryDefault,
		Status:    keys.StatusAssigned,
		UserID:    &userID,
		SoldAt:    &soldAt,
		ExpiresAt: &expiresAt,
	}
}

func TestSweepExpiredTransitionsAndNotifies(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	store := &fakeStore{keys: []*keys.Key{
		assignedKey(1, 100, past),
		assignedKey(2, 200, past),
		assignedKey(3, 300, future),
	}}
	notifier := newFakeNotifier()

	svc := keys.NewService(store, notifier)

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, keys.StatusExpired, store.keys[0].Status)
	assert.Equal(t, keys.StatusExpired, store.keys[1].Status)
	assert.Equal(t, keys.StatusAssigned, store.keys[2].Status, "действующий ключ трогать нельзя")

	assert.Equal(t, 1, notifier.sent[100])
	assert.Equal(t, 1, notifier.sent[200])
	assert.Zero(t, notifier.sent[300])
}

func TestSweepExpiredIsIdempotent(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &fakeStore{keys: []*keys.Key{assignedKey(1, 100, past)}}
	notifier := newFakeNotifier()

	svc := keys.NewService(store, notifier)
	ctx := context.Background()

	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Повторный прогон ничего не находит и не шлёт повторных уведомлений
	count, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, notifier.sent[100])
}

func TestSweepExpiredToleratesNotifyFailure(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &fakeStore{keys: []*keys.Key{
		assignedKey(1, 100, past),
		assignedKey(2, 200, past),
	}}
	notifier := newFakeNotifier()
	notifier.failFor[100] = true

	svc := keys.NewService(store, notifier)

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err, "отказ отправки не должен ронять прогон")
	assert.Equal(t, 2, count)
	assert.Equal(t, keys.StatusExpired, store.keys[0].Status)
	assert.Equal(t, 1, notifier.sent[200])
}

func TestBulkImportCleansInput(t *testing.T) {
	store := &fakeStore{}
	svc := keys.NewService(store, newFakeNotifier())

	result, err := svc.BulkImport(context.Background(), []string{
		"  key-one  ", "", "key-two", "   ", "key-one",
	}, keys.CategoryDefault)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, result.Duplicates)
	require.Len(t, store.imported, 1)
	assert.Equal(t, []string{"key-one", "key-two", "key-one"}, store.imported[0])
}

func TestBulkImportRejectsUnknownCategory(t *testing.T) {
	svc := keys.NewService(&fakeStore{}, newFakeNotifier())

	_, err := svc.BulkImport(context.Background(), []string{"key-one"}, keys.Category("premium"))
	require.Error(t, err)
}

func TestBulkImportEmptyInput(t *testing.T) {
	store := &fakeStore{}
	svc := keys.NewService(store, newFakeNotifier())

	result, err := svc.BulkImport(context.Background(), []string{"", "  "}, keys.CategoryDefault)
	require.NoError(t, err)
	assert.Zero(t, result.Inserted)
	assert.Empty(t, store.imported, "пустой импорт не должен ходить в хранилище")
}

func TestRevokeAssignedKey(t *testing.T) {
	future := time.Now().Add(time.Hour)
	store := &fakeStore{keys: []*keys.Key{assignedKey(1, 100, future)}}
	svc := keys.NewService(store, newFakeNotifier())

	key, err := svc.Revoke(context.Background(), " key-1 ")
	require.NoError(t, err)
	assert.Equal(t, keys.StatusRevoked, store.keys[0].Status)
	require.NotNil(t, key.UserID)
	assert.Equal(t, int64(100), *key.UserID)
}

func TestRevokeUnknownKey(t *testing.T) {
	svc := keys.NewService(&fakeStore{}, newFakeNotifier())

	_, err := svc.Revoke(context.Background(), "no-such-key")
	require.Error(t, err)
}
