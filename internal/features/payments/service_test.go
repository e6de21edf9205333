package payments_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/payments"
)

// fakeStore — потокобезопасная замена репозитория платежей.
// Повторяет семантику идемпотентного зачисления: success применяется
// ровно один раз, достигнутый success не понижается.
type fakeStore struct {
	mu       sync.Mutex
	payments map[string]*payments.Payment
	balances map[int64]int64
}

func newFakePaymentStore() *fakeStore {
	return &fakeStore{
		payments: make(map[string]*payments.Payment),
		balances: make(map[int64]int64),
	}
}

func (s *fakeStore) Create(ctx context.Context, p *payments.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *p
	s.payments[p.ProviderPaymentID] = &copied
	return nil
}

func (s *fakeStore) GetByProviderID(ctx context.Context, providerPaymentID string) (*payments.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[providerPaymentID]
	if !ok {
		return nil, common.ErrUnknownReference
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) ApplySuccess(ctx context.Context, providerPaymentID string, rawWebhook []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[providerPaymentID]
	if !ok {
		return false, common.ErrUnknownReference
	}
	if p.Status == payments.StatusSuccess {
		p.LastWebhook = rawWebhook
		return false, nil
	}
	p.Status = payments.StatusSuccess
	p.LastWebhook = rawWebhook
	s.balances[p.UserID] += p.Amount
	return true, nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, providerPaymentID string, rawWebhook []byte) (payments.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[providerPaymentID]
	if !ok {
		return "", common.ErrUnknownReference
	}
	if p.Status != payments.StatusSuccess {
		p.Status = payments.StatusFailed
	}
	p.LastWebhook = rawWebhook
	return p.Status, nil
}

func (s *fakeStore) RecordWebhook(ctx context.Context, providerPaymentID string, rawWebhook []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[providerPaymentID]
	if !ok {
		return common.ErrUnknownReference
	}
	p.LastWebhook = rawWebhook
	return nil
}

// fakeInvoiceClient подменяет исходящий HTTP-клиент провайдера.
type fakeInvoiceClient struct {
	calls int
}

func (c *fakeInvoiceClient) CreateInvoice(ctx context.Context, userID int64, amount int64) (*payments.Invoice, error) {
	c.calls++
	return &payments.Invoice{
		OrderID:           "order-1",
		ProviderPaymentID: "pay-1",
		PaymentURL:        "https://pay.example/pay-1",
		RawResponse:       []byte(`{"status":"success"}`),
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		NicepaySecretKey: testSecret,
		NicepayCurrency:  "RUB",
		NicepayMinAmount: 25000,
		NicepayMaxAmount: 1000000,
	}
}

func TestCreateTopUpStoresPendingPayment(t *testing.T) {
	store := newFakePaymentStore()
	client := &fakeInvoiceClient{}
	svc := payments.NewService(store, client, testConfig())

	url, err := svc.CreateTopUp(context.Background(), 100, 50000)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/pay-1", url)

	p, err := store.GetByProviderID(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCreated, p.Status)
	assert.Equal(t, int64(50000), p.Amount)
	assert.Equal(t, int64(100), p.UserID)
}

func TestCreateTopUpAmountOutOfRange(t *testing.T) {
	client := &fakeInvoiceClient{}
	svc := payments.NewService(newFakePaymentStore(), client, testConfig())
	ctx := context.Background()

	_, err := svc.CreateTopUp(ctx, 100, 10000)
	require.ErrorIs(t, err, common.ErrAmountOutOfRange)

	_, err = svc.CreateTopUp(ctx, 100, 2000000)
	require.ErrorIs(t, err, common.ErrAmountOutOfRange)

	assert.Zero(t, client.calls, "счёт не должен выставляться при неверной сумме")
}

func TestReconcileRejectsInvalidSignature(t *testing.T) {
	store := newFakePaymentStore()
	svc := payments.NewService(store, &fakeInvoiceClient{}, testConfig())

	_, err := svc.Reconcile(context.Background(), map[string]string{
		"payment_id": "pay-1",
		"result":     "success",
		"hash":       "forged",
	})
	require.ErrorIs(t, err, common.ErrInvalidSignature)
}

func TestReconcileSuccessIsAppliedOnce(t *testing.T) {
	store := newFakePaymentStore()
	svc := payments.NewService(store, &fakeInvoiceClient{}, testConfig())
	ctx := context.Background()

	_, err := svc.CreateTopUp(ctx, 100, 50000)
	require.NoError(t, err)

	webhook := sign(map[string]string{"payment_id": "pay-1", "result": "success"}, testSecret)

	result, err := svc.Reconcile(ctx, webhook)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(50000), store.balances[100])

	// Повтор того же вебхука ничего не дозачисляет
	result, err = svc.Reconcile(ctx, webhook)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, int64(50000), store.balances[100], "повторное зачисление недопустимо")
}

func TestReconcileFailureThenSuccess(t *testing.T) {
	store := newFakePaymentStore()
	svc := payments.NewService(store, &fakeInvoiceClient{}, testConfig())
	ctx := context.Background()

	_, err := svc.CreateTopUp(ctx, 100, 50000)
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, sign(map[string]string{"payment_id": "pay-1", "result": "error"}, testSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Zero(t, store.balances[100])

	// Поздний success после failed всё же зачисляется
	result, err = svc.Reconcile(ctx, sign(map[string]string{"payment_id": "pay-1", "result": "success"}, testSecret))
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, int64(50000), store.balances[100])
}

func TestReconcileSuccessIsNotDowngraded(t *testing.T) {
	store := newFakePaymentStore()
	svc := payments.NewService(store, &fakeInvoiceClient{}, testConfig())
	ctx := context.Background()

	_, err := svc.CreateTopUp(ctx, 100, 50000)
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, sign(map[string]string{"payment_id": "pay-1", "result": "success"}, testSecret))
	require.NoError(t, err)

	// Опоздавший error не понижает success и не трогает баланс.
	// Наружу сообщается фактический статус, а payload всё равно сохраняется.
	result, err := svc.Reconcile(ctx, sign(map[string]string{"payment_id": "pay-1", "result": "error"}, testSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, string(payments.StatusSuccess), result.Status)

	p, err := store.GetByProviderID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payments.StatusSuccess, p.Status)
	assert.Equal(t, int64(50000), store.balances[100])
	assert.Contains(t, string(p.LastWebhook), `"result":"error"`)
}

func TestReconcileUnknownReference(t *testing.T) {
	svc := payments.NewService(newFakePaymentStore(), &fakeInvoiceClient{}, testConfig())

	result, err := svc.Reconcile(context.Background(),
		sign(map[string]string{"payment_id": "no-such", "result": "success"}, testSecret))
	require.NoError(t, err, "неизвестный платёж — не ошибка, событие просто пропускается")
	assert.False(t, result.Applied)
	assert.Equal(t, "unknown", result.Status)
}

func TestReconcileMissingPaymentID(t *testing.T) {
	svc := payments.NewService(newFakePaymentStore(), &fakeInvoiceClient{}, testConfig())

	_, err := svc.Reconcile(context.Background(), sign(map[string]string{"result": "success"}, testSecret))
	require.Error(t, err)
}

func TestReconcileOtherResultKeepsStatus(t *testing.T) {
	store := newFakePaymentStore()
	svc := payments.NewService(store, &fakeInvoiceClient{}, testConfig())
	ctx := context.Background()

	_, err := svc.CreateTopUp(ctx, 100, 50000)
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, sign(map[string]string{"payment_id": "pay-1", "result": "pending"}, testSecret))
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, "unchanged", result.Status)

	p, err := store.GetByProviderID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, payments.StatusCreated, p.Status)
	assert.NotEmpty(t, p.LastWebhook, "payload должен быть сохранён")
	assert.Zero(t, store.balances[100])
}
