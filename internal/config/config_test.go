package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnshop.ru/telegram-bot/internal/config"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "100, 200")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA")
	t.Setenv("NICEPAY_BASE_URL", "https://nicepay.example")
	t.Setenv("NICEPAY_MERCHANT_ID", "merchant-1")
	t.Setenv("NICEPAY_SECRET_KEY", "np-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 200}, cfg.AdminIDs)
	assert.Equal(t, int64(15000), cfg.KeyPrice)
	assert.Equal(t, 30*24*time.Hour, cfg.KeyValidity())
	assert.Equal(t, 3*24*time.Hour, cfg.TrialValidity())
	assert.Equal(t, 10*time.Second, cfg.DBQueryTimeout)
	assert.Equal(t, "/nicepay/callback", cfg.WebhookPath)
	assert.Equal(t, "0 * * * *", cfg.ExpirySweepSchedule)

	// Кнопки пополнения: рубли из окружения превращаются в копейки
	assert.Equal(t, []int64{30000, 40000, 50000, 70000, 100000}, cfg.PaymentOptions)
}

func TestLoadPaymentOptionsOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PAYMENT_OPTIONS", "100,250")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []int64{10000, 25000}, cfg.PaymentOptions)
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", "100,abc")

	_, err := config.Load()
	require.Error(t, err)
}

func TestIsAdmin(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsAdmin(100))
	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(300))
}

func TestDatabaseDSN(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	dsn := cfg.DatabaseDSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "vpn_shop")
}

func TestValidateRejectsBadRange(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("NICEPAY_MIN_AMOUNT", "100000")
	t.Setenv("NICEPAY_MAX_AMOUNT", "50000")

	_, err := config.Load()
	require.Error(t, err)
}
