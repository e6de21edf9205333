package payments_test

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vpnshop.ru/telegram-bot/internal/features/payments"
)

const testSecret = "super-secret"

// sign подписывает параметры так же, как это делает провайдер.
func sign(params map[string]string, secret string) map[string]string {
	signed := make(map[string]string, len(params)+1)
	for k, v := range params {
		signed[k] = v
	}
	signed["hash"] = payments.Digest(params, secret)
	return signed
}

func TestDigestMatchesProtocol(t *testing.T) {
	params := map[string]string{
		"result":     "success",
		"amount":     "500.00",
		"payment_id": "pay-1",
	}

	// Значения в алфавитном порядке имён полей + секрет, через {np}
	expected := sha256.Sum256([]byte("500.00{np}pay-1{np}success{np}" + testSecret))

	assert.Equal(t, hex.EncodeToString(expected[:]), payments.Digest(params, testSecret))
}

func TestDigestIgnoresHashField(t *testing.T) {
	params := map[string]string{"payment_id": "pay-1", "result": "success"}
	withHash := map[string]string{"payment_id": "pay-1", "result": "success", "hash": "whatever"}

	assert.Equal(t, payments.Digest(params, testSecret), payments.Digest(withHash, testSecret))
}

func TestVerifySignatureRoundTrip(t *testing.T) {
	params := sign(map[string]string{
		"payment_id": "pay-1",
		"result":     "success",
		"amount":     "500.00",
	}, testSecret)

	require.True(t, payments.VerifySignature(params, testSecret))
}

func TestVerifySignatureTamperedField(t *testing.T) {
	params := sign(map[string]string{
		"payment_id": "pay-1",
		"result":     "error",
		"amount":     "500.00",
	}, testSecret)
	params["result"] = "success"

	assert.False(t, payments.VerifySignature(params, testSecret))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	params := sign(map[string]string{"payment_id": "pay-1"}, "other-secret")

	assert.False(t, payments.VerifySignature(params, testSecret))
}

func TestVerifySignatureMissingHash(t *testing.T) {
	assert.False(t, payments.VerifySignature(map[string]string{"payment_id": "pay-1"}, testSecret))
}
