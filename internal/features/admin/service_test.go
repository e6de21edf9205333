package admin

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"

	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// encodeTestHash строит хеш в том же формате, что и генератор паролей.
func encodeTestHash(password string) string {
	salt := []byte("somesalt16bytes!")
	key := argon2.IDKey([]byte(password), salt, 3, 64*1024, 2, 32)
	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		64*1024, 3, 2,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func TestVerifyArgon2idCorrectPassword(t *testing.T) {
	hash := encodeTestHash("correct horse battery staple")

	ok, err := verifyArgon2id("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyArgon2idWrongPassword(t *testing.T) {
	hash := encodeTestHash("correct horse battery staple")

	ok, err := verifyArgon2id("Tr0ub4dor&3", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyArgon2idMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
		"$argon2id$v=19$oops$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=2$не-base64$aGFzaA",
	} {
		_, err := verifyArgon2id("password", bad)
		assert.Error(t, err, "hash=%q", bad)
	}
}

func TestStateLifecycle(t *testing.T) {
	svc := NewService(nil, "")

	assert.Nil(t, svc.GetState(100))

	svc.SetState(100, StateAwaitingKeys, keys.CategoryTrial)
	st := svc.GetState(100)
	require.NotNil(t, st)
	assert.Equal(t, StateAwaitingKeys, st.State)
	assert.Equal(t, keys.CategoryTrial, st.Data)

	// Состояния разных админов независимы
	assert.Nil(t, svc.GetState(200))

	svc.ClearState(100)
	assert.Nil(t, svc.GetState(100))
}

func TestStateExpires(t *testing.T) {
	svc := NewService(nil, "")

	svc.SetState(100, StateAwaitingPassword, nil)
	svc.mu.Lock()
	svc.states[100].ExpiresAt = time.Now().Add(-time.Second)
	svc.mu.Unlock()

	assert.Nil(t, svc.GetState(100), "истёкшее состояние должно забываться")
}

func TestGenerateSecureToken(t *testing.T) {
	a, err := generateSecureToken()
	require.NoError(t, err)
	b, err := generateSecureToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
