package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"vpnshop.ru/telegram-bot/internal/common"
)

const (
	sessionTTL     = 24 * time.Hour  // Время жизни сессии
	stateTTL       = 5 * time.Minute // Время жизни состояния диалога
	maxAttempts    = 3               // Максимум неудачных попыток входа
	attemptsWindow = time.Hour       // Окно подсчёта попыток
)

// Service — сервис авторизации администраторов и состояний диалога.
type Service struct {
	repo         *Repository
	passwordHash string

	mu     sync.Mutex
	states map[int64]*State
}

// NewService создаёт новый сервис админки.
func NewService(repo *Repository, passwordHash string) *Service {
	return &Service{
		repo:         repo,
		passwordHash: passwordHash,
		states:       make(map[int64]*State),
	}
}

// Login проверяет пароль и открывает сессию администратора.
// После трёх неудачных попыток за час вход блокируется.
func (s *Service) Login(ctx context.Context, userID int64, password string) error {
	failures, err := s.repo.CountRecentFailures(ctx, userID, attemptsWindow)
	if err != nil {
		return fmt.Errorf("подсчёт попыток входа: %w", err)
	}
	if failures >= maxAttempts {
		return common.ErrTooManyAttempts
	}

	ok, err := verifyArgon2id(password, s.passwordHash)
	if err != nil {
		return fmt.Errorf("проверка пароля: %w", err)
	}

	if logErr := s.repo.LogAttempt(ctx, userID, ok); logErr != nil {
		log.WithError(logErr).Warn("Не удалось записать попытку входа")
	}

	if !ok {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	token, err := generateSecureToken()
	if err != nil {
		return fmt.Errorf("генерация токена сессии: %w", err)
	}

	if err := s.repo.CreateSession(ctx, userID, token, sessionTTL); err != nil {
		return fmt.Errorf("создание сессии: %w", err)
	}

	log.WithField("user_id", userID).Info("Администратор вошёл в панель")
	return nil
}

// CheckSession проверяет наличие активной сессии и продлевает её активность.
func (s *Service) CheckSession(ctx context.Context, userID int64) (bool, error) {
	session, err := s.repo.GetActiveSession(ctx, userID)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}

	if err := s.repo.UpdateActivity(ctx, session.ID); err != nil {
		log.WithError(err).Warn("Не удалось обновить активность сессии")
	}

	return true, nil
}

// Logout завершает все сессии администратора.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	s.ClearState(userID)
	return s.repo.DeactivateSessions(ctx, userID)
}

// GetState возвращает текущее состояние диалога администратора.
func (s *Service) GetState(userID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[userID]
	if !ok {
		return nil
	}
	if time.Now().After(st.ExpiresAt) {
		delete(s.states, userID)
		return nil
	}
	return st
}

// SetState устанавливает состояние диалога администратора.
func (s *Service) SetState(userID int64, state string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[userID] = &State{
		State:     state,
		Data:      data,
		ExpiresAt: time.Now().Add(stateTTL),
	}
}

// ClearState сбрасывает состояние диалога администратора.
func (s *Service) ClearState(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// verifyArgon2id проверяет пароль по хешу в формате
// $argon2id$v=19$m=65536,t=3,p=2$<salt_base64>$<hash_base64>
func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, fmt.Errorf("неверный формат хеша пароля")
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("разбор параметров argon2: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("декодирование соли: %w", err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("декодирование хеша: %w", err)
	}

	actual := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expected)))

	return subtle.ConstantTimeCompare(actual, expected) == 1, nil
}

// generateSecureToken создаёт криптографически стойкий токен сессии.
func generateSecureToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
