// Package users — service.go содержит бизнес-логику работы с учётными записями:
// регистрация при первом обращении, баланс, ручные начисления.
package users

import (
	"context"

	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
)

// Store описывает операции хранилища, нужные сервису.
// Реализуется *Repository; в тестах подменяется фейком.
type Store interface {
	Ensure(ctx context.Context, userID int64, username string) error
	GetByUserID(ctx context.Context, userID int64) (*User, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
	Credit(ctx context.Context, userID int64, amount int64) error
	Count(ctx context.Context) (int64, error)
}

// Service управляет учётными записями покупателей.
type Service struct {
	store Store
}

// NewService создаёт сервис пользователей.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EnsureUser регистрирует пользователя при первом обращении
// (или обновляет username при повторном).
func (s *Service) EnsureUser(ctx context.Context, userID int64, username string) error {
	return s.store.Ensure(ctx, userID, username)
}

// GetUser возвращает учётную запись пользователя.
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	return s.store.GetByUserID(ctx, userID)
}

// GetBalance возвращает текущий баланс в копейках.
func (s *Service) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.store.GetBalance(ctx, userID)
}

// ManualCredit — ручное начисление администратором в обход платёжной системы
// (поддержка, компенсации). Сумма в копейках, строго положительная.
func (s *Service) ManualCredit(ctx context.Context, adminID, userID, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.store.Credit(ctx, userID, amount); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"admin_id": adminID,
		"user_id":  userID,
		"amount":   amount,
	}).Info("Ручное начисление баланса")
	return nil
}

// CountUsers возвращает количество зарегистрированных пользователей.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}
