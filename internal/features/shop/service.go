// Package shop — service.go содержит бизнес-логику покупки:
// параметры по конфигурации, ограниченный повтор при проигранной гонке
// и форматирование истории покупок.
package shop

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// Store описывает операции хранилища, нужные сервису.
// Реализуется *Repository; в тестах подменяется фейком.
type Store interface {
	Purchase(ctx context.Context, p PurchaseParams) (*keys.Key, *Order, error)
	ListUserOrders(ctx context.Context, userID int64, limit int) ([]*HistoryItem, error)
	GetTotals(ctx context.Context) (*Totals, error)
	GetTotalsByCategory(ctx context.Context) ([]*CategoryTotals, error)
}

// Сколько раз повторяем покупку целиком при проигранной гонке или таймауте.
// Повторять можно только всю транзакцию: частичных состояний у неё нет.
const purchaseAttempts = 2

// Service оформляет покупки ключей.
type Service struct {
	store Store
	cfg   *config.Config
}

// NewService создаёт сервис покупок.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{store: store, cfg: cfg}
}

// BuyKey покупает обычный ключ за цену из конфигурации.
func (s *Service) BuyKey(ctx context.Context, userID int64) (*keys.Key, *Order, error) {
	return s.purchaseWithRetry(ctx, PurchaseParams{
		UserID:   userID,
		Price:    s.cfg.KeyPrice,
		Category: keys.CategoryDefault,
		Validity: s.cfg.KeyValidity(),
	})
}

// ClaimTrialKey выдаёт бесплатный тестовый ключ с коротким сроком действия.
// Одноразовость и запрет после платных покупок проверяются внутри
// транзакции покупки.
func (s *Service) ClaimTrialKey(ctx context.Context, userID int64) (*keys.Key, *Order, error) {
	return s.purchaseWithRetry(ctx, PurchaseParams{
		UserID:   userID,
		Price:    0,
		Category: keys.CategoryTrial,
		Validity: s.cfg.TrialValidity(),
		Trial:    true,
	})
}

// purchaseWithRetry выполняет покупку, повторяя её целиком ограниченное
// число раз при ErrStoreConflict/ErrStoreTimeout. Остальные ошибки
// терминальны для этой попытки.
func (s *Service) purchaseWithRetry(ctx context.Context, p PurchaseParams) (*keys.Key, *Order, error) {
	var lastErr error
	for attempt := 1; attempt <= purchaseAttempts; attempt++ {
		key, order, err := s.store.Purchase(ctx, p)
		if err == nil {
			log.WithFields(log.Fields{
				"user_id":  p.UserID,
				"key_id":   key.ID,
				"order_id": order.ID,
				"category": p.Category,
				"amount":   p.Price,
			}).Info("Покупка оформлена")
			return key, order, nil
		}
		lastErr = err
		if !errors.Is(err, common.ErrStoreConflict) && !errors.Is(err, common.ErrStoreTimeout) {
			return nil, nil, err
		}
		log.WithError(err).WithFields(log.Fields{
			"user_id": p.UserID,
			"attempt": attempt,
		}).Warn("Покупка не прошла из-за гонки/таймаута, повторяем")
	}
	return nil, nil, lastErr
}

// GetUserHistory возвращает последние покупки пользователя.
func (s *Service) GetUserHistory(ctx context.Context, userID int64, limit int) ([]*HistoryItem, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListUserOrders(ctx, userID, limit)
}

// GetTotals возвращает сводку заказов для админ-статистики.
func (s *Service) GetTotals(ctx context.Context) (*Totals, error) {
	return s.store.GetTotals(ctx)
}

// GetTotalsByCategory возвращает сводку заказов по категориям ключей.
func (s *Service) GetTotalsByCategory(ctx context.Context) ([]*CategoryTotals, error) {
	return s.store.GetTotalsByCategory(ctx)
}
