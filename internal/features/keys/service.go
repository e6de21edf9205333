// Package keys — service.go содержит бизнес-логику склада ключей:
// импорт, отзыв, статистика и фоновый перевод истёкших ключей в expired.
package keys

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/notify"
)

// Store описывает операции хранилища, нужные сервису.
// Реализуется *Repository; в тестах подменяется фейком.
type Store interface {
	BulkImport(ctx context.Context, values []string, category Category) (*ImportResult, error)
	GetUserActiveKey(ctx context.Context, userID int64) (*Key, error)
	AvailableCount(ctx context.Context, category Category) (int64, error)
	GetStats(ctx context.Context) ([]*Stats, error)
	ListElapsed(ctx context.Context) ([]*Key, error)
	MarkExpired(ctx context.Context, keyID int64) (bool, error)
	Revoke(ctx context.Context, keyValue string) (*Key, error)
}

// Service управляет складом ключей.
type Service struct {
	store    Store
	notifier notify.Notifier

	// Защита от перекрывающихся прогонов проверки истёкших ключей.
	// Сам перевод статуса идемпотентен, но гонять два прогона параллельно незачем.
	sweepMu sync.Mutex
}

// NewService создаёт сервис склада ключей.
func NewService(store Store, notifier notify.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// BulkImport добавляет ключи на склад с дедупликацией по значению.
// Пустые строки и пробелы по краям отбрасываются до вставки.
func (s *Service) BulkImport(ctx context.Context, values []string, category Category) (*ImportResult, error) {
	if !category.IsValid() {
		return nil, fmt.Errorf("неизвестная категория ключа: %q", category)
	}

	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return &ImportResult{}, nil
	}

	result, err := s.store.BulkImport(ctx, cleaned, category)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"category":   category,
		"inserted":   result.Inserted,
		"duplicates": result.Duplicates,
	}).Info("Импорт ключей завершён")
	return result, nil
}

// GetUserActiveKey возвращает действующий ключ пользователя или nil.
func (s *Service) GetUserActiveKey(ctx context.Context, userID int64) (*Key, error) {
	return s.store.GetUserActiveKey(ctx, userID)
}

// AvailableCount возвращает количество доступных ключей категории.
func (s *Service) AvailableCount(ctx context.Context, category Category) (int64, error) {
	return s.store.AvailableCount(ctx, category)
}

// GetStats возвращает статистику склада по категориям.
func (s *Service) GetStats(ctx context.Context) ([]*Stats, error) {
	return s.store.GetStats(ctx)
}

// Revoke отзывает выданный ключ (admin-операция).
// Если ключ не найден или уже не в статусе assigned — common.ErrNoInventory
// не подходит по смыслу, поэтому возвращаем понятную ошибку.
func (s *Service) Revoke(ctx context.Context, keyValue string) (*Key, error) {
	key, err := s.store.Revoke(ctx, strings.TrimSpace(keyValue))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, fmt.Errorf("выданный ключ %q не найден", keyValue)
	}
	log.WithFields(log.Fields{"key_id": key.ID}).Info("Ключ отозван")
	return key, nil
}

// SweepExpired переводит все выданные ключи с истёкшим сроком в expired
// и уведомляет владельцев. Возвращает количество переведённых ключей.
//
// Каждый перевод — независимый compare-and-swap: прогон после частичного
// сбоя затронет только ключи, оставшиеся в assigned. Ошибка отправки
// уведомления логируется и не откатывает перевод статуса.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	if !s.sweepMu.TryLock() {
		log.Debug("Проверка истёкших ключей уже выполняется, пропускаем")
		return 0, nil
	}
	defer s.sweepMu.Unlock()

	elapsed, err := s.store.ListElapsed(ctx)
	if err != nil {
		return 0, err
	}

	transitioned := 0
	for _, key := range elapsed {
		ok, err := s.store.MarkExpired(ctx, key.ID)
		if err != nil {
			// Не прерываем весь прогон из-за одного ключа
			log.WithError(err).WithField("key_id", key.ID).Error("Не удалось перевести ключ в expired")
			continue
		}
		if !ok {
			// Ключ уже перевели (конкурентный прогон или ручной отзыв)
			continue
		}
		transitioned++

		if key.UserID == nil || key.ExpiresAt == nil {
			// Не должно случаться для assigned-ключа, но падать из-за этого нельзя
			log.WithField("key_id", key.ID).Warn("Истёкший ключ без владельца или срока")
			continue
		}
		text := fmt.Sprintf(
			"⏰ Уведомление: срок действия вашего VPN-ключа истёк %s.\n\nДля продолжения использования VPN вы можете приобрести новый ключ в меню бота.",
			common.FormatDate(*key.ExpiresAt),
		)
		if err := s.notifier.Notify(ctx, *key.UserID, text); err != nil {
			log.WithError(err).WithField("user_id", *key.UserID).Warn("Не удалось отправить уведомление об истечении")
		}
	}

	if transitioned > 0 {
		log.WithField("count", transitioned).Info("Истёкшие ключи переведены в expired")
	}
	return transitioned, nil
}
