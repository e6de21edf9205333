// Package payments — service.go содержит бизнес-логику пополнений:
// создание счёта и идемпотентную сверку входящих вебхуков.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
)

// Store описывает операции хранилища, нужные сервису.
// Реализуется *Repository; в тестах подменяется фейком.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByProviderID(ctx context.Context, providerPaymentID string) (*Payment, error)
	ApplySuccess(ctx context.Context, providerPaymentID string, rawWebhook []byte) (bool, error)
	MarkFailed(ctx context.Context, providerPaymentID string, rawWebhook []byte) (Status, error)
	RecordWebhook(ctx context.Context, providerPaymentID string, rawWebhook []byte) error
}

// InvoiceClient — исходящий клиент создания счетов.
// Реализуется *Client; в тестах подменяется фейком.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, userID int64, amount int64) (*Invoice, error)
}

// Service управляет пополнениями баланса.
type Service struct {
	store  Store
	client InvoiceClient
	cfg    *config.Config
}

// NewService создаёт сервис платежей.
func NewService(store Store, client InvoiceClient, cfg *config.Config) *Service {
	return &Service{store: store, client: client, cfg: cfg}
}

// CreateTopUp выставляет счёт на пополнение и записывает ожидающий платёж.
// amount — в копейках, проверяется на диапазон провайдера.
// Возвращает ссылку на оплату для пользователя.
func (s *Service) CreateTopUp(ctx context.Context, userID int64, amount int64) (string, error) {
	if amount < s.cfg.NicepayMinAmount || amount > s.cfg.NicepayMaxAmount {
		return "", common.ErrAmountOutOfRange
	}

	invoice, err := s.client.CreateInvoice(ctx, userID, amount)
	if err != nil {
		return "", fmt.Errorf("не удалось создать счёт: %w", err)
	}

	payment := &Payment{
		Provider:          "nicepay",
		UserID:            userID,
		Amount:            amount,
		Currency:          s.cfg.NicepayCurrency,
		Status:            StatusCreated,
		OrderID:           invoice.OrderID,
		ProviderPaymentID: invoice.ProviderPaymentID,
		RawCreateResponse: invoice.RawResponse,
	}
	if err := s.store.Create(ctx, payment); err != nil {
		return "", err
	}

	log.WithFields(log.Fields{
		"user_id":    userID,
		"amount":     amount,
		"order_id":   invoice.OrderID,
		"payment_id": invoice.ProviderPaymentID,
	}).Info("Счёт на пополнение создан")
	return invoice.PaymentURL, nil
}

// Reconcile применяет один вебхук провайдера к платежу.
//
// Шаги:
//  1. Проверка подписи: несовпадение — ErrInvalidSignature, никаких записей.
//  2. Поиск платежа по payment_id провайдера: неизвестный — не ошибка,
//     возвращается status=unknown (чужое или уже вычищенное событие,
//     записей в леджере не создаём).
//  3. Применение: success зачисляется ровно один раз (повтор — no-op
//     с сохранением payload), error переводит в failed без зачисления,
//     остальные исходы статус не меняют.
//
// Сколько бы раз и в каком бы порядке ни пришли вебхуки одного платежа,
// баланс будет пополнен не больше одного раза.
func (s *Service) Reconcile(ctx context.Context, params map[string]string) (*ReconcileResult, error) {
	if !VerifySignature(params, s.cfg.NicepaySecretKey) {
		log.WithField("payment_id", params["payment_id"]).Warn("Вебхук с неверной подписью отклонён")
		return nil, common.ErrInvalidSignature
	}

	providerPaymentID := params["payment_id"]
	if providerPaymentID == "" {
		return nil, fmt.Errorf("в вебхуке отсутствует payment_id")
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации вебхука: %w", err)
	}

	switch params["result"] {
	case "success":
		applied, err := s.store.ApplySuccess(ctx, providerPaymentID, raw)
		if err != nil {
			if errors.Is(err, common.ErrUnknownReference) {
				log.WithField("payment_id", providerPaymentID).Info("Вебхук по неизвестному платежу, пропускаем")
				return &ReconcileResult{Applied: false, Status: "unknown"}, nil
			}
			return nil, err
		}
		if applied {
			log.WithField("payment_id", providerPaymentID).Info("Платёж подтверждён, баланс пополнен")
		} else {
			log.WithField("payment_id", providerPaymentID).Info("Повторный вебхук об успехе, зачисление пропущено")
		}
		return &ReconcileResult{Applied: applied, Status: string(StatusSuccess)}, nil

	case "error":
		status, err := s.store.MarkFailed(ctx, providerPaymentID, raw)
		if err != nil {
			if errors.Is(err, common.ErrUnknownReference) {
				return &ReconcileResult{Applied: false, Status: "unknown"}, nil
			}
			return nil, err
		}
		if status == StatusSuccess {
			log.WithField("payment_id", providerPaymentID).Info("Запоздалый вебхук об ошибке после успеха, статус сохранён")
		} else {
			log.WithField("payment_id", providerPaymentID).Info("Платёж не прошёл")
		}
		return &ReconcileResult{Applied: false, Status: string(status)}, nil

	default:
		// Неинтерпретируемый исход: статус не трогаем, payload сохраняем
		if err := s.store.RecordWebhook(ctx, providerPaymentID, raw); err != nil {
			if errors.Is(err, common.ErrUnknownReference) {
				return &ReconcileResult{Applied: false, Status: "unknown"}, nil
			}
			return nil, err
		}
		return &ReconcileResult{Applied: false, Status: "unchanged"}, nil
	}
}

// GetByProviderID возвращает платёж по ID провайдера (для ручной проверки статуса).
func (s *Service) GetByProviderID(ctx context.Context, providerPaymentID string) (*Payment, error) {
	return s.store.GetByProviderID(ctx, providerPaymentID)
}
