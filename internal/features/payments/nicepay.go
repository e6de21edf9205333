// Package payments — nicepay.go: исходящий клиент API Nicepay.
// Единственная операция — создание счёта на оплату. Результат вебхуков
// обрабатывает service.go, сюда они не попадают.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/config"
)

// Client — HTTP-клиент API Nicepay с фиксированным таймаутом.
type Client struct {
	cfg  *config.Config
	http *http.Client
}

// NewClient создаёт клиент Nicepay.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.NicepayHTTPTimeout},
	}
}

// createRequest — тело запроса создания счёта.
type createRequest struct {
	MerchantID  string `json:"merchant_id"`
	Secret      string `json:"secret"`
	OrderID     string `json:"order_id"`
	Customer    string `json:"customer"`
	Amount      int64  `json:"amount"` // в копейках
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url,omitempty"`
	FailURL     string `json:"fail_url,omitempty"`
}

// createResponse — ответ API создания счёта.
type createResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		PaymentID string `json:"payment_id"`
		Link      string `json:"link"`
		Message   string `json:"message"`
	} `json:"data"`
}

// CreateInvoice создаёт счёт на пополнение у провайдера.
// amount — в копейках; проверка диапазона выполняется в сервисе до вызова.
// order_id генерируется локально и служит идемпотентным ключом счёта.
func (c *Client) CreateInvoice(ctx context.Context, userID int64, amount int64) (*Invoice, error) {
	orderID := fmt.Sprintf("order_%d_%d", time.Now().UnixMilli(), userID)

	payload := createRequest{
		MerchantID:  c.cfg.NicepayMerchantID,
		Secret:      c.cfg.NicepaySecretKey,
		OrderID:     orderID,
		Customer:    fmt.Sprintf("%d", userID),
		Amount:      amount,
		Currency:    c.cfg.NicepayCurrency,
		Description: fmt.Sprintf("Пополнение баланса Telegram ID %d", userID),
		SuccessURL:  c.cfg.NicepaySuccessURL,
		FailURL:     c.cfg.NicepayFailURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ошибка кодирования запроса: %w", err)
	}

	url := c.cfg.NicepayBaseURL + "/payment"
	log.WithFields(log.Fields{
		"url":      url,
		"order_id": orderID,
		"amount":   amount,
		"currency": payload.Currency,
	}).Debug("Nicepay: создание счёта")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к Nicepay: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа Nicepay: %w", err)
	}

	var parsed createResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("некорректный ответ Nicepay (HTTP %d): %w", resp.StatusCode, err)
	}

	if parsed.Status != "success" {
		message := parsed.Message
		if message == "" {
			message = parsed.Data.Message
		}
		if message == "" {
			message = "unknown error"
		}
		return nil, fmt.Errorf("Nicepay отклонил создание счёта: %s", message)
	}
	if parsed.Data.PaymentID == "" || parsed.Data.Link == "" {
		return nil, fmt.Errorf("в ответе Nicepay нет payment_id или ссылки на оплату")
	}

	return &Invoice{
		OrderID:           orderID,
		ProviderPaymentID: parsed.Data.PaymentID,
		PaymentURL:        parsed.Data.Link,
		RawResponse:       raw,
	}, nil
}
