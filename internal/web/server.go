// Package web поднимает HTTP-сервер для вебхуков платёжного провайдера.
package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/common"
	"vpnshop.ru/telegram-bot/internal/config"
	"vpnshop.ru/telegram-bot/internal/features/payments"
)

// Server — HTTP-сервер вебхуков Nicepay.
type Server struct {
	app      *fiber.App
	cfg      *config.Config
	payments *payments.Service
}

// NewServer создаёт сервер и регистрирует маршруты.
func NewServer(cfg *config.Config, paymentService *payments.Service) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	s := &Server{
		app:      app,
		cfg:      cfg,
		payments: paymentService,
	}

	app.Get("/health", s.handleHealth)
	app.Get(cfg.WebhookPath, s.handleNicepayCallback)

	return s
}

// Start запускает сервер (блокирующий вызов).
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.WebhookPort)
	log.WithField("addr", addr).Info("HTTP-сервер вебхуков запущен")
	return s.app.Listen(addr)
}

// Shutdown останавливает сервер, дожидаясь активных запросов.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// handleNicepayCallback принимает вебхук провайдера и сверяет платёж.
//
// Ответы подобраны под политику повторов провайдера: на невалидную
// подпись и прочие некорректные запросы отвечаем 400 (повторять
// бессмысленно), на внутренние сбои — 500 (провайдер повторит вебхук,
// сверка идемпотентна). Неизвестный платёж — 200, чтобы не зациклить
// повторы чужого события.
func (s *Server) handleNicepayCallback(c *fiber.Ctx) error {
	params := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})

	result, err := s.payments.Reconcile(c.Context(), params)
	if err != nil {
		if errors.Is(err, common.ErrInvalidSignature) {
			return c.Status(fiber.StatusBadRequest).SendString("invalid signature")
		}
		log.WithError(err).WithField("payment_id", params["payment_id"]).Error("Ошибка сверки вебхука")
		return c.Status(fiber.StatusInternalServerError).SendString("error")
	}

	log.WithFields(log.Fields{
		"payment_id": params["payment_id"],
		"result":     params["result"],
		"applied":    result.Applied,
		"status":     result.Status,
	}).Info("Вебхук обработан")

	return c.SendString("OK")
}
