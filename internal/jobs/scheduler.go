// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: периодическая проверка истёкших ключей.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"vpnshop.ru/telegram-bot/internal/features/keys"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	keyService *keys.Service
	schedule   string
}

// NewScheduler создаёт планировщик задач с московским часовым поясом.
func NewScheduler(keyService *keys.Service, schedule string) *Scheduler {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить Europe/Moscow, используем UTC+3")
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		keyService: keyService,
		schedule:   schedule,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	// Периодический перевод истёкших ключей в expired
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Debug("[CRON] Проверка истёкших ключей")
		count, err := s.keyService.SweepExpired(ctx)
		if err != nil {
			log.WithError(err).Error("[CRON] Ошибка проверки истёкших ключей")
			return
		}
		if count > 0 {
			log.WithField("count", count).Info("[CRON] Истёкшие ключи обработаны")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.WithField("schedule", s.schedule).Info("Планировщик задач запущен (Europe/Moscow)")
	return nil
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
