package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"salona/config"
	appointmentRepo "salona/database/repository/appointment"
	"salona/models"
	"salona/services/notification"
	"salona/services/tasks"
	"salona/utils"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// InitReminderWorker runs the async reminder worker in background.
func InitReminderWorker(appts appointmentRepo.AppointmentRepository, notifier notification.Notifier) {
	logger := utils.GetLogger()

	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSendReminder, handleReminderTask(appts, notifier))

	// Start async worker with retry logic
	go func() {
		logger.Info("starting reminder worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				logger.Error("reminder worker failed to start",
					zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))

				if attempts == maxAttempts {
					logger.Fatal("reminder worker exhausted start attempts")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleReminderTask(appts appointmentRepo.AppointmentRepository, notifier notification.Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		logger := utils.GetLogger()

		var p models.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			logger.Error("invalid reminder payload", zap.Error(err))
			return err
		}

		// A cancel or reschedule may have raced the queue; the task id delete
		// is best effort, so re-check the appointment before sending.
		appt, err := appts.GetByID(ctx, p.AppointmentID)
		if err != nil {
			return fmt.Errorf("failed to load appointment %s: %w", p.AppointmentID, err)
		}
		if appt == nil || !appt.Status.IsActive() {
			logger.Info("skipping reminder for inactive appointment",
				zap.String("appointmentID", p.AppointmentID))
			return nil
		}

		text := fmt.Sprintf("Reminder: you have an appointment on %s at %s. See you soon!",
			appt.Date, appt.Time)
		if err := notifier.SendMessage(ctx, p.TelegramID, text); err != nil {
			logger.Error("failed to deliver reminder",
				zap.String("appointmentID", p.AppointmentID), zap.Error(err))
			return err
		}

		logger.Info("reminder delivered",
			zap.String("appointmentID", p.AppointmentID),
			zap.String("date", appt.Date), zap.String("time", appt.Time))
		return nil
	}
}
