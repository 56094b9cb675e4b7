package tasks

import (
	"errors"
	"fmt"
	"time"

	"salona/models"

	"github.com/hibiken/asynq"
)

// Scheduler enqueues and withdraws delayed reminder tasks on the asynq
// queue. The booking transaction manager calls it after each successful
// state change.
type Scheduler struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	Lead      time.Duration // how long before the slot the reminder fires

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Schedule enqueues a reminder for an appointment. Slots starting too soon
// for the configured lead get no reminder.
func (s *Scheduler) Schedule(appt *models.Appointment, telegramID string) error {
	fireAt, err := FireAt(appt.Date, appt.Time, s.Lead)
	if err != nil {
		return fmt.Errorf("cannot place reminder for appointment %s: %w", appt.ID, err)
	}
	if !fireAt.After(s.now()) {
		return nil
	}

	payload := models.ReminderPayload{
		AppointmentID: appt.ID,
		CustomerID:    appt.CustomerID,
		TelegramID:    telegramID,
		Date:          appt.Date,
		Time:          appt.Time,
	}
	task, opts, err := NewReminderTask(payload, fireAt)
	if err != nil {
		return fmt.Errorf("failed to build reminder task for %s: %w", appt.ID, err)
	}
	if _, err := s.Client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue reminder for %s: %w", appt.ID, err)
	}
	return nil
}

// Cancel withdraws a pending reminder. A reminder that already fired or was
// never scheduled is not an error.
func (s *Scheduler) Cancel(appointmentID string) error {
	err := s.Inspector.DeleteTask("default", appointmentID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("failed to withdraw reminder for %s: %w", appointmentID, err)
	}
	return nil
}
