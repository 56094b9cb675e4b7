package tasks

import (
	"encoding/json"
	"time"

	"salona/models"
	"salona/services/scheduling"

	"github.com/hibiken/asynq"
)

const TypeSendReminder = "reminder:send"

// NewReminderTask builds a delayed reminder task. The task id is the
// appointment id, so a pending reminder can be deleted when the appointment
// is cancelled or superseded.
func NewReminderTask(payload models.ReminderPayload, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(payload.AppointmentID),
	}

	return task, opts, nil
}

// FireAt computes when the reminder for a slot should fire: lead before the
// appointment start.
func FireAt(date, timeOfDay string, lead time.Duration) (time.Time, error) {
	day, err := scheduling.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	start, err := scheduling.ParseClock(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(start) * time.Minute).Add(-lead), nil
}
