package tasks

import (
	"encoding/json"
	"testing"
	"time"

	"salona/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFireAt(t *testing.T) {
	fireAt, err := FireAt("2026-09-02", "14:00", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 2, 13, 0, 0, 0, time.UTC), fireAt)

	fireAt, err = FireAt("2026-09-02", "09:00", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 2, 8, 30, 0, 0, time.UTC), fireAt)

	_, err = FireAt("tomorrow", "14:00", time.Hour)
	assert.Error(t, err)
	_, err = FireAt("2026-09-02", "2pm", time.Hour)
	assert.Error(t, err)
}

func TestNewReminderTaskCarriesPayload(t *testing.T) {
	payload := models.ReminderPayload{
		AppointmentID: "appt-1",
		CustomerID:    "cust-1",
		TelegramID:    "1001",
		Date:          "2026-09-02",
		Time:          "14:00",
	}
	task, opts, err := NewReminderTask(payload, time.Date(2026, 9, 2, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, TypeSendReminder, task.Type())
	assert.Len(t, opts, 2)

	var got models.ReminderPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, payload, got)
}
