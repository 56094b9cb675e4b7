package models

// ReminderPayload is the queued reminder task body. It carries enough to
// deliver the message without a lookup, but the appointment id lets the
// worker re-check that the slot is still active before sending.
type ReminderPayload struct {
	AppointmentID string `json:"appointmentId"`
	CustomerID    string `json:"customerId"`
	TelegramID    string `json:"telegramId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}
