package appointmentRepo

import (
	"context"
	"errors"

	"salona/models"
)

// ErrDuplicateSlot is returned when an insert loses the race for an active
// (date, time) slot to the partial unique index.
var ErrDuplicateSlot = errors.New("active appointment already exists for slot")

// AppointmentRepository defines appointment data access. The at-most-one
// active appointment per (date, time) invariant is enforced here, at the
// storage layer, so callers across customers need no application-level lock.
type AppointmentRepository interface {
	// GetByID retrieves an appointment, returning (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	// ListByCustomer returns a customer's appointments ordered by date and
	// time, optionally filtered by status ("" means all).
	ListByCustomer(ctx context.Context, customerID string, status models.AppointmentStatus) ([]models.Appointment, error)
	// ListActiveByDate returns the pending/confirmed appointments on a date.
	ListActiveByDate(ctx context.Context, date string) ([]models.Appointment, error)
	// Insert creates an appointment row. For active rows a slot collision
	// surfaces as ErrDuplicateSlot.
	Insert(ctx context.Context, appt *models.Appointment) error
	// UpdateStatus moves an appointment to a new lifecycle status, keeping
	// the active flag in sync. Returns (false, nil) when the id is unknown.
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus) (bool, error)
	// Supersede atomically marks orig rescheduled and inserts replacement;
	// both effects commit together or not at all. A replacement slot
	// collision surfaces as ErrDuplicateSlot and leaves orig untouched.
	Supersede(ctx context.Context, orig *models.Appointment, replacement *models.Appointment) error
}
