package models

import "time"

// AppointmentStatus is the finite appointment lifecycle:
// pending -> confirmed -> {cancelled, rescheduled}.
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// IsActive reports whether the status occupies a slot.
func (s AppointmentStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Valid reports whether the value is one of the known lifecycle statuses.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// Appointment is a booked time slot belonging to exactly one customer.
// A rescheduled appointment is never mutated in place; a new row supersedes
// it and the two reference each other, preserving the audit trail.
type Appointment struct {
	ID              string            `bson:"id" json:"id"`
	CustomerID      string            `bson:"customer_id" json:"customer_id"`
	Date            string            `bson:"date" json:"date"` // "2006-01-02"
	Time            string            `bson:"time" json:"time"` // "15:04"
	DurationMinutes int               `bson:"duration_minutes" json:"duration_minutes"`
	Notes           string            `bson:"notes,omitempty" json:"notes,omitempty"`
	Status          AppointmentStatus `bson:"status" json:"status"`

	// Active mirrors Status.IsActive and scopes the partial unique index on
	// (date, time) that enforces at-most-one active appointment per slot.
	Active bool `bson:"active" json:"-"`

	RescheduledTo   string `bson:"rescheduled_to,omitempty" json:"rescheduled_to,omitempty"`
	RescheduledFrom string `bson:"rescheduled_from,omitempty" json:"rescheduled_from,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
