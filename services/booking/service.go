package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentRepo "salona/database/repository/appointment"
	customerRepo "salona/database/repository/customer"
	"salona/models"
	"salona/services/scheduling"
	"salona/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service executes appointment state changes atomically against the booking
// store. It owns the at-most-one-appointment-per-slot guarantee; the slot
// grid callers read beforehand is advisory only.
type Service interface {
	AvailableSlots(ctx context.Context, date string, durationMinutes int) ([]scheduling.Slot, error)
	Book(ctx context.Context, customerID, date, timeOfDay string, durationMinutes int, notes string) (*models.Appointment, error)
	Reschedule(ctx context.Context, customerID, appointmentID, newDate, newTime string) (*models.Appointment, error)
	Cancel(ctx context.Context, customerID, appointmentID string) error
	CustomerAppointments(ctx context.Context, customerID string, status models.AppointmentStatus) ([]models.Appointment, error)
	FindByDateTime(ctx context.Context, customerID, date, timeOfDay string) (*models.Appointment, error)
}

// ReminderScheduler places and withdraws delayed appointment reminders.
// Reminder bookkeeping is best effort: a scheduler failure never fails the
// booking transaction that triggered it.
type ReminderScheduler interface {
	Schedule(appt *models.Appointment, telegramID string) error
	Cancel(appointmentID string) error
}

// DefaultTransactionManager implements Service over the appointment
// repository. The repository's partial unique index on active (date, time)
// is the compare-and-set that keeps the invariant under concurrency.
type DefaultTransactionManager struct {
	Appointments appointmentRepo.AppointmentRepository
	Customers    customerRepo.CustomerRepository
	Hours        scheduling.BusinessHours

	// Reminders is optional; nil disables reminder scheduling.
	Reminders ReminderScheduler

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (m *DefaultTransactionManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// AvailableSlots computes the advisory slot grid for a date from a snapshot
// of active bookings.
func (m *DefaultTransactionManager) AvailableSlots(ctx context.Context, date string, durationMinutes int) ([]scheduling.Slot, error) {
	booked, err := m.Appointments.ListActiveByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings for %s: %w", date, err)
	}
	return scheduling.AvailableSlots(date, durationMinutes, booked, m.Hours)
}

// Book validates the request and inserts a pending appointment. Losing the
// slot race to a concurrent booking returns ErrSlotConflict; the caller is
// expected to recompute availability rather than retry blindly.
func (m *DefaultTransactionManager) Book(ctx context.Context, customerID, date, timeOfDay string, durationMinutes int, notes string) (*models.Appointment, error) {
	logger := utils.GetLogger()

	if durationMinutes <= 0 {
		durationMinutes = m.Hours.SlotMinutes
	}
	if _, err := m.validateSlot(date, timeOfDay, durationMinutes); err != nil {
		return nil, err
	}

	appt := &models.Appointment{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Date:            date,
		Time:            timeOfDay,
		DurationMinutes: durationMinutes,
		Notes:           notes,
		Status:          models.StatusPending,
	}

	if err := m.Appointments.Insert(ctx, appt); err != nil {
		if errors.Is(err, appointmentRepo.ErrDuplicateSlot) {
			logger.Info("booking lost slot race",
				zap.String("customerID", customerID),
				zap.String("date", date), zap.String("time", timeOfDay))
			return nil, ErrSlotConflict
		}
		logger.Error("booking insert failed", zap.String("customerID", customerID), zap.Error(err))
		return nil, fmt.Errorf("booking transaction failed: %w", err)
	}

	logger.Info("appointment booked",
		zap.String("appointmentID", appt.ID),
		zap.String("customerID", customerID),
		zap.String("date", date), zap.String("time", timeOfDay))
	m.scheduleReminder(ctx, appt)
	return appt, nil
}

// Reschedule atomically supersedes an active appointment with a new one at
// the requested slot. Both effects commit together or not at all.
func (m *DefaultTransactionManager) Reschedule(ctx context.Context, customerID, appointmentID, newDate, newTime string) (*models.Appointment, error) {
	logger := utils.GetLogger()

	orig, err := m.ownedActive(ctx, customerID, appointmentID)
	if err != nil {
		return nil, err
	}

	if _, err := m.validateSlot(newDate, newTime, orig.DurationMinutes); err != nil {
		return nil, err
	}

	replacement := &models.Appointment{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Date:            newDate,
		Time:            newTime,
		DurationMinutes: orig.DurationMinutes,
		Notes:           orig.Notes,
		Status:          models.StatusPending,
	}

	if err := m.Appointments.Supersede(ctx, orig, replacement); err != nil {
		if errors.Is(err, appointmentRepo.ErrDuplicateSlot) {
			return nil, ErrSlotConflict
		}
		logger.Error("reschedule transaction failed",
			zap.String("appointmentID", appointmentID), zap.Error(err))
		return nil, fmt.Errorf("reschedule failed: %w", err)
	}

	logger.Info("appointment rescheduled",
		zap.String("from", orig.ID), zap.String("to", replacement.ID),
		zap.String("date", newDate), zap.String("time", newTime))
	m.cancelReminder(orig.ID)
	m.scheduleReminder(ctx, replacement)
	return replacement, nil
}

// Cancel marks an appointment cancelled. Cancelling an already-cancelled
// appointment is a no-op success so duplicate deliveries of the same user
// request are harmless.
func (m *DefaultTransactionManager) Cancel(ctx context.Context, customerID, appointmentID string) error {
	appt, err := m.Appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to load appointment %s: %w", appointmentID, err)
	}
	if appt == nil || appt.CustomerID != customerID {
		return ErrNotFound
	}
	if appt.Status == models.StatusCancelled {
		return nil
	}
	if appt.Status == models.StatusRescheduled {
		return ErrNotFound
	}

	matched, err := m.Appointments.UpdateStatus(ctx, appointmentID, models.StatusCancelled)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment %s: %w", appointmentID, err)
	}
	if !matched {
		return ErrNotFound
	}

	utils.GetLogger().Info("appointment cancelled",
		zap.String("appointmentID", appointmentID), zap.String("customerID", customerID))
	m.cancelReminder(appointmentID)
	return nil
}

// scheduleReminder enqueues the pre-appointment reminder. The chat id comes
// from the customer record; a missing customer or scheduler failure is
// logged and swallowed so the committed booking stands.
func (m *DefaultTransactionManager) scheduleReminder(ctx context.Context, appt *models.Appointment) {
	if m.Reminders == nil {
		return
	}
	logger := utils.GetLogger()

	telegramID := ""
	if m.Customers != nil {
		customer, err := m.Customers.GetByID(ctx, appt.CustomerID)
		if err != nil || customer == nil {
			logger.Warn("no customer record for reminder",
				zap.String("appointmentID", appt.ID),
				zap.String("customerID", appt.CustomerID), zap.Error(err))
			return
		}
		telegramID = customer.TelegramID
	}

	if err := m.Reminders.Schedule(appt, telegramID); err != nil {
		logger.Warn("failed to schedule reminder",
			zap.String("appointmentID", appt.ID), zap.Error(err))
	}
}

// cancelReminder withdraws a pending reminder, best effort.
func (m *DefaultTransactionManager) cancelReminder(appointmentID string) {
	if m.Reminders == nil {
		return
	}
	if err := m.Reminders.Cancel(appointmentID); err != nil {
		utils.GetLogger().Warn("failed to withdraw reminder",
			zap.String("appointmentID", appointmentID), zap.Error(err))
	}
}

// CustomerAppointments lists a customer's appointments, optionally filtered
// by status.
func (m *DefaultTransactionManager) CustomerAppointments(ctx context.Context, customerID string, status models.AppointmentStatus) ([]models.Appointment, error) {
	return m.Appointments.ListByCustomer(ctx, customerID, status)
}

// FindByDateTime resolves an appointment the user referenced by date (and
// optionally time) instead of id: the most recently created active
// appointment matching the stated date wins.
func (m *DefaultTransactionManager) FindByDateTime(ctx context.Context, customerID, date, timeOfDay string) (*models.Appointment, error) {
	appts, err := m.Appointments.ListByCustomer(ctx, customerID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments for %s: %w", customerID, err)
	}

	var match *models.Appointment
	for i := range appts {
		a := &appts[i]
		if !a.Status.IsActive() || a.Date != date {
			continue
		}
		if timeOfDay != "" && a.Time != timeOfDay {
			continue
		}
		if match == nil || a.CreatedAt.After(match.CreatedAt) {
			match = a
		}
	}
	if match == nil {
		return nil, ErrNotFound
	}
	return match, nil
}

// ownedActive loads an appointment and checks it belongs to the customer and
// still occupies a slot. Ownership failures report ErrNotFound rather than
// leaking another customer's booking.
func (m *DefaultTransactionManager) ownedActive(ctx context.Context, customerID, appointmentID string) (*models.Appointment, error) {
	appt, err := m.Appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment %s: %w", appointmentID, err)
	}
	if appt == nil || appt.CustomerID != customerID || !appt.Status.IsActive() {
		return nil, ErrNotFound
	}
	return appt, nil
}

// validateSlot checks format, future-ness and business-hours policy for a
// requested (date, time, duration). Returns the start in minutes.
func (m *DefaultTransactionManager) validateSlot(date, timeOfDay string, durationMinutes int) (int, error) {
	day, err := scheduling.ParseDate(date)
	if err != nil {
		return 0, NewValidationError("date", "date must look like 2025-11-25")
	}
	start, err := scheduling.ParseClock(timeOfDay)
	if err != nil {
		return 0, NewValidationError("time", "time must look like 14:00")
	}

	startAt := day.Add(time.Duration(start) * time.Minute)
	if !startAt.After(m.now()) {
		return 0, NewValidationError("time", "the requested time has already passed")
	}

	if start < m.Hours.OpenMinute || start+durationMinutes > m.Hours.CloseMinute {
		return 0, NewValidationError("time", fmt.Sprintf("appointments run between %s and %s",
			scheduling.FormatClock(m.Hours.OpenMinute), scheduling.FormatClock(m.Hours.CloseMinute)))
	}
	if m.Hours.StepMinutes > 0 && (start-m.Hours.OpenMinute)%m.Hours.StepMinutes != 0 {
		return 0, NewValidationError("time", fmt.Sprintf("appointments start every %d minutes", m.Hours.StepMinutes))
	}
	return start, nil
}
