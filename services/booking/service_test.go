package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appointmentRepo "salona/database/repository/appointment"
	"salona/models"
	"salona/services/scheduling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memAppointmentRepo is an in-memory AppointmentRepository enforcing the
// same active-(date,time) uniqueness the Mongo partial index provides.
type memAppointmentRepo struct {
	mu    sync.Mutex
	byID  map[string]*models.Appointment
	order []string
}

func newMemAppointmentRepo() *memAppointmentRepo {
	return &memAppointmentRepo{byID: map[string]*models.Appointment{}}
}

func (r *memAppointmentRepo) slotTakenLocked(date, timeOfDay, excludeID string) bool {
	for _, a := range r.byID {
		if a.ID != excludeID && a.Active && a.Date == date && a.Time == timeOfDay {
			return true
		}
	}
	return false
}

func (r *memAppointmentRepo) GetByID(_ context.Context, id string) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAppointmentRepo) ListByCustomer(_ context.Context, customerID string, status models.AppointmentStatus) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, id := range r.order {
		a := r.byID[id]
		if a.CustomerID != customerID {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *memAppointmentRepo) ListActiveByDate(_ context.Context, date string) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, id := range r.order {
		a := r.byID[id]
		if a.Active && a.Date == date {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *memAppointmentRepo) Insert(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.Active = appt.Status.IsActive()
	if appt.Active && r.slotTakenLocked(appt.Date, appt.Time, "") {
		return appointmentRepo.ErrDuplicateSlot
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}
	cp := *appt
	r.byID[appt.ID] = &cp
	r.order = append(r.order, appt.ID)
	return nil
}

func (r *memAppointmentRepo) UpdateStatus(_ context.Context, id string, status models.AppointmentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	a.Status = status
	a.Active = status.IsActive()
	return true, nil
}

func (r *memAppointmentRepo) Supersede(_ context.Context, orig *models.Appointment, replacement *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[orig.ID]
	if !ok || !stored.Active {
		return errors.New("original no longer active")
	}
	replacement.Active = replacement.Status.IsActive()
	if replacement.Active && r.slotTakenLocked(replacement.Date, replacement.Time, orig.ID) {
		return appointmentRepo.ErrDuplicateSlot
	}
	stored.Status = models.StatusRescheduled
	stored.Active = false
	stored.RescheduledTo = replacement.ID
	replacement.RescheduledFrom = orig.ID
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now()
	}
	cp := *replacement
	r.byID[replacement.ID] = &cp
	r.order = append(r.order, replacement.ID)
	return nil
}

// stubCustomerRepo serves the reminder path's chat-id lookup.
type stubCustomerRepo struct {
	byID map[string]*models.Customer
}

func (r *stubCustomerRepo) GetByTelegramID(_ context.Context, telegramID string) (*models.Customer, error) {
	for _, c := range r.byID {
		if c.TelegramID == telegramID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubCustomerRepo) GetByID(_ context.Context, id string) (*models.Customer, error) {
	if c, ok := r.byID[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *stubCustomerRepo) Create(_ context.Context, customer *models.Customer) error {
	cp := *customer
	r.byID[customer.ID] = &cp
	return nil
}

func (r *stubCustomerRepo) Update(_ context.Context, customer *models.Customer) error {
	return r.Create(context.Background(), customer)
}

// recordingScheduler captures reminder traffic from the manager.
type recordingScheduler struct {
	mu        sync.Mutex
	scheduled map[string]string // appointment id -> telegram id
	cancelled []string
	fail      bool
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{scheduled: map[string]string{}}
}

func (s *recordingScheduler) Schedule(appt *models.Appointment, telegramID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("queue unavailable")
	}
	s.scheduled[appt.ID] = telegramID
	return nil
}

func (s *recordingScheduler) Cancel(appointmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("queue unavailable")
	}
	s.cancelled = append(s.cancelled, appointmentID)
	return nil
}

func newTestManager(repo *memAppointmentRepo) *DefaultTransactionManager {
	return &DefaultTransactionManager{
		Appointments: repo,
		Hours: scheduling.BusinessHours{
			OpenMinute:  9 * 60,
			CloseMinute: 17 * 60,
			StepMinutes: 30,
			SlotMinutes: 30,
		},
		Now: func() time.Time {
			return time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
		},
	}
}

func TestBook_CreatesPendingAppointment(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())

	appt, err := m.Book(context.Background(), "cust-1", "2026-09-02", "14:00", 30, "first visit")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, "2026-09-02", appt.Date)
	assert.Equal(t, "14:00", appt.Time)
	assert.NotEmpty(t, appt.ID)
}

func TestBook_ConcurrentSameSlot_OneWinner(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := m.Book(context.Background(), "cust", "2026-09-02", "10:00", 30, "")
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestBook_ThenAvailabilityMarksSlotTaken(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())

	_, err := m.Book(context.Background(), "cust-1", "2026-09-02", "10:00", 30, "")
	require.NoError(t, err)

	slots, err := m.AvailableSlots(context.Background(), "2026-09-02", 30)
	require.NoError(t, err)
	for _, s := range slots {
		if s.Time == "10:00" {
			assert.False(t, s.Available, "booked slot must read unavailable")
			return
		}
	}
	t.Fatal("10:00 candidate missing from grid")
}

func TestBook_ValidationFailures(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())
	ctx := context.Background()

	cases := []struct {
		name  string
		date  string
		time  string
		field string
	}{
		{"bad date", "next tuesday", "10:00", "date"},
		{"bad time", "2026-09-02", "2pm", "time"},
		{"in the past", "2026-08-01", "10:00", "time"},
		{"before opening", "2026-09-02", "08:00", "time"},
		{"after closing", "2026-09-02", "16:45", "time"},
		{"off the grid", "2026-09-02", "10:10", "time"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Book(ctx, "cust", tc.date, tc.time, 30, "")
			ve, ok := AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestCancel_Idempotent(t *testing.T) {
	repo := newMemAppointmentRepo()
	m := newTestManager(repo)
	ctx := context.Background()

	appt, err := m.Book(ctx, "cust-1", "2026-09-02", "11:00", 30, "")
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, "cust-1", appt.ID))
	// Duplicate delivery of the same cancel request is a no-op success.
	require.NoError(t, m.Cancel(ctx, "cust-1", appt.ID))

	stored, err := repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, stored.Status)
}

func TestCancel_WrongCustomerIsNotFound(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())
	ctx := context.Background()

	appt, err := m.Book(ctx, "cust-1", "2026-09-02", "11:00", 30, "")
	require.NoError(t, err)

	err = m.Cancel(ctx, "cust-2", appt.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_FreesSlot(t *testing.T) {
	m := newTestManager(newMemAppointmentRepo())
	ctx := context.Background()

	appt, err := m.Book(ctx, "cust-1", "2026-09-02", "11:00", 30, "")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(ctx, "cust-1", appt.ID))

	_, err = m.Book(ctx, "cust-2", "2026-09-02", "11:00", 30, "")
	assert.NoError(t, err, "cancelled slot must be bookable again")
}

func TestReschedule_SupersedesOriginal(t *testing.T) {
	repo := newMemAppointmentRepo()
	m := newTestManager(repo)
	ctx := context.Background()

	orig, err := m.Book(ctx, "cust-1", "2026-09-02", "11:00", 30, "checkup")
	require.NoError(t, err)

	repl, err := m.Reschedule(ctx, "cust-1", orig.ID, "2026-09-03", "09:30")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, repl.Status)
	assert.Equal(t, orig.ID, repl.RescheduledFrom)
	assert.Equal(t, "checkup", repl.Notes)

	stored, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRescheduled, stored.Status)
	assert.Equal(t, repl.ID, stored.RescheduledTo)

	// The old slot is free again.
	_, err = m.Book(ctx, "cust-2", "2026-09-02", "11:00", 30, "")
	assert.NoError(t, err)
}

func TestReschedule_ConflictLeavesOriginalActive(t *testing.T) {
	repo := newMemAppointmentRepo()
	m := newTestManager(repo)
	ctx := context.Background()

	_, err := m.Book(ctx, "cust-2", "2026-09-03", "09:30", 30, "")
	require.NoError(t, err)
	orig, err := m.Book(ctx, "cust-1", "2026-09-02", "11:00", 30, "")
	require.NoError(t, err)

	_, err = m.Reschedule(ctx, "cust-1", orig.ID, "2026-09-03", "09:30")
	assert.ErrorIs(t, err, ErrSlotConflict)

	stored, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.IsActive(), "failed reschedule must not touch the original")
}

func newReminderTestManager() (*DefaultTransactionManager, *recordingScheduler) {
	m := newTestManager(newMemAppointmentRepo())
	m.Customers = &stubCustomerRepo{byID: map[string]*models.Customer{
		"cust-1": {ID: "cust-1", TelegramID: "1001"},
	}}
	scheduler := newRecordingScheduler()
	m.Reminders = scheduler
	return m, scheduler
}

func TestBook_SchedulesReminderForCustomerChat(t *testing.T) {
	m, scheduler := newReminderTestManager()

	appt, err := m.Book(context.Background(), "cust-1", "2026-09-02", "14:00", 30, "")
	require.NoError(t, err)
	assert.Equal(t, "1001", scheduler.scheduled[appt.ID])
}

func TestBook_UnknownCustomerGetsNoReminder(t *testing.T) {
	m, scheduler := newReminderTestManager()

	appt, err := m.Book(context.Background(), "cust-ghost", "2026-09-02", "14:00", 30, "")
	require.NoError(t, err, "a missing customer record must not fail the booking")
	assert.NotContains(t, scheduler.scheduled, appt.ID)
}

func TestBook_ReminderFailureDoesNotFailBooking(t *testing.T) {
	m, scheduler := newReminderTestManager()
	scheduler.fail = true

	appt, err := m.Book(context.Background(), "cust-1", "2026-09-02", "14:00", 30, "")
	require.NoError(t, err)
	assert.NotNil(t, appt)
}

func TestCancel_WithdrawsReminderOnce(t *testing.T) {
	m, scheduler := newReminderTestManager()
	ctx := context.Background()

	appt, err := m.Book(ctx, "cust-1", "2026-09-02", "14:00", 30, "")
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, "cust-1", appt.ID))
	require.NoError(t, m.Cancel(ctx, "cust-1", appt.ID))
	assert.Equal(t, []string{appt.ID}, scheduler.cancelled,
		"a duplicate cancel must not withdraw the reminder again")
}

func TestReschedule_MovesReminderToReplacement(t *testing.T) {
	m, scheduler := newReminderTestManager()
	ctx := context.Background()

	orig, err := m.Book(ctx, "cust-1", "2026-09-02", "14:00", 30, "")
	require.NoError(t, err)

	repl, err := m.Reschedule(ctx, "cust-1", orig.ID, "2026-09-03", "09:30")
	require.NoError(t, err)
	assert.Equal(t, []string{orig.ID}, scheduler.cancelled)
	assert.Equal(t, "1001", scheduler.scheduled[repl.ID])
}

func TestFindByDateTime_MostRecentActiveWins(t *testing.T) {
	repo := newMemAppointmentRepo()
	m := newTestManager(repo)
	ctx := context.Background()

	first, err := m.Book(ctx, "cust-1", "2026-09-02", "10:00", 30, "")
	require.NoError(t, err)
	second, err := m.Book(ctx, "cust-1", "2026-09-02", "15:00", 30, "")
	require.NoError(t, err)

	// Force distinct creation instants.
	repo.mu.Lock()
	repo.byID[first.ID].CreatedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo.byID[second.ID].CreatedAt = time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	repo.mu.Unlock()

	found, err := m.FindByDateTime(ctx, "cust-1", "2026-09-02", "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, found.ID)

	found, err = m.FindByDateTime(ctx, "cust-1", "2026-09-02", "10:00")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = m.FindByDateTime(ctx, "cust-1", "2026-09-04", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
