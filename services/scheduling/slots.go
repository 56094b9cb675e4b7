package scheduling

import (
	"fmt"
	"time"

	"salona/models"
)

// BusinessHours defines the bookable window of a day and the slot step.
// All values are minutes from midnight except StepMinutes.
type BusinessHours struct {
	OpenMinute   int
	CloseMinute  int
	StepMinutes  int
	SlotMinutes  int // default appointment duration
	WeekdaysOnly bool
}

// Slot is one candidate interval on a date. Start and End are minutes from
// midnight; Time is the "15:04" rendering of Start.
type Slot struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Start     int    `json:"-"`
	End       int    `json:"-"`
	Available bool   `json:"available"`
}

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

// ParseClock converts an "HH:MM" string to minutes from midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes from midnight as "HH:MM".
func FormatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// ParseDate validates a "YYYY-MM-DD" string and returns its midnight instant.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// AvailableSlots computes the full candidate grid for a date, ascending by
// start time, marking each candidate unavailable when its interval intersects
// any active appointment on that date. Overlap is checked over the whole
// requested duration, not just point-equality, so abutting bookings of
// differing durations cannot double-book.
//
// The function is pure with respect to the supplied booking snapshot; it is
// the transaction manager, not this grid, that guarantees consistency under
// concurrent writes.
func AvailableSlots(date string, durationMinutes int, booked []models.Appointment, hours BusinessHours) ([]Slot, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	if durationMinutes <= 0 {
		durationMinutes = hours.SlotMinutes
	}
	if hours.StepMinutes <= 0 || hours.CloseMinute <= hours.OpenMinute {
		return nil, fmt.Errorf("invalid business hours: open=%d close=%d step=%d",
			hours.OpenMinute, hours.CloseMinute, hours.StepMinutes)
	}

	busy := busyIntervals(date, booked, hours.SlotMinutes)

	var slots []Slot
	for start := hours.OpenMinute; start+durationMinutes <= hours.CloseMinute; start += hours.StepMinutes {
		end := start + durationMinutes
		slots = append(slots, Slot{
			Date:      date,
			Time:      FormatClock(start),
			Start:     start,
			End:       end,
			Available: !overlapsAny(start, end, busy),
		})
	}
	return slots, nil
}

// FreeSlots filters slots down to the available ones, capped at limit
// (no cap when limit <= 0).
func FreeSlots(slots []Slot, limit int) []Slot {
	var free []Slot
	for _, s := range slots {
		if !s.Available {
			continue
		}
		free = append(free, s)
		if limit > 0 && len(free) >= limit {
			break
		}
	}
	return free
}

type interval struct {
	start, end int
}

// busyIntervals extracts the occupied intervals for date from the booking
// snapshot. Cancelled and rescheduled appointments do not occupy slots, and
// unparseable rows are skipped rather than blocking the whole day.
func busyIntervals(date string, booked []models.Appointment, defaultDuration int) []interval {
	var busy []interval
	for _, a := range booked {
		if a.Date != date || !a.Status.IsActive() {
			continue
		}
		start, err := ParseClock(a.Time)
		if err != nil {
			continue
		}
		dur := a.DurationMinutes
		if dur <= 0 {
			dur = defaultDuration
		}
		busy = append(busy, interval{start: start, end: start + dur})
	}
	return busy
}

func overlapsAny(start, end int, busy []interval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) intersects [b.start,b.end).
		if start < b.end && b.start < end {
			return true
		}
	}
	return false
}
