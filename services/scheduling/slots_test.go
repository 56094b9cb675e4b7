package scheduling

import (
	"testing"

	"salona/models"
)

func testHours() BusinessHours {
	return BusinessHours{
		OpenMinute:  9 * 60,
		CloseMinute: 17 * 60,
		StepMinutes: 30,
		SlotMinutes: 30,
	}
}

func TestAvailableSlots_FullGrid(t *testing.T) {
	slots, err := AvailableSlots("2026-09-01", 30, nil, testHours())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00 through 16:30 inclusive, 30-minute steps.
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0].Time != "09:00" {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].Time)
	}
	if slots[len(slots)-1].Time != "16:30" {
		t.Fatalf("expected last slot 16:30, got %s", slots[len(slots)-1].Time)
	}
	for _, s := range slots {
		if !s.Available {
			t.Fatalf("slot %s should be available on an empty day", s.Time)
		}
	}
}

func TestAvailableSlots_MarksBookedUnavailable(t *testing.T) {
	booked := []models.Appointment{
		{Date: "2026-09-01", Time: "10:00", DurationMinutes: 30, Status: models.StatusConfirmed},
		{Date: "2026-09-01", Time: "14:00", DurationMinutes: 30, Status: models.StatusPending},
		// Cancelled appointments do not occupy slots.
		{Date: "2026-09-01", Time: "11:00", DurationMinutes: 30, Status: models.StatusCancelled},
	}

	slots, err := AvailableSlots("2026-09-01", 30, booked, testHours())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Time] = s.Available
	}
	if byTime["10:00"] {
		t.Fatal("10:00 should be unavailable")
	}
	if byTime["14:00"] {
		t.Fatal("14:00 should be unavailable")
	}
	if !byTime["11:00"] {
		t.Fatal("11:00 should be free, booking there is cancelled")
	}
}

func TestAvailableSlots_DurationOverlap(t *testing.T) {
	// A 60-minute appointment at 10:00 must also block the 10:30 candidate.
	booked := []models.Appointment{
		{Date: "2026-09-01", Time: "10:00", DurationMinutes: 60, Status: models.StatusConfirmed},
	}

	slots, err := AvailableSlots("2026-09-01", 30, booked, testHours())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		switch s.Time {
		case "10:00", "10:30":
			if s.Available {
				t.Fatalf("slot %s should be blocked by the 60-minute booking", s.Time)
			}
		case "09:30", "11:00":
			if !s.Available {
				t.Fatalf("slot %s should not be blocked", s.Time)
			}
		}
	}
}

func TestAvailableSlots_RequestedDurationOverlap(t *testing.T) {
	// Requesting 60-minute slots: the 09:30 candidate would run into the
	// 10:00 booking and must be marked unavailable.
	booked := []models.Appointment{
		{Date: "2026-09-01", Time: "10:00", DurationMinutes: 30, Status: models.StatusConfirmed},
	}

	slots, err := AvailableSlots("2026-09-01", 60, booked, testHours())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range slots {
		switch s.Time {
		case "09:30", "10:00":
			if s.Available {
				t.Fatalf("slot %s should be unavailable for a 60-minute request", s.Time)
			}
		case "09:00":
			if !s.Available {
				t.Fatal("09:00 should fit a 60-minute request")
			}
		}
	}
	// The last 60-minute candidate must end by close: 16:00, not 16:30.
	if last := slots[len(slots)-1].Time; last != "16:00" {
		t.Fatalf("expected last 60-minute candidate 16:00, got %s", last)
	}
}

func TestAvailableSlots_RejectsBadInput(t *testing.T) {
	if _, err := AvailableSlots("not-a-date", 30, nil, testHours()); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := AvailableSlots("2026-09-01", 30, nil, BusinessHours{}); err == nil {
		t.Fatal("expected error for zero business hours")
	}
}

func TestFreeSlots_CapsResults(t *testing.T) {
	slots, err := AvailableSlots("2026-09-01", 30, nil, testHours())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	free := FreeSlots(slots, 5)
	if len(free) != 5 {
		t.Fatalf("expected 5 free slots, got %d", len(free))
	}
	if free[0].Time != "09:00" {
		t.Fatalf("expected alternatives ordered from opening, got %s", free[0].Time)
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("14:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != 14*60+30 {
		t.Fatalf("expected 870, got %d", m)
	}
	if _, err := ParseClock("2pm"); err == nil {
		t.Fatal("expected error for non-HH:MM input")
	}
	if FormatClock(m) != "14:30" {
		t.Fatalf("round trip failed: %s", FormatClock(m))
	}
}
