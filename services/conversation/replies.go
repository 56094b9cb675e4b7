package conversation

import (
	"fmt"
	"strings"

	"salona/models"
	"salona/services/booking"
	"salona/services/scheduling"
)

const (
	replyStorageTrouble = "Sorry, something went wrong on our side. Please try again in a moment."
	replyClarifyGiveUp  = "Sorry, I seem to be having trouble following. Let's start over. What would you like to do?"
	replyNotFound       = "I couldn't find that appointment. It may have been cancelled or rescheduled already."
	replyWhichDate      = "Sure! Which date would you like to check? (for example 2026-09-03)"
	replyBadDate        = "I didn't quite catch that date. Could you give it as YYYY-MM-DD, e.g. 2026-09-03?"
	replyBadTime        = "I didn't quite catch that time. Could you give it like 14:30?"

	replyConfirmationDiscarded = "No problem, I've discarded that booking. Anything else I can help with?"
)

var affirmativeWords = map[string]bool{
	"yes": true, "yep": true, "yeah": true, "yup": true, "sure": true,
	"ok": true, "okay": true, "confirm": true, "confirmed": true,
	"correct": true, "right": true, "please": true, "y": true, "👍": true,
}

var negativeWords = map[string]bool{
	"no": true, "nope": true, "nah": true, "cancel": true, "stop": true,
	"wrong": true, "don't": true, "dont": true, "n": true,
}

func isAffirmative(text string) bool {
	return matchesAny(text, affirmativeWords)
}

func isNegative(text string) bool {
	return matchesAny(text, negativeWords)
}

func matchesAny(text string, words map[string]bool) bool {
	for _, w := range strings.Fields(strings.ToLower(strings.TrimSpace(text))) {
		w = strings.Trim(w, ".,!?")
		if words[w] {
			return true
		}
	}
	return false
}

func smalltalkReply(customer *models.Customer, intent *models.ResolvedIntent) string {
	if intent.UserMessage != "" {
		return intent.UserMessage
	}
	name := customer.FirstName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I can book, reschedule or cancel appointments, and check availability. How can I help?", name)
}

func askForMissing(missing []string) string {
	switch len(missing) {
	case 0:
		return "Could you tell me a bit more about the appointment you'd like?"
	case 1:
		return fmt.Sprintf("Got it! What %s would you like?", missing[0])
	default:
		return fmt.Sprintf("Happy to book that. What %s would you like?", strings.Join(missing, " and "))
	}
}

func confirmPrompt(e models.IntentEntities) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Just to confirm: %s at %s", e.Date, e.Time))
	if e.ServiceType != "" {
		b.WriteString(" for " + e.ServiceType)
	}
	b.WriteString(". Shall I book it?")
	return b.String()
}

func bookedReply(appt *models.Appointment) string {
	return fmt.Sprintf("You're booked! %s at %s (ref #%s). See you then!",
		appt.Date, appt.Time, shortID(appt.ID))
}

func cancelledReply(appt *models.Appointment) string {
	return fmt.Sprintf("Done, your appointment on %s at %s is cancelled.", appt.Date, appt.Time)
}

func alreadyCancelledReply(appt *models.Appointment) string {
	return fmt.Sprintf("Your appointment on %s at %s is already cancelled, so you're all set.", appt.Date, appt.Time)
}

func rescheduledReply(orig, repl *models.Appointment) string {
	return fmt.Sprintf("All set! Your appointment moved from %s %s to %s at %s (ref #%s).",
		orig.Date, orig.Time, repl.Date, repl.Time, shortID(repl.ID))
}

func rescheduleNeedsSlotReply(target *models.Appointment) string {
	return fmt.Sprintf("Sure, let's move your appointment on %s at %s. What new date and time would you like?",
		target.Date, target.Time)
}

func validationReply(ve *booking.ValidationError) string {
	return fmt.Sprintf("Hmm, that %s doesn't work: %s. Could you pick another?", ve.Field, ve.Message)
}

func slotTakenReply(date, timeOfDay string, alternatives []scheduling.Slot) string {
	if len(alternatives) == 0 {
		return fmt.Sprintf("Sorry, %s at %s is already taken and %s is fully booked. Would another day work?",
			date, timeOfDay, date)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Sorry, %s at %s is already taken. Nearby openings:\n", date, timeOfDay))
	b.WriteString(formatSlotGroups(alternatives))
	b.WriteString("\nWould any of these work?")
	return b.String()
}

func availabilityReply(date string, free []scheduling.Slot) string {
	if len(free) == 0 {
		return fmt.Sprintf("%s is fully booked, sorry! Want me to check another day?", date)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Here's what's open on %s:\n", date))
	b.WriteString(formatSlotGroups(free))
	return b.String()
}

func whichAppointmentReply(active []models.Appointment) string {
	if len(active) == 0 {
		return "You don't have any upcoming appointments. Would you like to book one?"
	}
	var b strings.Builder
	b.WriteString("Which appointment do you mean? You have:\n")
	for _, a := range active {
		b.WriteString(fmt.Sprintf("  #%s on %s at %s\n", shortID(a.ID), a.Date, a.Time))
	}
	b.WriteString("Reply with the date or the reference number.")
	return b.String()
}

// formatSlotGroups renders free slots bucketed into morning, afternoon and
// late afternoon stretches.
func formatSlotGroups(slots []scheduling.Slot) string {
	const (
		noon = 12 * 60
		late = 15 * 60
	)
	var morning, afternoon, lateAfternoon []string
	for _, s := range slots {
		switch {
		case s.Start < noon:
			morning = append(morning, s.Time)
		case s.Start < late:
			afternoon = append(afternoon, s.Time)
		default:
			lateAfternoon = append(lateAfternoon, s.Time)
		}
	}
	var lines []string
	if len(morning) > 0 {
		lines = append(lines, "  Morning: "+strings.Join(morning, ", "))
	}
	if len(afternoon) > 0 {
		lines = append(lines, "  Afternoon: "+strings.Join(afternoon, ", "))
	}
	if len(lateAfternoon) > 0 {
		lines = append(lines, "  Late afternoon: "+strings.Join(lateAfternoon, ", "))
	}
	return strings.Join(lines, "\n")
}

// shortID is the customer-facing reference: the first segment of the UUID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
