package intelligence

import (
	"fmt"
	"strings"
	"time"

	"salona/models"
	"salona/services/scheduling"
)

const systemPrompt = `You are an appointment booking assistant. Extract the user's intent and appointment details from the conversation and reply with a single JSON object only, no markdown and no text outside the JSON.

Supported intents: book_appointment, check_availability, reschedule_appointment, cancel_appointment, smalltalk.

Rules:
- Convert relative dates ("tomorrow", "next Monday") to absolute YYYY-MM-DD using the current date below.
- Times are 24-hour HH:MM.
- If the date or time for a booking is missing, list it in missing_info and set action to "ask_clarification".
- For cancel or reschedule, identify the appointment by appointment_id, or by date and time if no id was given.
- Never invent details the user did not provide.

Respond with exactly this structure:
{
  "intent": "book_appointment|check_availability|reschedule_appointment|cancel_appointment|smalltalk",
  "confidence": 0.0,
  "entities": {"date": null, "time": null, "service_type": null, "appointment_id": null},
  "missing_info": [],
  "user_message": "natural language reply to the user",
  "action": "proceed|ask_clarification|provide_info",
  "metadata": {}
}`

const repairInstruction = `Your previous reply was not a valid JSON object. Reply again with ONLY the JSON object described above. No markdown fences, no commentary.`

// BuildPrompt assembles the model prompt: system contract, current
// date/time, business hours, the bounded conversation window and the new
// message.
func BuildPrompt(turns []models.ConversationTurn, message string, now time.Time, hours scheduling.BusinessHours) string {
	var sb strings.Builder
	sb.WriteString(systemPrompt)

	fmt.Fprintf(&sb, "\n\nCurrent date: %s\nCurrent time: %s\nBusiness hours: %s-%s, slots every %d minutes\n",
		now.Format("2006-01-02"), now.Format("15:04"),
		scheduling.FormatClock(hours.OpenMinute), scheduling.FormatClock(hours.CloseMinute), hours.StepMinutes)

	if len(turns) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, t := range turns {
			fmt.Fprintf(&sb, "%s: %s\n", t.Direction, t.Text)
		}
	}

	fmt.Fprintf(&sb, "\nUser message: %s\n\nJSON response:", message)
	return sb.String()
}
