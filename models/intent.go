package models

// Intent is the closed set of intents the engine acts on. Anything the model
// produces outside this set is coerced to IntentUnknown at the parse boundary.
type Intent string

const (
	IntentBookAppointment       Intent = "book_appointment"
	IntentCheckAvailability     Intent = "check_availability"
	IntentRescheduleAppointment Intent = "reschedule_appointment"
	IntentCancelAppointment     Intent = "cancel_appointment"
	IntentSmalltalk             Intent = "smalltalk"
	IntentUnknown               Intent = "unknown"
)

// ValidIntent reports whether s is one of the recognized intent tags.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentBookAppointment, IntentCheckAvailability,
		IntentRescheduleAppointment, IntentCancelAppointment,
		IntentSmalltalk, IntentUnknown:
		return true
	}
	return false
}

// NextAction is the model's suggested next step for the conversation.
type NextAction string

const (
	ActionProceed          NextAction = "proceed"
	ActionAskClarification NextAction = "ask_clarification"
	ActionProvideInfo      NextAction = "provide_info"
)

// IntentEntities is the whitelisted entity set extracted from a message.
// Empty string means the entity was not supplied.
type IntentEntities struct {
	Date          string `json:"date,omitempty"`
	Time          string `json:"time,omitempty"`
	ServiceType   string `json:"service_type,omitempty"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

// Merge overlays the non-empty fields of other onto a copy of e. Used by the
// entity accumulator while a multi-turn task collects missing fields.
func (e IntentEntities) Merge(other IntentEntities) IntentEntities {
	if other.Date != "" {
		e.Date = other.Date
	}
	if other.Time != "" {
		e.Time = other.Time
	}
	if other.ServiceType != "" {
		e.ServiceType = other.ServiceType
	}
	if other.AppointmentID != "" {
		e.AppointmentID = other.AppointmentID
	}
	return e
}

// ResolvedIntent is the strict, validated form of the model's structured
// output. Nothing outside this struct crosses the parse boundary.
type ResolvedIntent struct {
	Intent      Intent            `json:"intent"`
	Confidence  float64           `json:"confidence"` // clamped to [0,1]
	Entities    IntentEntities    `json:"entities"`
	MissingInfo []string          `json:"missing_info,omitempty"`
	UserMessage string            `json:"user_message,omitempty"`
	Action      NextAction        `json:"action"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}
