package intelligence

import (
	"context"
	"errors"
	"testing"
	"time"

	"salona/models"
	"salona/services/scheduling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient replays canned model replies in order.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (c *scriptedClient) GenerateContent(_ context.Context, prompt string) (string, error) {
	i := c.calls
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func newTestResolver(client ModelClient) *Resolver {
	return &Resolver{
		Client: client,
		Hours: scheduling.BusinessHours{
			OpenMinute:  9 * 60,
			CloseMinute: 17 * 60,
			StepMinutes: 30,
			SlotMinutes: 30,
		},
		Window:  10,
		Timeout: time.Second,
		Now: func() time.Time {
			return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		},
	}
}

func TestResolve_ValidBookingIntent(t *testing.T) {
	client := &scriptedClient{replies: []string{`{
		"intent": "book_appointment",
		"confidence": 0.92,
		"entities": {"date": "2026-09-02", "time": "14:00", "service_type": null, "appointment_id": null},
		"missing_info": [],
		"user_message": "Booking for tomorrow at 2pm.",
		"action": "proceed",
		"metadata": {"date_original": "tomorrow"}
	}`}}

	got := newTestResolver(client).Resolve(context.Background(), nil, "book tomorrow at 2pm")
	require.NotNil(t, got)
	assert.Equal(t, models.IntentBookAppointment, got.Intent)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, "2026-09-02", got.Entities.Date)
	assert.Equal(t, "14:00", got.Entities.Time)
	assert.Equal(t, models.ActionProceed, got.Action)
	assert.Empty(t, got.MissingInfo)
	assert.Equal(t, "tomorrow", got.Metadata["date_original"])
}

func TestResolve_MarkdownFencedJSON(t *testing.T) {
	client := &scriptedClient{replies: []string{"```json\n{\"intent\": \"check_availability\", \"confidence\": 0.8, \"entities\": {\"date\": \"2026-09-02\"}, \"action\": \"provide_info\"}\n```"}}

	got := newTestResolver(client).Resolve(context.Background(), nil, "anything free tomorrow?")
	assert.Equal(t, models.IntentCheckAvailability, got.Intent)
	assert.Equal(t, "2026-09-02", got.Entities.Date)
	assert.Equal(t, 1, client.calls, "fenced JSON should not need a repair retry")
}

func TestResolve_RepairRetryRecovers(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"Sure! I'd be happy to help you book an appointment.",
		`{"intent": "book_appointment", "confidence": 0.7, "entities": {"date": "2026-09-02"}, "action": "ask_clarification"}`,
	}}

	got := newTestResolver(client).Resolve(context.Background(), nil, "book tomorrow")
	assert.Equal(t, models.IntentBookAppointment, got.Intent)
	assert.Equal(t, 2, client.calls)
	assert.Contains(t, client.prompts[1], "not a valid JSON object")
	// date present, time absent: the resolver fills the gap locally.
	assert.Equal(t, []string{"time"}, got.MissingInfo)
}

func TestResolve_PersistentGarbageDegradesToUnknown(t *testing.T) {
	client := &scriptedClient{replies: []string{"not json", "still not json"}}

	got := newTestResolver(client).Resolve(context.Background(), nil, "hello")
	require.NotNil(t, got)
	assert.Equal(t, models.IntentUnknown, got.Intent)
	assert.Equal(t, models.ActionAskClarification, got.Action)
	assert.Zero(t, got.Confidence)
	assert.NotEmpty(t, got.UserMessage)
}

func TestResolve_ModelErrorDegradesToUnknown(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("timeout"), errors.New("timeout")}}

	got := newTestResolver(client).Resolve(context.Background(), nil, "hello")
	assert.Equal(t, models.IntentUnknown, got.Intent)
	assert.Equal(t, 2, client.calls, "exactly one retry, never unbounded")
}

func TestParseIntent_Validation(t *testing.T) {
	t.Run("unknown intent tag coerced", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "order_pizza", "confidence": 0.9}`)
		require.NoError(t, err)
		assert.Equal(t, models.IntentUnknown, got.Intent)
	})

	t.Run("confidence clamped", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "smalltalk", "confidence": 3.5}`)
		require.NoError(t, err)
		assert.Equal(t, 1.0, got.Confidence)

		got, err = parseIntent(`{"intent": "smalltalk", "confidence": -2}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Confidence)
	})

	t.Run("missing confidence defaults to zero", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "smalltalk"}`)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got.Confidence)
	})

	t.Run("unrecognized entity keys dropped", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "book_appointment", "entities": {"date": "2026-09-02", "time": "10:00", "credit_card": "4111", "ignore_previous": "yes"}}`)
		require.NoError(t, err)
		assert.Equal(t, "2026-09-02", got.Entities.Date)
		assert.Equal(t, "10:00", got.Entities.Time)
		assert.Empty(t, got.Entities.ServiceType)
	})

	t.Run("numeric appointment id coerced to string", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "cancel_appointment", "entities": {"appointment_id": 123}}`)
		require.NoError(t, err)
		assert.Equal(t, "123", got.Entities.AppointmentID)
	})

	t.Run("invalid action defaults to clarification", func(t *testing.T) {
		got, err := parseIntent(`{"intent": "smalltalk", "action": "launch_rockets"}`)
		require.NoError(t, err)
		assert.Equal(t, models.ActionAskClarification, got.Action)
	})

	t.Run("missing intent is a parse failure", func(t *testing.T) {
		_, err := parseIntent(`{"confidence": 0.9}`)
		assert.Error(t, err)
	})
}

func TestResolve_WindowBoundsContext(t *testing.T) {
	turns := make([]models.ConversationTurn, 25)
	for i := range turns {
		turns[i] = models.ConversationTurn{Direction: models.DirectionUser, Text: "filler"}
	}
	turns[24].Text = "the last turn"
	turns[0].Text = "the first turn"

	client := &scriptedClient{replies: []string{`{"intent": "smalltalk", "confidence": 0.5}`}}
	newTestResolver(client).Resolve(context.Background(), turns, "hi")

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "the last turn")
	assert.NotContains(t, client.prompts[0], "the first turn")
}
