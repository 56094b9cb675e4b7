package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"salona/models"
	"salona/services/scheduling"
	"salona/utils"

	"go.uber.org/zap"
)

// Resolver turns a conversation window plus a new message into a validated
// ResolvedIntent. Malformed model output gets one repair retry; after that
// the resolver degrades to a synthetic unknown intent instead of failing the
// turn, so a flaky model can never crash a conversation.
type Resolver struct {
	Client  ModelClient
	Hours   scheduling.BusinessHours
	Window  int           // max turns of context sent to the model
	Timeout time.Duration // per model call

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// rawIntent mirrors the wire shape loosely; every field is re-validated
// before anything crosses into models.ResolvedIntent.
type rawIntent struct {
	Intent      string                 `json:"intent"`
	Confidence  *float64               `json:"confidence"`
	Entities    map[string]interface{} `json:"entities"`
	MissingInfo []string               `json:"missing_info"`
	UserMessage string                 `json:"user_message"`
	Action      string                 `json:"action"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve never returns nil: any model failure, timeout or unparseable
// output collapses into the clarification fallback.
func (r *Resolver) Resolve(ctx context.Context, turns []models.ConversationTurn, message string) *models.ResolvedIntent {
	logger := utils.GetLogger()

	window := turns
	if r.Window > 0 && len(window) > r.Window {
		window = window[len(window)-r.Window:]
	}
	prompt := BuildPrompt(window, message, r.now(), r.Hours)

	intent, err := r.resolveOnce(ctx, prompt)
	if err == nil {
		return intent
	}
	logger.Warn("intent resolution failed, retrying with repair instruction", zap.Error(err))

	intent, err = r.resolveOnce(ctx, prompt+"\n\n"+repairInstruction)
	if err == nil {
		return intent
	}
	logger.Warn("intent resolution repair retry failed, degrading to unknown", zap.Error(err))

	return fallbackIntent()
}

func (r *Resolver) resolveOnce(ctx context.Context, prompt string) (*models.ResolvedIntent, error) {
	callCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	text, err := r.Client.GenerateContent(callCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	return parseIntent(text)
}

// parseIntent is the strict parse-then-validate boundary for model output.
func parseIntent(text string) (*models.ResolvedIntent, error) {
	payload, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("model output is not valid JSON: %w", err)
	}
	if raw.Intent == "" {
		return nil, fmt.Errorf("model output missing intent")
	}

	resolved := &models.ResolvedIntent{
		Intent:      models.IntentUnknown,
		UserMessage: raw.UserMessage,
		MissingInfo: raw.MissingInfo,
		Action:      models.ActionAskClarification,
		Entities:    whitelistEntities(raw.Entities),
		Metadata:    stringifyMetadata(raw.Metadata),
	}

	if models.ValidIntent(raw.Intent) {
		resolved.Intent = models.Intent(raw.Intent)
	}

	if raw.Confidence != nil {
		c := *raw.Confidence
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		resolved.Confidence = c
	}

	switch models.NextAction(raw.Action) {
	case models.ActionProceed, models.ActionAskClarification, models.ActionProvideInfo:
		resolved.Action = models.NextAction(raw.Action)
	}

	if resolved.Intent == models.IntentBookAppointment && len(resolved.MissingInfo) == 0 {
		resolved.MissingInfo = missingBookingFields(resolved.Entities)
	}
	return resolved, nil
}

// whitelistEntities keeps only the recognized entity names; unknown keys from
// the model are dropped silently.
func whitelistEntities(raw map[string]interface{}) models.IntentEntities {
	var e models.IntentEntities
	e.Date = entityString(raw["date"])
	e.Time = entityString(raw["time"])
	e.ServiceType = entityString(raw["service_type"])
	e.AppointmentID = entityString(raw["appointment_id"])
	return e
}

// entityString coerces the loosely typed wire value to a string. The model
// sometimes emits appointment ids as numbers.
func entityString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}

func stringifyMetadata(raw map[string]interface{}) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

// missingBookingFields computes the required-field gaps locally when the
// model omits missing_info for a booking.
func missingBookingFields(e models.IntentEntities) []string {
	var missing []string
	if e.Date == "" {
		missing = append(missing, "date")
	}
	if e.Time == "" {
		missing = append(missing, "time")
	}
	return missing
}

// extractJSON pulls the JSON object out of the model text, tolerating
// markdown fences and prose around it.
func extractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return s[start : end+1], nil
}

func fallbackIntent() *models.ResolvedIntent {
	return &models.ResolvedIntent{
		Intent:      models.IntentUnknown,
		Confidence:  0,
		Action:      models.ActionAskClarification,
		UserMessage: "I'm sorry, I didn't quite understand that. Could you rephrase?",
	}
}
