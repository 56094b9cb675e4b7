package conversation

import (
	"context"
	"errors"
	"fmt"

	conversationRepo "salona/database/repository/conversation"
	customerRepo "salona/database/repository/customer"
	"salona/models"
	"salona/services/booking"
	"salona/services/scheduling"
	"salona/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IntentResolver resolves a conversation window plus a new message into a
// validated intent. It never fails hard; degraded output is an unknown
// intent asking for clarification.
type IntentResolver interface {
	Resolve(ctx context.Context, turns []models.ConversationTurn, message string) *models.ResolvedIntent
}

// Options tunes engine behavior. Zero values fall back to defaults.
type Options struct {
	ClarifyTurnCap   int     // max clarification turns before apologetic reset (default 5)
	ContextWindow    int     // recent turns fetched for model context (default 10)
	ConfirmThreshold float64 // min confidence for intent-switch abandonment (default 0.6)
	AlternativeLimit int     // alternatives offered on conflict (default 5)
}

func (o Options) withDefaults() Options {
	if o.ClarifyTurnCap <= 0 {
		o.ClarifyTurnCap = 5
	}
	if o.ContextWindow <= 0 {
		o.ContextWindow = 10
	}
	if o.ConfirmThreshold <= 0 {
		o.ConfirmThreshold = 0.6
	}
	if o.AlternativeLimit <= 0 {
		o.AlternativeLimit = 5
	}
	return o
}

// Engine is the per-turn orchestrator: it consumes a resolved intent,
// consults the slot grid and the booking transaction manager, decides the
// outbound reply and the next conversation state, and persists the turn.
type Engine struct {
	Resolver  IntentResolver
	Booking   booking.Service
	Turns     conversationRepo.ConversationRepository
	Customers customerRepo.CustomerRepository
	States    StateStore
	Hours     scheduling.BusinessHours

	opts  Options
	locks *customerLocks
}

// NewEngine assembles a conversation engine.
func NewEngine(
	resolver IntentResolver,
	bookingSvc booking.Service,
	turns conversationRepo.ConversationRepository,
	customers customerRepo.CustomerRepository,
	states StateStore,
	hours scheduling.BusinessHours,
	opts Options,
) *Engine {
	return &Engine{
		Resolver:  resolver,
		Booking:   bookingSvc,
		Turns:     turns,
		Customers: customers,
		States:    states,
		Hours:     hours,
		opts:      opts.withDefaults(),
		locks:     newCustomerLocks(),
	}
}

// HandleMessage runs one conversation turn and returns the reply text.
// Turns for the same customer are serialized for the whole turn; turns for
// different customers run concurrently. On a storage failure the
// conversation state is left untouched so a retry resumes cleanly, and the
// returned reply is a generic try-again message alongside the error.
func (e *Engine) HandleMessage(ctx context.Context, sender models.SenderProfile, text string) (string, error) {
	unlock := e.locks.acquire(sender.TelegramID)
	defer unlock()

	logger := utils.GetLogger()

	customer, err := e.getOrCreateCustomer(ctx, sender)
	if err != nil {
		logger.Error("failed to resolve customer", zap.String("telegramID", sender.TelegramID), zap.Error(err))
		return replyStorageTrouble, err
	}

	turns, err := e.Turns.Recent(ctx, customer.ID, e.opts.ContextWindow)
	if err != nil {
		// Context is best effort; resolve from the bare message instead.
		logger.Warn("failed to load conversation window", zap.String("customerID", customer.ID), zap.Error(err))
		turns = nil
	}

	intent := e.Resolver.Resolve(ctx, turns, text)

	e.appendTurn(ctx, customer.ID, models.DirectionUser, text, intentContext(intent))

	state, err := e.States.Get(ctx, customer.ID)
	if err != nil {
		logger.Error("failed to load conversation state", zap.String("customerID", customer.ID), zap.Error(err))
		return replyStorageTrouble, err
	}

	reply, next, err := e.dispatch(ctx, customer, state, intent, text)
	if err != nil {
		// State is deliberately not advanced on a failed turn.
		logger.Error("turn failed", zap.String("customerID", customer.ID), zap.Error(err))
		e.appendTurn(ctx, customer.ID, models.DirectionBot, replyStorageTrouble, nil)
		return replyStorageTrouble, err
	}

	if err := e.States.Set(ctx, customer.ID, next); err != nil {
		logger.Error("failed to persist conversation state", zap.String("customerID", customer.ID), zap.Error(err))
		return replyStorageTrouble, err
	}
	e.appendTurn(ctx, customer.ID, models.DirectionBot, reply, nil)

	return reply, nil
}

// dispatch routes one resolved intent through the state machine. It returns
// the reply and the next state; a non-nil error means a storage failure and
// the caller must leave state untouched.
func (e *Engine) dispatch(ctx context.Context, customer *models.Customer, state *State, intent *models.ResolvedIntent, text string) (string, *State, error) {
	// Availability questions never mutate conversation state.
	if intent.Intent == models.IntentCheckAvailability {
		reply, err := e.answerAvailability(ctx, intent)
		return reply, state, err
	}

	switch state.Phase {
	case PhaseAwaitingClarification:
		return e.handleClarification(ctx, customer, state, intent)
	case PhaseConfirmingBooking:
		return e.handleConfirmation(ctx, customer, state, intent, text)
	default:
		return e.handleIdle(ctx, customer, intent)
	}
}

func (e *Engine) handleIdle(ctx context.Context, customer *models.Customer, intent *models.ResolvedIntent) (string, *State, error) {
	switch intent.Intent {
	case models.IntentBookAppointment:
		state := &State{
			Phase:         PhaseIdle,
			PendingIntent: models.IntentBookAppointment,
			Entities:      intent.Entities,
		}
		return e.continueBooking(ctx, state, intent.MissingInfo)

	case models.IntentRescheduleAppointment:
		reply, err := e.handleReschedule(ctx, customer, intent)
		return reply, newIdleState(), err

	case models.IntentCancelAppointment:
		reply, err := e.handleCancel(ctx, customer, intent)
		return reply, newIdleState(), err

	default:
		return smalltalkReply(customer, intent), newIdleState(), nil
	}
}

// continueBooking re-evaluates the booking task's entity accumulator:
// ask for what is missing, offer alternatives when the slot is taken, or
// move to explicit confirmation when the requested slot is free.
func (e *Engine) continueBooking(ctx context.Context, state *State, resolverMissing []string) (string, *State, error) {
	missing := missingBookingFields(state.Entities)
	if len(missing) > 0 {
		// Prefer the resolver's naming when it covers the same gap.
		if len(resolverMissing) > 0 {
			missing = resolverMissing
		}
		next := &State{
			Phase:         PhaseAwaitingClarification,
			PendingIntent: models.IntentBookAppointment,
			Entities:      state.Entities,
			ClarifyTurns:  state.ClarifyTurns,
		}
		return askForMissing(missing), next, nil
	}

	// Malformed entity values are surfaced as a clarification for the bad
	// field, not a system error.
	if _, err := scheduling.ParseDate(state.Entities.Date); err != nil {
		state.Entities.Date = ""
		next := &State{
			Phase:         PhaseAwaitingClarification,
			PendingIntent: models.IntentBookAppointment,
			Entities:      state.Entities,
			ClarifyTurns:  state.ClarifyTurns,
		}
		return replyBadDate, next, nil
	}
	if _, err := scheduling.ParseClock(state.Entities.Time); err != nil {
		state.Entities.Time = ""
		next := &State{
			Phase:         PhaseAwaitingClarification,
			PendingIntent: models.IntentBookAppointment,
			Entities:      state.Entities,
			ClarifyTurns:  state.ClarifyTurns,
		}
		return replyBadTime, next, nil
	}

	slots, err := e.Booking.AvailableSlots(ctx, state.Entities.Date, e.Hours.SlotMinutes)
	if err != nil {
		return "", nil, fmt.Errorf("availability check failed: %w", err)
	}

	if !slotFree(slots, state.Entities.Time) {
		reply := slotTakenReply(state.Entities.Date, state.Entities.Time,
			scheduling.FreeSlots(slots, e.opts.AlternativeLimit))
		return reply, newIdleState(), nil
	}

	next := &State{
		Phase:         PhaseConfirmingBooking,
		PendingIntent: models.IntentBookAppointment,
		Entities:      state.Entities,
	}
	return confirmPrompt(state.Entities), next, nil
}

func (e *Engine) handleClarification(ctx context.Context, customer *models.Customer, state *State, intent *models.ResolvedIntent) (string, *State, error) {
	// A confidently tagged unrelated intent abandons the pending task and
	// restarts from idle.
	if unrelatedIntent(intent.Intent) && intent.Confidence >= e.opts.ConfirmThreshold {
		return e.handleIdle(ctx, customer, intent)
	}

	// A clarification answer is treated as entity-only, whatever the tag.
	merged := state.Entities.Merge(intent.Entities)
	next := &State{
		Phase:         PhaseAwaitingClarification,
		PendingIntent: state.PendingIntent,
		Entities:      merged,
		ClarifyTurns:  state.ClarifyTurns + 1,
	}

	if next.ClarifyTurns >= e.opts.ClarifyTurnCap {
		return replyClarifyGiveUp, newIdleState(), nil
	}
	return e.continueBooking(ctx, next, intent.MissingInfo)
}

func (e *Engine) handleConfirmation(ctx context.Context, customer *models.Customer, state *State, intent *models.ResolvedIntent, text string) (string, *State, error) {
	switch {
	case isNegative(text) || intent.Intent == models.IntentCancelAppointment:
		return replyConfirmationDiscarded, newIdleState(), nil

	case isAffirmative(text) ||
		(intent.Intent == models.IntentBookAppointment && intent.Action == models.ActionProceed):
		return e.executeBooking(ctx, customer, state)

	case intent.Intent == models.IntentBookAppointment && hasNewEntities(intent.Entities):
		// The user adjusted details instead of confirming; re-verify.
		state.Entities = state.Entities.Merge(intent.Entities)
		return e.continueBooking(ctx, state, nil)

	default:
		next := &State{
			Phase:         PhaseConfirmingBooking,
			PendingIntent: state.PendingIntent,
			Entities:      state.Entities,
			ClarifyTurns:  state.ClarifyTurns + 1,
		}
		if next.ClarifyTurns >= e.opts.ClarifyTurnCap {
			return replyClarifyGiveUp, newIdleState(), nil
		}
		return confirmPrompt(state.Entities), next, nil
	}
}

// executeBooking runs the actual transaction once the user confirmed. A
// conflict means the advisory read went stale; recompute availability and
// offer alternatives instead of retrying blindly.
func (e *Engine) executeBooking(ctx context.Context, customer *models.Customer, state *State) (string, *State, error) {
	appt, err := e.Booking.Book(ctx, customer.ID, state.Entities.Date, state.Entities.Time, 0, bookingNotes(state.Entities))
	if err == nil {
		return bookedReply(appt), newIdleState(), nil
	}

	if errors.Is(err, booking.ErrSlotConflict) {
		slots, availErr := e.Booking.AvailableSlots(ctx, state.Entities.Date, e.Hours.SlotMinutes)
		if availErr != nil {
			return "", nil, fmt.Errorf("availability recheck failed: %w", availErr)
		}
		reply := slotTakenReply(state.Entities.Date, state.Entities.Time,
			scheduling.FreeSlots(slots, e.opts.AlternativeLimit))
		return reply, newIdleState(), nil
	}

	if ve, ok := booking.AsValidationError(err); ok {
		return validationReply(ve), newIdleState(), nil
	}
	return "", nil, err
}

func (e *Engine) handleReschedule(ctx context.Context, customer *models.Customer, intent *models.ResolvedIntent) (string, error) {
	target, reply, err := e.resolveTarget(ctx, customer, intent)
	if err != nil || reply != "" {
		return reply, err
	}

	newDate, newTime := intent.Entities.Date, intent.Entities.Time
	if target.Date == newDate && target.Time == newTime {
		// The date/time entity identified the appointment itself; there is
		// no new slot yet.
		newDate, newTime = "", ""
	}
	if newDate == "" || newTime == "" {
		return rescheduleNeedsSlotReply(target), nil
	}

	repl, err := e.Booking.Reschedule(ctx, customer.ID, target.ID, newDate, newTime)
	switch {
	case err == nil:
		return rescheduledReply(target, repl), nil
	case errors.Is(err, booking.ErrSlotConflict):
		slots, availErr := e.Booking.AvailableSlots(ctx, newDate, e.Hours.SlotMinutes)
		if availErr != nil {
			return "", fmt.Errorf("availability recheck failed: %w", availErr)
		}
		return slotTakenReply(newDate, newTime, scheduling.FreeSlots(slots, e.opts.AlternativeLimit)), nil
	case errors.Is(err, booking.ErrNotFound):
		return replyNotFound, nil
	default:
		if ve, ok := booking.AsValidationError(err); ok {
			return validationReply(ve), nil
		}
		return "", err
	}
}

func (e *Engine) handleCancel(ctx context.Context, customer *models.Customer, intent *models.ResolvedIntent) (string, error) {
	target, reply, err := e.resolveTarget(ctx, customer, intent)
	if err != nil {
		return "", err
	}
	if reply != "" {
		// A date that matches no active appointment may be a repeat of a
		// cancel that already landed; report that as the no-op it is.
		if reply == replyNotFound && intent.Entities.Date != "" {
			prior, perr := e.cancelledMatch(ctx, customer.ID, intent.Entities.Date, intent.Entities.Time)
			if perr != nil {
				return "", perr
			}
			if prior != nil {
				if cerr := e.Booking.Cancel(ctx, customer.ID, prior.ID); cerr != nil && !errors.Is(cerr, booking.ErrNotFound) {
					return "", cerr
				}
				return alreadyCancelledReply(prior), nil
			}
		}
		return reply, nil
	}

	if err := e.Booking.Cancel(ctx, customer.ID, target.ID); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return replyNotFound, nil
		}
		return "", err
	}
	return cancelledReply(target), nil
}

// cancelledMatch finds the customer's most recent cancelled appointment on a
// date (and time, when given).
func (e *Engine) cancelledMatch(ctx context.Context, customerID, date, timeOfDay string) (*models.Appointment, error) {
	appts, err := e.Booking.CustomerAppointments(ctx, customerID, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to list cancelled appointments: %w", err)
	}
	var match *models.Appointment
	for i := range appts {
		a := &appts[i]
		if a.Date != date {
			continue
		}
		if timeOfDay != "" && a.Time != timeOfDay {
			continue
		}
		if match == nil || a.CreatedAt.After(match.CreatedAt) {
			match = a
		}
	}
	return match, nil
}

// resolveTarget identifies the appointment a reschedule/cancel refers to:
// the explicit id entity when present, otherwise the most recent active
// appointment matching the stated date (and time, when given). When neither
// is available the reply lists the customer's upcoming appointments.
func (e *Engine) resolveTarget(ctx context.Context, customer *models.Customer, intent *models.ResolvedIntent) (*models.Appointment, string, error) {
	if id := intent.Entities.AppointmentID; id != "" {
		appt, err := e.Booking.CustomerAppointments(ctx, customer.ID, "")
		if err != nil {
			return nil, "", fmt.Errorf("failed to list appointments: %w", err)
		}
		for i := range appt {
			if appt[i].ID == id || shortID(appt[i].ID) == id {
				return &appt[i], "", nil
			}
		}
		return nil, replyNotFound, nil
	}

	if intent.Entities.Date != "" {
		target, err := e.Booking.FindByDateTime(ctx, customer.ID, intent.Entities.Date, intent.Entities.Time)
		if errors.Is(err, booking.ErrNotFound) && intent.Entities.Time != "" {
			// The time entity may be the requested new slot rather than the
			// appointment's own time; retry on the date alone.
			target, err = e.Booking.FindByDateTime(ctx, customer.ID, intent.Entities.Date, "")
		}
		if err == nil {
			return target, "", nil
		}
		if errors.Is(err, booking.ErrNotFound) {
			return nil, replyNotFound, nil
		}
		return nil, "", err
	}

	active, err := e.activeAppointments(ctx, customer.ID)
	if err != nil {
		return nil, "", err
	}
	return nil, whichAppointmentReply(active), nil
}

func (e *Engine) answerAvailability(ctx context.Context, intent *models.ResolvedIntent) (string, error) {
	date := intent.Entities.Date
	if date == "" {
		return replyWhichDate, nil
	}
	if _, err := scheduling.ParseDate(date); err != nil {
		return replyBadDate, nil
	}

	slots, err := e.Booking.AvailableSlots(ctx, date, e.Hours.SlotMinutes)
	if err != nil {
		return "", fmt.Errorf("availability check failed: %w", err)
	}
	return availabilityReply(date, scheduling.FreeSlots(slots, 0)), nil
}

func (e *Engine) activeAppointments(ctx context.Context, customerID string) ([]models.Appointment, error) {
	appts, err := e.Booking.CustomerAppointments(ctx, customerID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	var active []models.Appointment
	for _, a := range appts {
		if a.Status.IsActive() {
			active = append(active, a)
		}
	}
	return active, nil
}

func (e *Engine) getOrCreateCustomer(ctx context.Context, sender models.SenderProfile) (*models.Customer, error) {
	customer, err := e.Customers.GetByTelegramID(ctx, sender.TelegramID)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}

	customer = &models.Customer{
		ID:         uuid.New().String(),
		TelegramID: sender.TelegramID,
		Username:   sender.Username,
		FirstName:  sender.FirstName,
		LastName:   sender.LastName,
	}
	if err := e.Customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	utils.GetLogger().Info("created customer on first contact",
		zap.String("customerID", customer.ID), zap.String("telegramID", sender.TelegramID))
	return customer, nil
}

// appendTurn stores a turn best effort; losing history must not fail the
// conversation.
func (e *Engine) appendTurn(ctx context.Context, customerID, direction, text string, turnCtx map[string]interface{}) {
	turn := &models.ConversationTurn{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Direction:  direction,
		Text:       text,
		Context:    turnCtx,
	}
	if err := e.Turns.Append(ctx, turn); err != nil {
		utils.GetLogger().Warn("failed to append conversation turn",
			zap.String("customerID", customerID), zap.Error(err))
	}
}

func intentContext(intent *models.ResolvedIntent) map[string]interface{} {
	return map[string]interface{}{
		"intent":     string(intent.Intent),
		"confidence": intent.Confidence,
		"action":     string(intent.Action),
		"entities": map[string]interface{}{
			"date":           intent.Entities.Date,
			"time":           intent.Entities.Time,
			"service_type":   intent.Entities.ServiceType,
			"appointment_id": intent.Entities.AppointmentID,
		},
	}
}

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

func slotFree(slots []scheduling.Slot, timeOfDay string) bool {
	for _, s := range slots {
		if s.Time == timeOfDay {
			return s.Available
		}
	}
	return false
}

// unrelatedIntent reports whether a tag switches away from a pending booking
// task.
func unrelatedIntent(i models.Intent) bool {
	return i == models.IntentRescheduleAppointment || i == models.IntentCancelAppointment
}

func hasNewEntities(e models.IntentEntities) bool {
	return e.Date != "" || e.Time != "" || e.ServiceType != ""
}

func bookingNotes(e models.IntentEntities) string {
	if e.ServiceType != "" {
		return e.ServiceType
	}
	return ""
}
