package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"salona/models"

	"github.com/go-redis/redis/v8"
)

// Phase is the conversation state machine phase for one customer.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseAwaitingClarification Phase = "awaiting_clarification"
	PhaseConfirmingBooking     Phase = "confirming_booking"
)

// State is the per-customer conversation state: the current phase, the
// entity accumulator carried across turns, and the clarification turn
// counter that bounds how long the engine will keep asking.
type State struct {
	Phase         Phase                 `json:"phase"`
	PendingIntent models.Intent         `json:"pending_intent,omitempty"`
	Entities      models.IntentEntities `json:"entities"`
	ClarifyTurns  int                   `json:"clarify_turns"`
}

func newIdleState() *State {
	return &State{Phase: PhaseIdle}
}

// StateStore keys conversation state by customer id. Entries are created on
// first message and evicted after an idle period (the store's TTL).
type StateStore interface {
	Get(ctx context.Context, customerID string) (*State, error)
	Set(ctx context.Context, customerID string, state *State) error
	Clear(ctx context.Context, customerID string) error
}

const statePrefix = "conv:state:"

// RedisStateStore holds conversation state in Redis with a TTL, which doubles
// as the idle-eviction policy.
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

// Get returns the stored state, or a fresh idle state when none exists.
func (s *RedisStateStore) Get(ctx context.Context, customerID string) (*State, error) {
	data, err := s.client.Get(ctx, statePrefix+customerID).Result()
	if err == redis.Nil {
		return newIdleState(), nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Set stores the state, refreshing the idle-eviction TTL.
func (s *RedisStateStore) Set(ctx context.Context, customerID string, state *State) error {
	b, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statePrefix+customerID, b, s.ttl).Err()
}

// Clear drops the state so the next turn starts idle.
func (s *RedisStateStore) Clear(ctx context.Context, customerID string) error {
	return s.client.Del(ctx, statePrefix+customerID).Err()
}

// MemoryStateStore is a process-local StateStore for tests and for running
// without Redis configured.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]*State
}

// NewMemoryStateStore creates an empty in-process state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*State)}
}

func (s *MemoryStateStore) Get(_ context.Context, customerID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[customerID]; ok {
		cp := *st
		return &cp, nil
	}
	return newIdleState(), nil
}

func (s *MemoryStateStore) Set(_ context.Context, customerID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[customerID] = &cp
	return nil
}

func (s *MemoryStateStore) Clear(_ context.Context, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, customerID)
	return nil
}
