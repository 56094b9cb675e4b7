package models

import "time"

// Turn directions.
const (
	DirectionUser = "user"
	DirectionBot  = "bot"
)

// ConversationTurn is one immutable message in a customer's conversation log.
// Turns are append-only and read back as a bounded most-recent window when
// building model context.
type ConversationTurn struct {
	ID         string                 `bson:"id" json:"id"`
	CustomerID string                 `bson:"customer_id" json:"customer_id"`
	Direction  string                 `bson:"direction" json:"direction"` // "user" or "bot"
	Text       string                 `bson:"text" json:"text"`
	Context    map[string]interface{} `bson:"context,omitempty" json:"context,omitempty"` // resolved intent payload for user turns
	CreatedAt  time.Time              `bson:"created_at" json:"created_at"`
}
