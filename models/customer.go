package models

import "time"

// Customer is a chat-platform user who owns appointments. Created on first
// contact and never deleted by the engine.
type Customer struct {
	ID         string    `bson:"id" json:"id"`
	TelegramID string    `bson:"telegram_id" json:"telegram_id"` // stable external identity key
	Username   string    `bson:"username,omitempty" json:"username,omitempty"`
	FirstName  string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName   string    `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Phone      string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Email      string    `bson:"email,omitempty" json:"email,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// SenderProfile carries the chat-platform identity fields delivered with an
// inbound message.
type SenderProfile struct {
	TelegramID string `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}
