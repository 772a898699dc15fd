package types

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable note from one user to another.
// A conversation is not stored; it is the set of messages whose
// {SenderID, ReceiverID} equals a given unordered pair.
type Message struct {
	ID         uuid.UUID `json:"id" db:"id"`
	SenderID   uuid.UUID `json:"sender_id" db:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" db:"receiver_id"`
	Content    string    `json:"content" db:"content"`

	// CreatedAt is assigned by the database.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Involves reports whether the message was exchanged between a and b,
// in either direction.
func (m Message) Involves(a, b uuid.UUID) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Counterpart returns the participant that is not self.
func (m Message) Counterpart(self uuid.UUID) uuid.UUID {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// Before orders messages by creation time, breaking ties by id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

// ConversationSummary is the latest message exchanged with one counterpart.
type ConversationSummary struct {
	CounterpartID       uuid.UUID `json:"counterpart_id"`
	CounterpartUsername string    `json:"counterpart_username,omitempty"`
	LastMessage         Message   `json:"last_message"`
}
