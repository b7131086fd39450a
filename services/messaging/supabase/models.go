// Package supabase provides conversation and message persistence.
package supabase

import (
	"time"

	"github.com/altarlane/marketplace/internal/domain/messaging"
)

// Conversation is a row of the conversations table.
type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	VendorID      string     `json:"vendor_id"`
	OrderID       *string    `json:"order_id"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
}

func (c Conversation) ToDomain() messaging.Conversation {
	out := messaging.Conversation{
		ID:            c.ID,
		UserID:        c.UserID,
		VendorID:      c.VendorID,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
	}
	if c.OrderID != nil {
		out.OrderID = *c.OrderID
	}
	return out
}

func ConversationFromDomain(c messaging.Conversation) Conversation {
	row := Conversation{
		ID:            c.ID,
		UserID:        c.UserID,
		VendorID:      c.VendorID,
		CreatedAt:     c.CreatedAt.UTC(),
		LastMessageAt: c.LastMessageAt,
	}
	if c.OrderID != "" {
		row.OrderID = &c.OrderID
	}
	return row
}

// Message is a row of the messages table.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderRole     string     `json:"sender_role"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at"`
}

func (m Message) ToDomain() messaging.Message {
	return messaging.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     messaging.Role(m.SenderRole),
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		ReadAt:         m.ReadAt,
	}
}

func MessageFromDomain(m messaging.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderRole:     string(m.SenderRole),
		Body:           m.Body,
		CreatedAt:      m.CreatedAt.UTC(),
		ReadAt:         m.ReadAt,
	}
}
