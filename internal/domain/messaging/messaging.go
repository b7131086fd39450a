// Package messaging defines couple/vendor conversations.
package messaging

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Role identifies which side of a conversation sent a message.
type Role string

const (
	RoleCouple Role = "couple"
	RoleVendor Role = "vendor"
)

// Other returns the opposite party.
func (r Role) Other() Role {
	if r == RoleCouple {
		return RoleVendor
	}
	return RoleCouple
}

// MaxBodyLength is the longest message body in characters.
const MaxBodyLength = 4000

// Page size bounds for ListMessages.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var (
	ErrEmptyBody   = errors.New("message body is empty")
	ErrBodyTooLong = errors.New("message body is too long")
)

// Conversation links a couple with one vendor.
type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	VendorID      string     `json:"vendor_id"`
	OrderID       string     `json:"order_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Summary is a conversation as listed for one participant.
type Summary struct {
	Conversation
	Role   Role `json:"role"`
	Unread int  `json:"unread"`
}

// Message is one message in a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	SenderRole     Role       `json:"sender_role"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// NormalizeBody trims body and checks it holds 1..MaxBodyLength characters.
func NormalizeBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	switch n := utf8.RuneCountInString(body); {
	case n == 0:
		return "", ErrEmptyBody
	case n > MaxBodyLength:
		return "", ErrBodyTooLong
	}
	return body, nil
}

// ClampLimit bounds a page size to [1, MaxPageSize]. Zero or less means the default.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}
