package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/messaging"
)

const (
	tableConversations = "conversations"
	tableMessages      = "messages"
)

// RepositoryInterface defines messaging data access.
type RepositoryInterface interface {
	GetConversation(ctx context.Context, id string) (*messaging.Conversation, error)
	FindConversation(ctx context.Context, userID, vendorID string) (*messaging.Conversation, error)
	CreateConversation(ctx context.Context, c *messaging.Conversation) (bool, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]messaging.Conversation, error)
	ListConversationsByVendors(ctx context.Context, vendorIDs []string) ([]messaging.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	CreateMessage(ctx context.Context, m *messaging.Message) error
	ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]messaging.Message, error)
	MarkRead(ctx context.Context, conversationID string, senderRole messaging.Role, at time.Time) (int, error)
	UnreadCounts(ctx context.Context, conversationIDs []string) (map[string]map[messaging.Role]int, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// Repository provides messaging data access over PostgREST.
type Repository struct {
	base database.RepositoryInterface
}

func NewRepository(base database.RepositoryInterface) *Repository {
	return &Repository{base: base}
}

func (r *Repository) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	row, err := database.GenericGetByField[Conversation](r.base, ctx, tableConversations, "id", id)
	if err != nil {
		return nil, err
	}
	c := row.ToDomain()
	return &c, nil
}

// FindConversation returns the conversation between a couple and a vendor, or ErrNotFound.
func (r *Repository) FindConversation(ctx context.Context, userID, vendorID string) (*messaging.Conversation, error) {
	q := database.NewQuery().Eq("user_id", userID).Eq("vendor_id", vendorID).Limit(1)
	rows, err := database.GenericListWithQuery[Conversation](r.base, ctx, tableConversations, q.Build())
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, database.NotFoundError(tableConversations, "user_id,vendor_id", userID+","+vendorID)
	}
	c := rows[0].ToDomain()
	return &c, nil
}

// CreateConversation inserts c unless a conversation for the same couple and
// vendor exists. It reports whether a row was inserted.
func (r *Repository) CreateConversation(ctx context.Context, c *messaging.Conversation) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("%w: conversation cannot be nil", database.ErrInvalidInput)
	}
	resp, err := r.base.Request(ctx, "POST", tableConversations, ConversationFromDomain(*c),
		"on_conflict=user_id,vendor_id", database.WithPrefer("resolution=ignore-duplicates"))
	if err != nil {
		return false, fmt.Errorf("create %s: %w", tableConversations, err)
	}
	var rows []Conversation
	if len(resp) > 0 {
		if err := json.Unmarshal(resp, &rows); err != nil {
			return false, fmt.Errorf("%w: unmarshal %s: %v", database.ErrDatabaseError, tableConversations, err)
		}
	}
	return len(rows) > 0, nil
}

// ListConversationsByUser lists a couple's conversations, most recent first.
func (r *Repository) ListConversationsByUser(ctx context.Context, userID string) ([]messaging.Conversation, error) {
	q := database.NewQuery().Eq("user_id", userID).OrderDesc("last_message_at").OrderDesc("created_at")
	return r.listConversations(ctx, q)
}

// ListConversationsByVendors lists the conversations of any of vendorIDs.
func (r *Repository) ListConversationsByVendors(ctx context.Context, vendorIDs []string) ([]messaging.Conversation, error) {
	if len(vendorIDs) == 0 {
		return []messaging.Conversation{}, nil
	}
	q := database.NewQuery().In("vendor_id", vendorIDs).OrderDesc("last_message_at").OrderDesc("created_at")
	return r.listConversations(ctx, q)
}

func (r *Repository) listConversations(ctx context.Context, q *database.Query) ([]messaging.Conversation, error) {
	rows, err := database.GenericListWithQuery[Conversation](r.base, ctx, tableConversations, q.Build())
	if err != nil {
		return nil, err
	}
	out := make([]messaging.Conversation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

type touchPatch struct {
	LastMessageAt time.Time `json:"last_message_at"`
}

func (r *Repository) TouchConversation(ctx context.Context, id string, at time.Time) error {
	return database.GenericUpdate(r.base, ctx, tableConversations, "id", id, touchPatch{LastMessageAt: at.UTC()})
}

func (r *Repository) CreateMessage(ctx context.Context, m *messaging.Message) error {
	if m == nil {
		return fmt.Errorf("%w: message cannot be nil", database.ErrInvalidInput)
	}
	return database.GenericCreate[Message](r.base, ctx, tableMessages, MessageFromDomain(*m), nil)
}

// ListMessages returns up to limit messages older than before, newest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID string, before *time.Time, limit int) ([]messaging.Message, error) {
	q := database.NewQuery().Eq("conversation_id", conversationID)
	if before != nil {
		q = q.LtTime("created_at", *before)
	}
	q = q.OrderDesc("created_at").Limit(limit)
	rows, err := database.GenericListWithQuery[Message](r.base, ctx, tableMessages, q.Build())
	if err != nil {
		return nil, err
	}
	out := make([]messaging.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

type readPatch struct {
	ReadAt time.Time `json:"read_at"`
}

// MarkRead stamps unread messages sent by senderRole and returns how many changed.
func (r *Repository) MarkRead(ctx context.Context, conversationID string, senderRole messaging.Role, at time.Time) (int, error) {
	q := database.NewQuery().
		Eq("conversation_id", conversationID).
		Eq("sender_role", string(senderRole)).
		Is("read_at", "null").
		Select("id")
	rows, err := database.GenericUpdateWhere[Message](r.base, ctx, tableMessages, q.Build(), readPatch{ReadAt: at.UTC()})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

type unreadRow struct {
	ConversationID string `json:"conversation_id"`
	SenderRole     string `json:"sender_role"`
}

// UnreadCounts counts unread messages per conversation and sender role.
func (r *Repository) UnreadCounts(ctx context.Context, conversationIDs []string) (map[string]map[messaging.Role]int, error) {
	out := make(map[string]map[messaging.Role]int, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}
	q := database.NewQuery().
		In("conversation_id", conversationIDs).
		Is("read_at", "null").
		Select("conversation_id,sender_role")
	rows, err := database.GenericListWithQuery[unreadRow](r.base, ctx, tableMessages, q.Build())
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts := out[row.ConversationID]
		if counts == nil {
			counts = make(map[messaging.Role]int, 2)
			out[row.ConversationID] = counts
		}
		counts[messaging.Role(row.SenderRole)]++
	}
	return out, nil
}
