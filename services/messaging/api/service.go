// Package messagingapi implements couple/vendor conversations with realtime
// delivery over WebSocket.
package messagingapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/messaging"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "messaging"
	ServiceName = "Messaging Service"
	Version     = "1.0.0"
)

// Store persists conversations and messages.
type Store interface {
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

// Broker relays messages between gateway replicas.
type Broker interface {
	Publish(ctx context.Context, m messaging.Message) error
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)
}

// Vendors resolves vendor ownership.
type Vendors interface {
	VendorOwnedBy(ctx context.Context, vendorID, userID string) (bool, error)
	OwnedVendorIDs(ctx context.Context, userID string) ([]string, error)
}

// Bookings answers whether a couple booked a vendor.
type Bookings interface {
	HasConfirmedBooking(ctx context.Context, userID, vendorID string) (bool, error)
}

// Config configures the messaging service.
type Config struct {
	Store    Store
	Broker   Broker
	Vendors  Vendors
	Bookings Bookings
	// AllowedOrigins limits WebSocket upgrades. Empty allows any origin.
	AllowedOrigins []string
	PingInterval   time.Duration
	Logger         *logging.Logger
	Metrics        *metrics.Metrics
	Router         *mux.Router
	Now            func() time.Time
	NewID          func() string
}

// Service implements the messaging service.
type Service struct {
	*commonservice.BaseService
	store          Store
	broker         Broker
	vendors        Vendors
	bookings       Bookings
	allowedOrigins map[string]bool
	pingInterval   time.Duration
	now            func() time.Time
	newID          func() string
}

// New creates the messaging service and registers its routes.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Store == nil || cfg.Broker == nil:
		return nil, fmt.Errorf("messaging: store and broker are required")
	case cfg.Vendors == nil || cfg.Bookings == nil:
		return nil, fmt.Errorf("messaging: vendors and bookings are required")
	}
	base := commonservice.NewBase(&commonservice.BaseConfig{
		ID:      ServiceID,
		Name:    ServiceName,
		Version: Version,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		Router:  cfg.Router,
	})
	s := &Service{
		BaseService:    base,
		store:          cfg.Store,
		broker:         cfg.Broker,
		vendors:        cfg.Vendors,
		bookings:       cfg.Bookings,
		allowedOrigins: make(map[string]bool, len(cfg.AllowedOrigins)),
		pingInterval:   cfg.PingInterval,
		now:            cfg.Now,
		newID:          cfg.NewID,
	}
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			s.allowedOrigins[o] = true
		}
	}
	if s.pingInterval <= 0 {
		s.pingInterval = 30 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.registerRoutes()
	return s, nil
}

// OpenConversation returns the couple's conversation with vendorID, creating
// it if needed. It is idempotent per couple and vendor.
func (s *Service) OpenConversation(ctx context.Context, userID, vendorID, orderID string) (*messaging.Conversation, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, errors.Validation("vendor_id", "vendor_id is required")
	}
	c, err := s.store.FindConversation(ctx, userID, vendorID)
	if err == nil {
		return c, nil
	}
	if !stderrors.Is(err, database.ErrNotFound) {
		return nil, commonservice.StoreError(err, "conversation", "")
	}

	conv := messaging.Conversation{
		ID:        s.newID(),
		UserID:    userID,
		VendorID:  vendorID,
		OrderID:   orderID,
		CreatedAt: s.now().UTC(),
	}
	inserted, err := s.store.CreateConversation(ctx, &conv)
	if err != nil {
		return nil, commonservice.StoreError(err, "conversation", conv.ID)
	}
	if !inserted {
		// Lost a race with a concurrent open.
		existing, err := s.store.FindConversation(ctx, userID, vendorID)
		if err != nil {
			return nil, commonservice.StoreError(err, "conversation", "")
		}
		return existing, nil
	}
	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"conversation_id": conv.ID,
		"vendor_id":       vendorID,
		"order_id":        orderID,
	}).Info("conversation opened")
	return &conv, nil
}

// OpenConversations opens one conversation per vendor of a paid order.
func (s *Service) OpenConversations(ctx context.Context, userID, orderID string, vendorIDs []string) error {
	for _, vendorID := range vendorIDs {
		if _, err := s.OpenConversation(ctx, userID, vendorID, orderID); err != nil {
			return err
		}
	}
	return nil
}

// StartConversation opens a conversation on the couple's request. The couple
// must hold a confirmed booking with the vendor.
func (s *Service) StartConversation(ctx context.Context, userID, vendorID string) (*messaging.Conversation, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, errors.Validation("vendor_id", "vendor_id is required")
	}
	ok, err := s.bookings.HasConfirmedBooking(ctx, userID, vendorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Forbidden("a confirmed booking with this vendor is required")
	}
	return s.OpenConversation(ctx, userID, vendorID, "")
}

// participant loads a conversation and the caller's role in it. Callers
// outside the conversation get NotFound.
func (s *Service) participant(ctx context.Context, userID, conversationID string) (*messaging.Conversation, messaging.Role, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, "", commonservice.StoreError(err, "conversation", conversationID)
	}
	if c.UserID == userID {
		return c, messaging.RoleCouple, nil
	}
	owns, err := s.vendors.VendorOwnedBy(ctx, c.VendorID, userID)
	if err != nil {
		return nil, "", err
	}
	if !owns {
		return nil, "", errors.NotFound("conversation", conversationID)
	}
	return c, messaging.RoleVendor, nil
}

// Send stores a message, bumps the conversation and publishes it.
func (s *Service) Send(ctx context.Context, userID, conversationID, body string) (*messaging.Message, error) {
	text, err := messaging.NormalizeBody(body)
	if err != nil {
		return nil, errors.Validation("body", fmt.Sprintf("body must be 1 to %d characters", messaging.MaxBodyLength))
	}
	c, role, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	m := messaging.Message{
		ID:             s.newID(),
		ConversationID: c.ID,
		SenderID:       userID,
		SenderRole:     role,
		Body:           text,
		CreatedAt:      now,
	}
	if err := s.store.CreateMessage(ctx, &m); err != nil {
		return nil, commonservice.StoreError(err, "message", m.ID)
	}
	log := s.Logger().WithContext(ctx).WithField("conversation_id", c.ID)
	if err := s.store.TouchConversation(ctx, c.ID, now); err != nil {
		log.WithError(err).Warn("failed to bump conversation")
	}
	if err := s.broker.Publish(ctx, m); err != nil {
		log.WithError(err).Warn("failed to publish message")
	}
	s.Metrics().RecordMessageSent(string(role))
	return &m, nil
}

// ListMessages pages through a conversation, newest first.
func (s *Service) ListMessages(ctx context.Context, userID, conversationID string, before *time.Time, limit int) ([]messaging.Message, error) {
	if _, _, err := s.participant(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, before, messaging.ClampLimit(limit))
	if err != nil {
		return nil, commonservice.StoreError(err, "messages", conversationID)
	}
	return msgs, nil
}

// MarkRead marks the other party's messages as read.
func (s *Service) MarkRead(ctx context.Context, userID, conversationID string) (int, error) {
	_, role, err := s.participant(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	n, err := s.store.MarkRead(ctx, conversationID, role.Other(), s.now())
	if err != nil {
		return 0, commonservice.StoreError(err, "messages", conversationID)
	}
	return n, nil
}

// ListConversations lists the caller's conversations as a couple and as a
// vendor owner, most recently active first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]messaging.Summary, error) {
	asCouple, err := s.store.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "conversations", "")
	}
	vendorIDs, err := s.vendors.OwnedVendorIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	asVendor, err := s.store.ListConversationsByVendors(ctx, vendorIDs)
	if err != nil {
		return nil, commonservice.StoreError(err, "conversations", "")
	}

	out := make([]messaging.Summary, 0, len(asCouple)+len(asVendor))
	seen := make(map[string]bool, cap(out))
	for _, c := range asCouple {
		seen[c.ID] = true
		out = append(out, messaging.Summary{Conversation: c, Role: messaging.RoleCouple})
	}
	for _, c := range asVendor {
		if !seen[c.ID] {
			out = append(out, messaging.Summary{Conversation: c, Role: messaging.RoleVendor})
		}
	}

	ids := make([]string, 0, len(out))
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	counts, err := s.store.UnreadCounts(ctx, ids)
	if err != nil {
		return nil, commonservice.StoreError(err, "messages", "")
	}
	for i := range out {
		out[i].Unread = counts[out[i].ID][out[i].Role.Other()]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return activity(out[i].Conversation).After(activity(out[j].Conversation))
	})
	return out, nil
}

func activity(c messaging.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}
