package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/order"
)

const tableOrders = "orders"

// Transition carries the fields written alongside a status change.
type Transition struct {
	PaymentIntentID string
	PaidAt          *time.Time
}

// RepositoryInterface defines order data access.
type RepositoryInterface interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	AttachSession(ctx context.Context, id, sessionID, url, paymentIntentID string) error
	TransitionStatus(ctx context.Context, id string, from []order.Status, to order.Status, t Transition) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]order.Order, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// Repository provides order data access over PostgREST.
type Repository struct {
	base database.RepositoryInterface
}

func NewRepository(base database.RepositoryInterface) *Repository {
	return &Repository{base: base}
}

func (r *Repository) CreateOrder(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("%w: order cannot be nil", database.ErrInvalidInput)
	}
	return database.GenericCreate[Order](r.base, ctx, tableOrders, OrderFromDomain(*o), nil)
}

func (r *Repository) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	row, err := database.GenericGetByField[Order](r.base, ctx, tableOrders, "id", id)
	if err != nil {
		return nil, err
	}
	o := row.ToDomain()
	return &o, nil
}

// ListOrdersByUser lists a user's orders, newest first.
func (r *Repository) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	q := database.NewQuery().Eq("user_id", userID).OrderDesc("created_at")
	return r.list(ctx, q)
}

// ListExpiredPending lists pending orders whose expiry has passed.
func (r *Repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]order.Order, error) {
	q := database.NewQuery().
		Eq("status", string(order.StatusPending)).
		LtTime("expires_at", now).
		OrderAsc("expires_at").
		Limit(limit)
	return r.list(ctx, q)
}

func (r *Repository) list(ctx context.Context, q *database.Query) ([]order.Order, error) {
	rows, err := database.GenericListWithQuery[Order](r.base, ctx, tableOrders, q.Build())
	if err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out, nil
}

type sessionPatch struct {
	CheckoutSessionID string  `json:"checkout_session_id"`
	CheckoutURL       string  `json:"checkout_url"`
	PaymentIntentID   *string `json:"payment_intent_id,omitempty"`
	UpdatedAt         string  `json:"updated_at"`
}

// AttachSession records the hosted checkout session on an order.
func (r *Repository) AttachSession(ctx context.Context, id, sessionID, url, paymentIntentID string) error {
	patch := sessionPatch{
		CheckoutSessionID: sessionID,
		CheckoutURL:       url,
		PaymentIntentID:   ptr(paymentIntentID),
		UpdatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	}
	return database.GenericUpdate(r.base, ctx, tableOrders, "id", id, patch)
}

type statusPatch struct {
	Status          string     `json:"status"`
	PaymentIntentID *string    `json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TransitionStatus moves the order to to if it is currently in one of from.
// It reports whether a row changed.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from []order.Status, to order.Status, t Transition) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("%w: order id required", database.ErrInvalidInput)
	}
	states := make([]string, 0, len(from))
	for _, s := range from {
		states = append(states, string(s))
	}
	q := database.NewQuery().Eq("id", id).In("status", states).Select("id")
	rows, err := database.GenericUpdateWhere[Order](r.base, ctx, tableOrders, q.Build(), statusPatch{
		Status:          string(to),
		PaymentIntentID: ptr(t.PaymentIntentID),
		PaidAt:          t.PaidAt,
		UpdatedAt:       time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
