// Package checkoutapi turns carts into orders, hosts Stripe checkout
// sessions and reacts to payment webhooks.
package checkoutapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/order"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	"github.com/altarlane/marketplace/services/checkout/payments"
	checkoutsupabase "github.com/altarlane/marketplace/services/checkout/supabase"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "checkout"
	ServiceName = "Checkout Service"
	Version     = "1.0.0"
)

const (
	eventDedupeTTL  = 72 * time.Hour
	expireBatchSize = 100
)

// Orders persists orders.
type Orders interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, id string) (*order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
	AttachSession(ctx context.Context, id, sessionID, url, paymentIntentID string) error
	TransitionStatus(ctx context.Context, id string, from []order.Status, to order.Status, t checkoutsupabase.Transition) (bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]order.Order, error)
}

// Carts is the slice of the cart service used at checkout.
type Carts interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
	Reprice(ctx context.Context, userID string) (cart.Cart, error)
	Clear(ctx context.Context, userID string) (cart.Cart, error)
}

// Bookings places and settles booking holds.
type Bookings interface {
	PlaceHolds(ctx context.Context, orderID, userID string, items []booking.HoldRequest, expiresAt time.Time) ([]booking.Booking, error)
	ConfirmOrder(ctx context.Context, orderID string) (int, error)
	ReleaseOrder(ctx context.Context, orderID string, status booking.Status) (int, error)
}

// Payments hosts checkout sessions and verifies webhooks.
type Payments interface {
	CreateSession(ctx context.Context, req payments.SessionRequest) (*payments.Session, error)
	ExpireSession(ctx context.Context, sessionID string) error
	ParseEvent(payload []byte, signature string) (*payments.Event, error)
}

// Conversations opens couple/vendor conversations once an order is paid.
type Conversations interface {
	OpenConversations(ctx context.Context, userID, orderID string, vendorIDs []string) error
}

// Config configures the checkout service.
type Config struct {
	Orders        Orders
	Carts         Carts
	Bookings      Bookings
	Payments      Payments
	Conversations Conversations
	// Redis de-duplicates webhook deliveries.
	Redis    *redis.Client
	Currency string
	HoldTTL  time.Duration
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
	Router   *mux.Router
	Now      func() time.Time
	NewID    func() string
}

// Service implements the checkout service.
type Service struct {
	*commonservice.BaseService
	orders        Orders
	carts         Carts
	bookings      Bookings
	payments      Payments
	conversations Conversations
	rdb           *redis.Client
	currency      string
	holdTTL       time.Duration
	now           func() time.Time
	newID         func() string
}

// New creates the checkout service and registers its routes.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Orders == nil:
		return nil, fmt.Errorf("checkout: orders store is required")
	case cfg.Carts == nil || cfg.Bookings == nil:
		return nil, fmt.Errorf("checkout: carts and bookings are required")
	case cfg.Payments == nil:
		return nil, fmt.Errorf("checkout: payments processor is required")
	case cfg.Redis == nil:
		return nil, fmt.Errorf("checkout: redis client is required")
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
		BaseService:   base,
		orders:        cfg.Orders,
		carts:         cfg.Carts,
		bookings:      cfg.Bookings,
		payments:      cfg.Payments,
		conversations: cfg.Conversations,
		rdb:           cfg.Redis,
		currency:      strings.ToLower(cfg.Currency),
		holdTTL:       payments.ClampSessionTTL(cfg.HoldTTL),
		now:           cfg.Now,
		newID:         cfg.NewID,
	}
	if s.currency == "" {
		s.currency = "usd"
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

// CheckoutRequest starts a checkout for a user's cart.
type CheckoutRequest struct {
	UserID     string
	Email      string
	SuccessURL string
	CancelURL  string
}

// CreateCheckout snapshots the cart into a pending order, holds every
// selected vendor and opens a hosted checkout session.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*order.Order, error) {
	if err := validateRedirect("success_url", req.SuccessURL); err != nil {
		return nil, err
	}
	if err := validateRedirect("cancel_url", req.CancelURL); err != nil {
		return nil, err
	}

	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, errors.Validation("cart", "cart is empty")
	}
	if missing := c.Unselected(); len(missing) > 0 {
		return nil, errors.Validation("items", "every item needs a date and vendor selection").
			WithDetails("item_ids", missing)
	}
	if c, err = s.carts.Reprice(ctx, req.UserID); err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, errors.Validation("cart", "cart is empty")
	}
	if c.Currency != "" && !strings.EqualFold(c.Currency, s.currency) {
		return nil, errors.Conflict(fmt.Sprintf("cart currency %s is not accepted", c.Currency))
	}

	now := s.now().UTC()
	o := order.FromCart(s.newID(), c, now.Add(s.holdTTL), now)
	o.Currency = s.currency
	if err := s.orders.CreateOrder(ctx, &o); err != nil {
		return nil, commonservice.StoreError(err, "order", o.ID)
	}
	log := s.Logger().WithContext(ctx).WithField("order_id", o.ID)

	if _, err := s.bookings.PlaceHolds(ctx, o.ID, o.UserID, o.HoldRequests(), o.ExpiresAt); err != nil {
		s.markFailed(ctx, &o, false)
		return nil, err
	}

	session, err := s.payments.CreateSession(ctx, s.sessionRequest(&o, c, req))
	s.Metrics().RecordCheckoutSession(err)
	if err != nil {
		log.WithError(err).Error("checkout session creation failed")
		s.markFailed(ctx, &o, true)
		return nil, errors.Unavailable("payment processor unavailable", err)
	}
	if err := s.orders.AttachSession(ctx, o.ID, session.ID, session.URL, session.PaymentIntentID); err != nil {
		log.WithError(err).Error("failed to record checkout session")
		if xerr := s.payments.ExpireSession(ctx, session.ID); xerr != nil {
			log.WithError(xerr).Warn("failed to expire orphaned checkout session")
		}
		s.markFailed(ctx, &o, true)
		return nil, commonservice.StoreError(err, "order", o.ID)
	}
	o.CheckoutSessionID = session.ID
	o.CheckoutURL = session.URL
	o.PaymentIntentID = session.PaymentIntentID

	log.WithFields(map[string]interface{}{
		"session_id":  session.ID,
		"total_cents": o.Totals.TotalCents,
		"items":       len(o.Items),
	}).Info("checkout session created")
	return &o, nil
}

func (s *Service) sessionRequest(o *order.Order, c cart.Cart, req CheckoutRequest) payments.SessionRequest {
	lines := make([]payments.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, payments.Line{
			Name:            fmt.Sprintf("%s — %s", it.Name, it.Category),
			UnitAmountCents: it.UnitPriceCents,
			Quantity:        int64(it.Quantity),
		})
	}
	out := payments.SessionRequest{
		OrderID:       o.ID,
		UserID:        o.UserID,
		Email:         req.Email,
		Currency:      o.Currency,
		Lines:         lines,
		DiscountCents: o.Totals.DiscountCents,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
		ExpiresAt:     o.ExpiresAt,
	}
	if c.Discount != nil && o.Totals.DiscountCents > 0 {
		out.CouponID = c.Discount.StripeCouponID
	}
	return out
}

// markFailed moves a pending order to failed and optionally cancels its holds.
func (s *Service) markFailed(ctx context.Context, o *order.Order, release bool) {
	log := s.Logger().WithContext(ctx).WithField("order_id", o.ID)
	if release {
		if _, err := s.bookings.ReleaseOrder(ctx, o.ID, booking.StatusCancelled); err != nil {
			log.WithError(err).Error("failed to release holds")
		}
	}
	if _, err := s.orders.TransitionStatus(ctx, o.ID, order.ReleaseSources, order.StatusFailed, checkoutsupabase.Transition{}); err != nil {
		log.WithError(err).Error("failed to mark order failed")
		return
	}
	o.Status = order.StatusFailed
}

func validateRedirect(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return errors.Validation(field, field+" must be an absolute http(s) URL")
	}
	return nil
}

// ListOrders lists a user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	out, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "orders", "")
	}
	return out, nil
}

// GetOrder returns one of the user's orders.
func (s *Service) GetOrder(ctx context.Context, userID, id string) (*order.Order, error) {
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, commonservice.StoreError(err, "order", id)
	}
	if o.UserID != userID {
		return nil, errors.NotFound("order", id)
	}
	return o, nil
}

func isNotFound(err error) bool {
	return stderrors.Is(err, database.ErrNotFound)
}
