// Package payments wraps the Stripe API for hosted checkout sessions and
// webhook verification.
package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"
)

// Event types handled by the checkout service.
const (
	EventSessionCompleted      = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventSessionExpired        = "checkout.session.expired"
)

// MinSessionTTL and MaxSessionTTL bound a checkout session's lifetime.
// SessionTTLMargin covers the time between fixing expires_at and the
// session request reaching Stripe.
const (
	MinSessionTTL    = 30 * time.Minute
	MaxSessionTTL    = 24 * time.Hour
	SessionTTLMargin = 5 * time.Minute
)

// ClampSessionTTL keeps ttl within the range Stripe accepts for expires_at.
// Short TTLs are raised to MinSessionTTL plus SessionTTLMargin.
func ClampSessionTTL(ttl time.Duration) time.Duration {
	if floor := MinSessionTTL + SessionTTLMargin; ttl < floor {
		return floor
	}
	if ttl > MaxSessionTTL {
		return MaxSessionTTL
	}
	return ttl
}

// Line is one purchasable line on a checkout session.
type Line struct {
	Name            string
	UnitAmountCents int64
	Quantity        int64
}

// SessionRequest describes a checkout session to create.
type SessionRequest struct {
	OrderID  string
	UserID   string
	Email    string
	Currency string
	Lines    []Line
	// CouponID reuses an existing coupon. Otherwise a single-use coupon is
	// created for DiscountCents when it is positive.
	CouponID      string
	DiscountCents int64
	SuccessURL    string
	CancelURL     string
	ExpiresAt     time.Time
}

// Session is a created hosted checkout session.
type Session struct {
	ID              string
	URL             string
	PaymentIntentID string
	ExpiresAt       time.Time
}

// Event is the subset of a checkout webhook event the service acts on.
type Event struct {
	ID              string
	Type            string
	SessionID       string
	OrderID         string
	UserID          string
	PaymentStatus   string
	PaymentIntentID string
}

// Paid reports whether the event represents a settled payment.
func (e Event) Paid() bool {
	switch e.Type {
	case EventAsyncPaymentSucceeded:
		return true
	case EventSessionCompleted:
		return e.PaymentStatus == "paid" || e.PaymentStatus == "no_payment_required"
	}
	return false
}

// Config configures the processor.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the Stripe endpoints. Tests point it at a local server.
	Backends *stripe.Backends
}

// Processor creates checkout sessions and verifies webhooks.
type Processor struct {
	sc            *client.API
	webhookSecret string
}

// New creates a processor.
func New(cfg Config) (*Processor, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, fmt.Errorf("payments: secret key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("payments: webhook secret is required")
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, cfg.Backends)
	return &Processor{sc: sc, webhookSecret: cfg.WebhookSecret}, nil
}

// CreateSession creates a hosted checkout session in payment mode.
func (p *Processor) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("payments: session needs at least one line")
	}
	currency := strings.ToLower(req.Currency)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
	}
	params.Context = ctx
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", req.UserID)

	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(l.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(l.Name),
				},
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	couponID := req.CouponID
	if couponID == "" && req.DiscountCents > 0 {
		id, err := p.createCoupon(ctx, req.OrderID, currency, req.DiscountCents)
		if err != nil {
			return nil, err
		}
		couponID = id
	}
	if couponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{{Coupon: stripe.String(couponID)}}
	}

	cs, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	out := &Session{ID: cs.ID, URL: cs.URL}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	if cs.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(cs.ExpiresAt, 0).UTC()
	}
	return out, nil
}

func (p *Processor) createCoupon(ctx context.Context, orderID, currency string, amount int64) (string, error) {
	params := &stripe.CouponParams{
		AmountOff:      stripe.Int64(amount),
		Currency:       stripe.String(currency),
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
		Name:           stripe.String("Order " + orderID),
	}
	params.Context = ctx
	c, err := p.sc.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("create coupon: %w", err)
	}
	return c.ID, nil
}

// ExpireSession expires an open checkout session.
func (p *Processor) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.sc.CheckoutSessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session %s: %w", sessionID, err)
	}
	return nil
}

// ParseEvent verifies a webhook signature and extracts the session fields.
func (p *Processor) ParseEvent(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}
	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}
	obj := gjson.ParseBytes(ev.Data.Raw)
	out.SessionID = obj.Get("id").String()
	out.OrderID = obj.Get("metadata.order_id").String()
	out.UserID = obj.Get("client_reference_id").String()
	out.PaymentStatus = obj.Get("payment_status").String()
	if pi := obj.Get("payment_intent"); pi.IsObject() {
		out.PaymentIntentID = pi.Get("id").String()
	} else {
		out.PaymentIntentID = pi.String()
	}
	return out, nil
}
