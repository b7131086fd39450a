// Package supabase provides order persistence for the checkout service.
package supabase

import (
	"time"

	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/order"
)

// Order is a row of the orders table. Items are stored as jsonb.
type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	Status            string      `json:"status"`
	Items             []cart.Item `json:"items"`
	ItemCount         int         `json:"item_count"`
	SubtotalCents     int64       `json:"subtotal_cents"`
	DiscountCents     int64       `json:"discount_cents"`
	TotalCents        int64       `json:"total_cents"`
	PromoCode         *string     `json:"promo_code"`
	Currency          string      `json:"currency"`
	CheckoutSessionID *string     `json:"checkout_session_id"`
	CheckoutURL       *string     `json:"checkout_url"`
	PaymentIntentID   *string     `json:"payment_intent_id"`
	ExpiresAt         time.Time   `json:"expires_at"`
	PaidAt            *time.Time  `json:"paid_at"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (o Order) ToDomain() order.Order {
	out := order.Order{
		ID:     o.ID,
		UserID: o.UserID,
		Status: order.Status(o.Status),
		Items:  o.Items,
		Totals: cart.Totals{
			ItemCount:     o.ItemCount,
			SubtotalCents: o.SubtotalCents,
			DiscountCents: o.DiscountCents,
			TotalCents:    o.TotalCents,
		},
		PromoCode:         deref(o.PromoCode),
		Currency:          o.Currency,
		CheckoutSessionID: deref(o.CheckoutSessionID),
		CheckoutURL:       deref(o.CheckoutURL),
		PaymentIntentID:   deref(o.PaymentIntentID),
		ExpiresAt:         o.ExpiresAt,
		PaidAt:            o.PaidAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	if out.Items == nil {
		out.Items = []cart.Item{}
	}
	return out
}

func OrderFromDomain(o order.Order) Order {
	return Order{
		ID:                o.ID,
		UserID:            o.UserID,
		Status:            string(o.Status),
		Items:             o.Items,
		ItemCount:         o.Totals.ItemCount,
		SubtotalCents:     o.Totals.SubtotalCents,
		DiscountCents:     o.Totals.DiscountCents,
		TotalCents:        o.Totals.TotalCents,
		PromoCode:         ptr(o.PromoCode),
		Currency:          o.Currency,
		CheckoutSessionID: ptr(o.CheckoutSessionID),
		CheckoutURL:       ptr(o.CheckoutURL),
		PaymentIntentID:   ptr(o.PaymentIntentID),
		ExpiresAt:         o.ExpiresAt.UTC(),
		PaidAt:            o.PaidAt,
		CreatedAt:         o.CreatedAt.UTC(),
		UpdatedAt:         o.UpdatedAt.UTC(),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
