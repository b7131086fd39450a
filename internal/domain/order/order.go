// Package order defines checkout orders and their status transitions.
package order

import (
	"sort"
	"time"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
)

// Status is an order lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Order is a snapshot of a cart submitted for payment.
type Order struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	Status            Status      `json:"status"`
	Items             []cart.Item `json:"items"`
	Totals            cart.Totals `json:"totals"`
	PromoCode         string      `json:"promo_code,omitempty"`
	Currency          string      `json:"currency"`
	CheckoutSessionID string      `json:"checkout_session_id,omitempty"`
	CheckoutURL       string      `json:"checkout_url,omitempty"`
	PaymentIntentID   string      `json:"payment_intent_id,omitempty"`
	ExpiresAt         time.Time   `json:"expires_at"`
	PaidAt            *time.Time  `json:"paid_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// FromCart snapshots c into a pending order.
func FromCart(id string, c cart.Cart, expiresAt, now time.Time) Order {
	items := make([]cart.Item, len(c.Items))
	copy(items, c.Items)
	o := Order{
		ID:        id,
		UserID:    c.UserID,
		Status:    StatusPending,
		Items:     items,
		Totals:    c.Totals,
		Currency:  c.Currency,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Discount != nil && c.Totals.DiscountCents > 0 {
		o.PromoCode = c.Discount.Code
	}
	return o
}

// VendorIDs returns the distinct vendors booked by the order, sorted.
func (o Order) VendorIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	var out []string
	for _, it := range o.Items {
		id := it.VendorID
		if it.Selection != nil && it.Selection.VendorID != "" {
			id = it.Selection.VendorID
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// HoldRequests returns one hold per selected item.
func (o Order) HoldRequests() []booking.HoldRequest {
	out := make([]booking.HoldRequest, 0, len(o.Items))
	for _, it := range o.Items {
		if it.Selection == nil {
			continue
		}
		out = append(out, booking.HoldRequest{
			VendorID:  it.Selection.VendorID,
			PackageID: it.PackageID,
			Selection: *it.Selection,
		})
	}
	return out
}

// Expired reports whether a pending order has passed its expiry.
func (o Order) Expired(now time.Time) bool {
	return o.Status == StatusPending && !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

// ReleaseSources lists the states an order can be released from. A paid
// order is never downgraded.
var ReleaseSources = []Status{StatusPending}

// PaySources lists the states an order can become paid from. Late payments
// for orders released locally still record the payment.
var PaySources = []Status{StatusPending, StatusFailed, StatusExpired}
