// Package supabase provides promo code lookups for the cart service.
package supabase

import (
	"strings"
	"time"

	"github.com/altarlane/marketplace/internal/domain/cart"
)

// PromoCode is a row of the promo_codes table.
type PromoCode struct {
	Code             string     `json:"code"`
	Description      string     `json:"description,omitempty"`
	PercentOff       float64    `json:"percent_off"`
	AmountOffCents   int64      `json:"amount_off_cents"`
	MinSubtotalCents int64      `json:"min_subtotal_cents"`
	Currency         string     `json:"currency,omitempty"`
	StripeCouponID   string     `json:"stripe_coupon_id,omitempty"`
	Active           bool       `json:"active"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// Usable reports whether the code can be applied at now.
func (p PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return false
	}
	return p.ExpiresAt == nil || now.Before(*p.ExpiresAt)
}

// Discount converts the promo into a cart discount.
func (p PromoCode) Discount() cart.Discount {
	return cart.Discount{
		Code:             strings.ToUpper(p.Code),
		PercentOff:       p.PercentOff,
		AmountOffCents:   p.AmountOffCents,
		MinSubtotalCents: p.MinSubtotalCents,
		StripeCouponID:   p.StripeCouponID,
	}
}
