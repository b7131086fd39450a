package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
)

func TestFromCart(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	sel := &booking.Selection{EventDetails: booking.EventDetails{Date: "2026-09-12"}, VendorID: "v-bloom"}
	c := cart.Cart{
		UserID:   "u1",
		Currency: "usd",
		Items: []cart.Item{
			{ID: "i1", PackageID: "p-flora", Selection: sel},
			{ID: "i2", PackageID: "p-hall", VendorID: "v-hall", Selection: &booking.Selection{VendorID: "v-hall"}},
			{ID: "i3", PackageID: "p-hall-2", VendorID: "v-hall", Selection: &booking.Selection{VendorID: "v-hall"}},
		},
		Discount: &cart.Discount{Code: "SPRING10", PercentOff: 10},
		Totals:   cart.Totals{SubtotalCents: 1000, DiscountCents: 100, TotalCents: 900},
	}

	o := FromCart("o1", c, now.Add(time.Hour), now)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "SPRING10", o.PromoCode)
	assert.Equal(t, []string{"v-bloom", "v-hall"}, o.VendorIDs())

	holds := o.HoldRequests()
	assert.Len(t, holds, 3)
	assert.Equal(t, "v-bloom", holds[0].VendorID)
	assert.Equal(t, "2026-09-12", holds[0].Selection.Date)

	c.Items[0].PackageID = "changed"
	assert.Equal(t, "p-flora", o.Items[0].PackageID)

	assert.False(t, o.Expired(now))
	assert.True(t, o.Expired(now.Add(time.Hour)))
	o.Status = StatusPaid
	assert.False(t, o.Expired(now.Add(2*time.Hour)))
}

func TestFromCart_NoEffectiveDiscount(t *testing.T) {
	c := cart.Cart{UserID: "u1", Discount: &cart.Discount{Code: "BIG", AmountOffCents: 500, MinSubtotalCents: 10000}}
	o := FromCart("o1", c, time.Time{}, time.Time{})
	assert.Empty(t, o.PromoCode)
	assert.False(t, o.Expired(time.Now()))
}
