// Package cart implements the shopping-cart reducer.
//
// Reduce applies one Action to a Cart and returns a new Cart with totals
// recomputed. The input cart is never modified.
package cart

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/catalog"
)

var (
	ErrItemNotFound     = errors.New("cart item not found")
	ErrInvalidQuantity  = errors.New("quantity out of range")
	ErrCurrencyMismatch = errors.New("currency does not match cart")
	ErrPackageInactive  = errors.New("package is not available")
	ErrInvalidDiscount  = errors.New("invalid discount")
	ErrMinimumNotMet    = errors.New("subtotal below discount minimum")
	ErrMissingItemID    = errors.New("item id is required")
)

// UnavailablePackagesError lists packages that could not be repriced.
type UnavailablePackagesError struct {
	PackageIDs []string
}

func (e *UnavailablePackagesError) Error() string {
	return "packages no longer available: " + strings.Join(e.PackageIDs, ", ")
}

func (e *UnavailablePackagesError) Is(target error) bool {
	return target == ErrPackageInactive
}

// Item is one cart line.
type Item struct {
	ID             string             `json:"id"`
	PackageID      string             `json:"package_id"`
	VendorID       string             `json:"vendor_id,omitempty"`
	Name           string             `json:"name"`
	Category       catalog.Category   `json:"category"`
	Unit           catalog.Unit       `json:"unit"`
	UnitPriceCents int64              `json:"unit_price_cents"`
	Quantity       int                `json:"quantity"`
	MinQuantity    int                `json:"min_quantity"`
	MaxQuantity    int                `json:"max_quantity"`
	Selection      *booking.Selection `json:"selection,omitempty"`
	AddedAt        time.Time          `json:"added_at"`
}

// LineTotalCents is unit price times quantity.
func (i Item) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

func (i Item) allows(qty int) bool {
	min := i.MinQuantity
	if min < 1 {
		min = 1
	}
	return qty >= min && (i.MaxQuantity <= 0 || qty <= i.MaxQuantity)
}

// Discount is a promo applied to the whole cart.
type Discount struct {
	Code             string  `json:"code"`
	PercentOff       float64 `json:"percent_off,omitempty"`
	AmountOffCents   int64   `json:"amount_off_cents,omitempty"`
	MinSubtotalCents int64   `json:"min_subtotal_cents,omitempty"`
	StripeCouponID   string  `json:"stripe_coupon_id,omitempty"`
}

// Validate requires a code and exactly one of percent or amount.
func (d Discount) Validate() error {
	switch {
	case strings.TrimSpace(d.Code) == "":
		return fmt.Errorf("%w: code is required", ErrInvalidDiscount)
	case d.PercentOff != 0 && d.AmountOffCents != 0:
		return fmt.Errorf("%w: percent and amount are exclusive", ErrInvalidDiscount)
	case d.PercentOff < 0 || d.PercentOff > 100:
		return fmt.Errorf("%w: percent must be within (0, 100]", ErrInvalidDiscount)
	case d.AmountOffCents < 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidDiscount)
	case d.PercentOff == 0 && d.AmountOffCents == 0:
		return fmt.Errorf("%w: discount has no value", ErrInvalidDiscount)
	case d.MinSubtotalCents < 0:
		return fmt.Errorf("%w: minimum subtotal must not be negative", ErrInvalidDiscount)
	}
	return nil
}

// AmountCents computes the discount for a subtotal, capped at the subtotal.
// Percentages round half-up to whole cents.
func (d Discount) AmountCents(subtotal int64) int64 {
	if subtotal <= 0 || subtotal < d.MinSubtotalCents {
		return 0
	}
	amount := d.AmountOffCents
	if d.PercentOff > 0 {
		amount = int64(math.Floor(float64(subtotal)*d.PercentOff/100 + 0.5))
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// Totals is derived from the items and discount.
type Totals struct {
	ItemCount     int   `json:"item_count"`
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// Cart is a user's cart.
type Cart struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	Discount  *Discount `json:"discount,omitempty"`
	Totals    Totals    `json:"totals"`
	Currency  string    `json:"currency,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty cart for a user.
func New(userID string) Cart {
	return Cart{UserID: userID, Items: []Item{}}
}

// Item returns the line with the given ID.
func (c Cart) Item(id string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// PackageIDs returns the distinct package IDs in the cart, sorted.
func (c Cart) PackageIDs() []string {
	seen := make(map[string]struct{}, len(c.Items))
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		if _, ok := seen[it.PackageID]; ok {
			continue
		}
		seen[it.PackageID] = struct{}{}
		ids = append(ids, it.PackageID)
	}
	sort.Strings(ids)
	return ids
}

// VenueSelection returns a venue chosen on any line other than exceptItemID.
func (c Cart) VenueSelection(exceptItemID string) (*booking.VenueChoice, bool) {
	for _, it := range c.Items {
		if it.ID == exceptItemID {
			continue
		}
		if v, ok := it.Selection.Venue(); ok {
			return &v, true
		}
	}
	return nil, false
}

// Unselected returns the IDs of lines without a vendor selection.
func (c Cart) Unselected() []string {
	var ids []string
	for _, it := range c.Items {
		if it.Selection == nil {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func (c Cart) clone() Cart {
	out := c
	out.Items = make([]Item, len(c.Items))
	for i, it := range c.Items {
		if it.Selection != nil {
			it.Selection = cloneSelection(it.Selection)
		}
		out.Items[i] = it
	}
	if c.Discount != nil {
		d := *c.Discount
		out.Discount = &d
	}
	return out
}

func cloneSelection(s *booking.Selection) *booking.Selection {
	if s == nil {
		return nil
	}
	cp := *s
	if s.CustomVenue != nil {
		cv := *s.CustomVenue
		cp.CustomVenue = &cv
	}
	return &cp
}

func (c *Cart) index(id string) int {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) recompute() {
	var t Totals
	for _, it := range c.Items {
		t.ItemCount += it.Quantity
		t.SubtotalCents += it.LineTotalCents()
	}
	if c.Discount != nil {
		t.DiscountCents = c.Discount.AmountCents(t.SubtotalCents)
	}
	t.TotalCents = t.SubtotalCents - t.DiscountCents
	if len(c.Items) == 0 {
		c.Currency = ""
	}
	c.Totals = t
}

// Action is a cart mutation understood by Reduce.
type Action interface {
	apply(c *Cart) error
	// Name labels the action in logs and metrics.
	Name() string
}

// Reduce applies a to a copy of c. On error the returned cart is c unchanged.
func Reduce(c Cart, a Action) (Cart, error) {
	next := c.clone()
	if err := a.apply(&next); err != nil {
		return c, err
	}
	next.recompute()
	next.Version++
	return next, nil
}

// AddItem adds a package or merges it into an unselected line of the same package.
type AddItem struct {
	Package  catalog.Package
	Quantity int
	ItemID   string
	At       time.Time
}

func (AddItem) Name() string { return "add_item" }

func (a AddItem) apply(c *Cart) error {
	p := a.Package
	if !p.Active {
		return fmt.Errorf("%w: %s", ErrPackageInactive, p.ID)
	}
	currency := strings.ToLower(p.Currency)
	if c.Currency != "" && currency != c.Currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, currency, c.Currency)
	}
	qty := a.Quantity
	if qty == 0 {
		qty = p.MinQty()
	}

	for i := range c.Items {
		it := &c.Items[i]
		if it.PackageID != p.ID || it.Selection != nil {
			continue
		}
		merged := it.Quantity + qty
		if qty < 0 || !p.AllowsQuantity(merged) {
			return fmt.Errorf("%w: %d", ErrInvalidQuantity, merged)
		}
		it.Quantity = merged
		return nil
	}

	if !p.AllowsQuantity(qty) {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if a.ItemID == "" {
		return ErrMissingItemID
	}
	c.Currency = currency
	c.Items = append(c.Items, Item{
		ID:             a.ItemID,
		PackageID:      p.ID,
		VendorID:       p.VendorID,
		Name:           p.Name,
		Category:       p.Category,
		Unit:           p.Unit,
		UnitPriceCents: p.PriceCents,
		Quantity:       qty,
		MinQuantity:    p.MinQty(),
		MaxQuantity:    p.MaxQuantity,
		AddedAt:        a.At,
	})
	return nil
}

// RemoveItem deletes a line.
type RemoveItem struct {
	ItemID string
}

func (RemoveItem) Name() string { return "remove_item" }

func (a RemoveItem) apply(c *Cart) error {
	i := c.index(a.ItemID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// UpdateQuantity sets a line's quantity within its bounds.
type UpdateQuantity struct {
	ItemID   string
	Quantity int
}

func (UpdateQuantity) Name() string { return "update_quantity" }

func (a UpdateQuantity) apply(c *Cart) error {
	i := c.index(a.ItemID)
	if i < 0 {
		return ErrItemNotFound
	}
	if !c.Items[i].allows(a.Quantity) {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, a.Quantity)
	}
	c.Items[i].Quantity = a.Quantity
	return nil
}

// SetSelection attaches (or with nil, clears) a vendor selection on a line.
type SetSelection struct {
	ItemID    string
	Selection *booking.Selection
}

func (SetSelection) Name() string { return "set_selection" }

func (a SetSelection) apply(c *Cart) error {
	i := c.index(a.ItemID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Selection = cloneSelection(a.Selection)
	if a.Selection != nil && a.Selection.VendorID != "" {
		c.Items[i].VendorID = a.Selection.VendorID
	}
	return nil
}

// ApplyDiscount attaches a promo, replacing any previous one.
type ApplyDiscount struct {
	Discount Discount
}

func (ApplyDiscount) Name() string { return "apply_discount" }

func (a ApplyDiscount) apply(c *Cart) error {
	if err := a.Discount.Validate(); err != nil {
		return err
	}
	var subtotal int64
	for _, it := range c.Items {
		subtotal += it.LineTotalCents()
	}
	if subtotal < a.Discount.MinSubtotalCents {
		return fmt.Errorf("%w: need %d", ErrMinimumNotMet, a.Discount.MinSubtotalCents)
	}
	d := a.Discount
	d.Code = strings.ToUpper(strings.TrimSpace(d.Code))
	c.Discount = &d
	return nil
}

// ClearDiscount removes the promo.
type ClearDiscount struct{}

func (ClearDiscount) Name() string { return "clear_discount" }

func (ClearDiscount) apply(c *Cart) error {
	c.Discount = nil
	return nil
}

// Reprice refreshes every line from current package data. Missing or
// inactive packages fail the whole action. Quantities are clamped to the
// new bounds.
type Reprice struct {
	Packages map[string]catalog.Package
}

func (Reprice) Name() string { return "reprice" }

func (a Reprice) apply(c *Cart) error {
	var missing []string
	for _, id := range c.PackageIDs() {
		if p, ok := a.Packages[id]; !ok || !p.Active {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &UnavailablePackagesError{PackageIDs: missing}
	}

	currency := ""
	for i := range c.Items {
		it := &c.Items[i]
		p := a.Packages[it.PackageID]
		pc := strings.ToLower(p.Currency)
		if currency == "" {
			currency = pc
		} else if pc != currency {
			return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, pc, currency)
		}
		it.Name = p.Name
		it.Category = p.Category
		it.Unit = p.Unit
		it.UnitPriceCents = p.PriceCents
		it.MinQuantity = p.MinQty()
		it.MaxQuantity = p.MaxQuantity
		if p.HasVendor() {
			it.VendorID = p.VendorID
		}
		if it.Quantity < it.MinQuantity {
			it.Quantity = it.MinQuantity
		}
		if it.MaxQuantity > 0 && it.Quantity > it.MaxQuantity {
			it.Quantity = it.MaxQuantity
		}
	}
	c.Currency = currency
	return nil
}

// Clear empties the cart and drops the promo.
type Clear struct{}

func (Clear) Name() string { return "clear" }

func (Clear) apply(c *Cart) error {
	c.Items = []Item{}
	c.Discount = nil
	return nil
}
