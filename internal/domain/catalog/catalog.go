// Package catalog defines vendors, packages and browse filters.
package catalog

import (
	"fmt"
	"strings"
	"time"
)

// Category is a wedding-service category.
type Category string

const (
	CategoryVenue          Category = "venue"
	CategoryPhotography    Category = "photography"
	CategoryVideography    Category = "videography"
	CategoryCatering       Category = "catering"
	CategoryFlorist        Category = "florist"
	CategoryMusic          Category = "music"
	CategoryPlanner        Category = "planner"
	CategoryBeauty         Category = "beauty"
	CategoryCake           Category = "cake"
	CategoryAttire         Category = "attire"
	CategoryOfficiant      Category = "officiant"
	CategoryTransportation Category = "transportation"
	CategoryDecor          Category = "decor"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryVenue, CategoryPhotography, CategoryVideography, CategoryCatering,
	CategoryFlorist, CategoryMusic, CategoryPlanner, CategoryBeauty, CategoryCake,
	CategoryAttire, CategoryOfficiant, CategoryTransportation, CategoryDecor,
}

// ParseCategory validates a category name, case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Unit is how a package price scales.
type Unit string

const (
	UnitFlat     Unit = "flat"
	UnitPerGuest Unit = "per_guest"
	UnitPerHour  Unit = "per_hour"
)

func (u Unit) Valid() bool {
	switch u {
	case UnitFlat, UnitPerGuest, UnitPerHour:
		return true
	}
	return false
}

// Vendor is a business offering packages.
type Vendor struct {
	ID              string    `json:"id" yaml:"id"`
	OwnerUserID     string    `json:"owner_user_id,omitempty" yaml:"owner_user_id"`
	Name            string    `json:"name" yaml:"name"`
	Slug            string    `json:"slug" yaml:"slug"`
	Category        Category  `json:"category" yaml:"category"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	City            string    `json:"city" yaml:"city"`
	Region          string    `json:"region,omitempty" yaml:"region"`
	Rating          float64   `json:"rating" yaml:"rating"`
	ReviewCount     int       `json:"review_count" yaml:"review_count"`
	Capacity        int       `json:"capacity,omitempty" yaml:"capacity"`
	MaxEventsPerDay int       `json:"max_events_per_day" yaml:"max_events_per_day"`
	ImagePath       string    `json:"image_path,omitempty" yaml:"image_path"`
	ImageURL        string    `json:"image_url,omitempty" yaml:"-"`
	Active          bool      `json:"active" yaml:"active"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

// EventsPerDay returns the daily booking limit, defaulting to 1.
func (v Vendor) EventsPerDay() int {
	if v.MaxEventsPerDay <= 0 {
		return 1
	}
	return v.MaxEventsPerDay
}

// FitsGuests reports whether the vendor capacity (0 = not applicable) admits guests.
func (v Vendor) FitsGuests(guests int) bool {
	return v.Capacity <= 0 || guests <= v.Capacity
}

// IsVenue reports whether the vendor is itself a venue.
func (v Vendor) IsVenue() bool {
	return v.Category == CategoryVenue
}

// Package is a purchasable offering. Packages without a VendorID are
// marketplace packages fulfilled by any vendor of the category.
type Package struct {
	ID          string    `json:"id" yaml:"id"`
	VendorID    string    `json:"vendor_id" yaml:"vendor_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Category    Category  `json:"category" yaml:"category"`
	PriceCents  int64     `json:"price_cents" yaml:"price_cents"`
	Currency    string    `json:"currency" yaml:"currency"`
	Unit        Unit      `json:"unit" yaml:"unit"`
	MinQuantity int       `json:"min_quantity" yaml:"min_quantity"`
	MaxQuantity int       `json:"max_quantity" yaml:"max_quantity"`
	Includes    []string  `json:"includes,omitempty" yaml:"includes"`
	Featured    bool      `json:"featured" yaml:"featured"`
	ImagePath   string    `json:"image_path,omitempty" yaml:"image_path"`
	ImageURL    string    `json:"image_url,omitempty" yaml:"-"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}

// MinQty is the effective minimum quantity (at least 1).
func (p Package) MinQty() int {
	if p.MinQuantity < 1 {
		return 1
	}
	return p.MinQuantity
}

// HasVendor reports whether the package is tied to one vendor.
func (p Package) HasVendor() bool {
	return p.VendorID != ""
}

// AllowsQuantity reports whether qty is within [MinQty, MaxQuantity] (0 = unbounded).
func (p Package) AllowsQuantity(qty int) bool {
	if qty < p.MinQty() {
		return false
	}
	return p.MaxQuantity <= 0 || qty <= p.MaxQuantity
}

// Validate checks a package definition.
func (p Package) Validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return fmt.Errorf("package id is required")
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("package %s: name is required", p.ID)
	case p.PriceCents < 0:
		return fmt.Errorf("package %s: price must not be negative", p.ID)
	case len(p.Currency) != 3:
		return fmt.Errorf("package %s: currency must be a 3-letter code", p.ID)
	case !p.Unit.Valid():
		return fmt.Errorf("package %s: unknown unit %q", p.ID, p.Unit)
	case p.MaxQuantity > 0 && p.MaxQuantity < p.MinQty():
		return fmt.Errorf("package %s: max_quantity below min_quantity", p.ID)
	}
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return fmt.Errorf("package %s: %w", p.ID, err)
	}
	return nil
}

// Validate checks a vendor definition.
func (v Vendor) Validate() error {
	switch {
	case strings.TrimSpace(v.ID) == "":
		return fmt.Errorf("vendor id is required")
	case strings.TrimSpace(v.Name) == "":
		return fmt.Errorf("vendor %s: name is required", v.ID)
	case v.Capacity < 0:
		return fmt.Errorf("vendor %s: capacity must not be negative", v.ID)
	}
	if _, err := ParseCategory(string(v.Category)); err != nil {
		return fmt.Errorf("vendor %s: %w", v.ID, err)
	}
	return nil
}

// Sort orders for package listings.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortNewest    = "newest"
	SortFeatured  = "featured"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ClampLimit bounds a page size to [1, MaxLimit], defaulting to DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// PackageFilter narrows a package listing.
type PackageFilter struct {
	Category      Category
	VendorID      string
	City          string
	Query         string
	MinPriceCents int64
	MaxPriceCents int64
	Featured      bool
	Sort          string
	Limit         int
	Offset        int
}

// VendorFilter narrows a vendor listing.
type VendorFilter struct {
	Category Category
	City     string
	Query    string
	Limit    int
	Offset   int
}

// VendorDetail is a vendor with its active packages.
type VendorDetail struct {
	Vendor
	Packages []Package `json:"packages"`
}
