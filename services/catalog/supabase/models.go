// Package supabase provides catalog-specific database operations.
package supabase

import (
	"time"

	"github.com/altarlane/marketplace/internal/domain/catalog"
)

// Vendor is a row of the vendors table.
type Vendor struct {
	ID              string     `json:"id"`
	OwnerUserID     *string    `json:"owner_user_id,omitempty"`
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Category        string     `json:"category"`
	Description     string     `json:"description"`
	City            string     `json:"city"`
	Region          string     `json:"region"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"review_count"`
	Capacity        int        `json:"capacity"`
	MaxEventsPerDay int        `json:"max_events_per_day"`
	ImagePath       string     `json:"image_path"`
	Active          bool       `json:"active"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// Package is a row of the packages table.
type Package struct {
	ID          string     `json:"id"`
	VendorID    *string    `json:"vendor_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	PriceCents  int64      `json:"price_cents"`
	Currency    string     `json:"currency"`
	Unit        string     `json:"unit"`
	MinQuantity int        `json:"min_quantity"`
	MaxQuantity int        `json:"max_quantity"`
	Includes    []string   `json:"includes"`
	Featured    bool       `json:"featured"`
	ImagePath   string     `json:"image_path"`
	Active      bool       `json:"active"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (v Vendor) ToDomain() catalog.Vendor {
	out := catalog.Vendor{
		ID:              v.ID,
		Name:            v.Name,
		Slug:            v.Slug,
		Category:        catalog.Category(v.Category),
		Description:     v.Description,
		City:            v.City,
		Region:          v.Region,
		Rating:          v.Rating,
		ReviewCount:     v.ReviewCount,
		Capacity:        v.Capacity,
		MaxEventsPerDay: v.MaxEventsPerDay,
		ImagePath:       v.ImagePath,
		Active:          v.Active,
		CreatedAt:       deref(v.CreatedAt),
		UpdatedAt:       deref(v.UpdatedAt),
	}
	if v.OwnerUserID != nil {
		out.OwnerUserID = *v.OwnerUserID
	}
	return out
}

// VendorFromDomain converts a domain vendor into a row. Timestamps are left to the database.
func VendorFromDomain(v catalog.Vendor) Vendor {
	row := Vendor{
		ID:              v.ID,
		Name:            v.Name,
		Slug:            v.Slug,
		Category:        string(v.Category),
		Description:     v.Description,
		City:            v.City,
		Region:          v.Region,
		Rating:          v.Rating,
		ReviewCount:     v.ReviewCount,
		Capacity:        v.Capacity,
		MaxEventsPerDay: v.EventsPerDay(),
		ImagePath:       v.ImagePath,
		Active:          v.Active,
	}
	if v.OwnerUserID != "" {
		owner := v.OwnerUserID
		row.OwnerUserID = &owner
	}
	return row
}

func (p Package) ToDomain() catalog.Package {
	out := catalog.Package{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    catalog.Category(p.Category),
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Unit:        catalog.Unit(p.Unit),
		MinQuantity: p.MinQuantity,
		MaxQuantity: p.MaxQuantity,
		Includes:    p.Includes,
		Featured:    p.Featured,
		ImagePath:   p.ImagePath,
		Active:      p.Active,
		CreatedAt:   deref(p.CreatedAt),
		UpdatedAt:   deref(p.UpdatedAt),
	}
	if p.VendorID != nil {
		out.VendorID = *p.VendorID
	}
	return out
}

// PackageFromDomain converts a domain package into a row.
func PackageFromDomain(p catalog.Package) Package {
	row := Package{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Unit:        string(p.Unit),
		MinQuantity: p.MinQty(),
		MaxQuantity: p.MaxQuantity,
		Includes:    p.Includes,
		Featured:    p.Featured,
		ImagePath:   p.ImagePath,
		Active:      p.Active,
	}
	if row.Includes == nil {
		row.Includes = []string{}
	}
	if p.VendorID != "" {
		vendor := p.VendorID
		row.VendorID = &vendor
	}
	return row
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
