// Package supabase provides booking, blackout and timeline persistence over PostgREST.
package supabase

import (
	"time"

	"github.com/altarlane/marketplace/internal/domain/booking"
)

// Booking is a row of the bookings table. Postgres time columns come back as
// HH:MM:SS and are trimmed to HH:MM.
type Booking struct {
	ID            string     `json:"id"`
	OrderID       string     `json:"order_id"`
	UserID        string     `json:"user_id"`
	VendorID      string     `json:"vendor_id"`
	PackageID     string     `json:"package_id"`
	EventDate     string     `json:"event_date"`
	StartTime     string     `json:"start_time"`
	EndTime       string     `json:"end_time"`
	GuestCount    int        `json:"guest_count"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (b Booking) ToDomain() booking.Booking {
	return booking.Booking{
		ID:            b.ID,
		OrderID:       b.OrderID,
		UserID:        b.UserID,
		VendorID:      b.VendorID,
		PackageID:     b.PackageID,
		EventDate:     b.EventDate,
		StartTime:     clock(b.StartTime),
		EndTime:       clock(b.EndTime),
		GuestCount:    b.GuestCount,
		Status:        booking.Status(b.Status),
		HoldExpiresAt: b.HoldExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func BookingFromDomain(b booking.Booking) Booking {
	return Booking{
		ID:            b.ID,
		OrderID:       b.OrderID,
		UserID:        b.UserID,
		VendorID:      b.VendorID,
		PackageID:     b.PackageID,
		EventDate:     b.EventDate,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		GuestCount:    b.GuestCount,
		Status:        string(b.Status),
		HoldExpiresAt: b.HoldExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func clock(s string) string {
	if len(s) > 5 {
		return s[:5]
	}
	return s
}

// Blackout is a row of the vendor_blackouts table.
type Blackout struct {
	VendorID string `json:"vendor_id"`
	Date     string `json:"date"`
	Reason   string `json:"reason,omitempty"`
}

// TimelineEvent is a row of the timeline_events table.
type TimelineEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Location    string    `json:"location"`
	VendorID    *string   `json:"vendor_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e TimelineEvent) ToDomain() booking.TimelineEvent {
	out := booking.TimelineEvent{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
		Location:    e.Location,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.VendorID != nil {
		out.VendorID = *e.VendorID
	}
	return out
}

func TimelineEventFromDomain(e booking.TimelineEvent) TimelineEvent {
	row := TimelineEvent{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		StartsAt:    e.StartsAt.UTC(),
		EndsAt:      e.EndsAt.UTC(),
		Location:    e.Location,
		CreatedAt:   e.CreatedAt.UTC(),
		UpdatedAt:   e.UpdatedAt.UTC(),
	}
	if e.VendorID != "" {
		v := e.VendorID
		row.VendorID = &v
	}
	return row
}
