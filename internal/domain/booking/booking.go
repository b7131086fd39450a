package booking

import (
	"sort"
	"strings"
	"time"
)

// Status is a booking lifecycle state.
type Status string

const (
	StatusHeld      Status = "held"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Booking reserves a vendor for an event date.
type Booking struct {
	ID            string     `json:"id" db:"id"`
	OrderID       string     `json:"order_id" db:"order_id"`
	UserID        string     `json:"user_id" db:"user_id"`
	VendorID      string     `json:"vendor_id" db:"vendor_id"`
	PackageID     string     `json:"package_id" db:"package_id"`
	EventDate     string     `json:"event_date" db:"event_date"`
	StartTime     string     `json:"start_time" db:"start_time"`
	EndTime       string     `json:"end_time" db:"end_time"`
	GuestCount    int        `json:"guest_count" db:"guest_count"`
	Status        Status     `json:"status" db:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" db:"hold_expires_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Occupies reports whether the booking consumes vendor capacity at now.
// Expired holds are ignored.
func (b Booking) Occupies(now time.Time) bool {
	switch b.Status {
	case StatusConfirmed:
		return true
	case StatusHeld:
		return b.HoldExpiresAt == nil || b.HoldExpiresAt.After(now)
	}
	return false
}

// HoldRequest is one item to hold for an order.
type HoldRequest struct {
	VendorID  string
	PackageID string
	Selection Selection
}

// Unavailability reasons.
const (
	ReasonBlackout    = "blackout"
	ReasonFullyBooked = "fully_booked"
	ReasonCapacity    = "capacity"
	ReasonInactive    = "inactive"
)

// Availability is the answer to an availability check.
type Availability struct {
	VendorID  string `json:"vendor_id"`
	Date      string `json:"date"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// AvailabilityInput carries the facts an availability decision depends on.
type AvailabilityInput struct {
	Active       bool
	Capacity     int
	EventsPerDay int
	Guests       int
	Blackout     bool
	Occupied     int
}

// Evaluate decides availability. Checks run in order: inactive, blackout, capacity, fully booked.
func Evaluate(in AvailabilityInput) (bool, string) {
	perDay := in.EventsPerDay
	if perDay <= 0 {
		perDay = 1
	}
	switch {
	case !in.Active:
		return false, ReasonInactive
	case in.Blackout:
		return false, ReasonBlackout
	case in.Guests > 0 && in.Capacity > 0 && in.Guests > in.Capacity:
		return false, ReasonCapacity
	case in.Occupied >= perDay:
		return false, ReasonFullyBooked
	}
	return true, ""
}

// TimelineEvent is an entry on the couple's wedding-day timeline.
type TimelineEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Location    string    `json:"location,omitempty"`
	VendorID    string    `json:"vendor_id,omitempty"`
	Overlaps    []string  `json:"overlaps,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const MaxTitleLength = 120

// Validate checks title length and time ordering.
func (e TimelineEvent) Validate() error {
	title := strings.TrimSpace(e.Title)
	if title == "" || len([]rune(title)) > MaxTitleLength {
		return fieldErr("title", "must be 1 to %d characters", MaxTitleLength)
	}
	if e.StartsAt.IsZero() {
		return fieldErr("starts_at", "is required")
	}
	if !e.EndsAt.After(e.StartsAt) {
		return fieldErr("ends_at", "must be after starts_at")
	}
	return nil
}

// ArrangeTimeline sorts events by start (ties by title) and fills Overlaps.
// Events touching end-to-start do not overlap.
func ArrangeTimeline(events []TimelineEvent) []TimelineEvent {
	out := make([]TimelineEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].Title < out[j].Title
	})

	for i := range out {
		out[i].Overlaps = nil
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if !out[j].StartsAt.Before(out[i].EndsAt) {
				break
			}
			out[i].Overlaps = append(out[i].Overlaps, out[j].ID)
			out[j].Overlaps = append(out[j].Overlaps, out[i].ID)
		}
	}
	return out
}
