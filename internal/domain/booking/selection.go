// Package booking defines event selections, bookings, availability and timeline events.
package booking

import (
	"fmt"
	"strings"
	"time"
)

// EventType classifies the event a service is booked for.
type EventType string

const (
	EventCeremony   EventType = "ceremony"
	EventReception  EventType = "reception"
	EventRehearsal  EventType = "rehearsal"
	EventEngagement EventType = "engagement"
	EventOther      EventType = "other"
)

func (t EventType) Valid() bool {
	switch t {
	case EventCeremony, EventReception, EventRehearsal, EventEngagement, EventOther:
		return true
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	MinGuests = 1
	MaxGuests = 2000
)

// FieldError reports an invalid field value.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fieldErr(field, format string, args ...interface{}) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// EventDetails is the first wizard step.
type EventDetails struct {
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	GuestCount int       `json:"guest_count"`
	EventType  EventType `json:"event_type"`
}

// Validate checks the details against today's date in the caller's clock.
func (d EventDetails) Validate(now time.Time) error {
	date, err := time.Parse(DateLayout, strings.TrimSpace(d.Date))
	if err != nil {
		return fieldErr("date", "must be YYYY-MM-DD")
	}
	today, _ := time.Parse(DateLayout, now.Format(DateLayout))
	if date.Before(today) {
		return fieldErr("date", "must be today or later")
	}
	start, err := time.Parse(TimeLayout, d.StartTime)
	if err != nil {
		return fieldErr("start_time", "must be HH:MM")
	}
	end, err := time.Parse(TimeLayout, d.EndTime)
	if err != nil {
		return fieldErr("end_time", "must be HH:MM")
	}
	if !end.After(start) {
		return fieldErr("end_time", "must be after start_time")
	}
	if d.GuestCount < MinGuests || d.GuestCount > MaxGuests {
		return fieldErr("guest_count", "must be between %d and %d", MinGuests, MaxGuests)
	}
	if !d.EventType.Valid() {
		return fieldErr("event_type", "unknown event type %q", d.EventType)
	}
	return nil
}

// CustomVenue is a venue not listed in the marketplace.
type CustomVenue struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

func (c CustomVenue) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fieldErr("custom_venue.name", "is required")
	}
	if strings.TrimSpace(c.Address) == "" {
		return fieldErr("custom_venue.address", "is required")
	}
	if strings.TrimSpace(c.City) == "" {
		return fieldErr("custom_venue.city", "is required")
	}
	return nil
}

// VenueChoice is either a marketplace venue vendor or a custom venue.
type VenueChoice struct {
	VenueVendorID string       `json:"venue_vendor_id,omitempty"`
	CustomVenue   *CustomVenue `json:"custom_venue,omitempty"`
}

// Validate requires exactly one of the two forms.
func (v VenueChoice) Validate() error {
	hasVendor := strings.TrimSpace(v.VenueVendorID) != ""
	switch {
	case hasVendor && v.CustomVenue != nil:
		return fieldErr("venue", "choose either venue_vendor_id or custom_venue")
	case !hasVendor && v.CustomVenue == nil:
		return fieldErr("venue", "venue_vendor_id or custom_venue is required")
	case v.CustomVenue != nil:
		return v.CustomVenue.Validate()
	}
	return nil
}

// IsZero reports whether no venue has been chosen.
func (v VenueChoice) IsZero() bool {
	return v.VenueVendorID == "" && v.CustomVenue == nil
}

// Selection is the result of the vendor-selection wizard attached to a cart item.
type Selection struct {
	EventDetails
	VenueChoice
	VendorID string `json:"vendor_id"`
}

// Venue returns the venue part of the selection, if any.
func (s *Selection) Venue() (VenueChoice, bool) {
	if s == nil || s.VenueChoice.IsZero() {
		return VenueChoice{}, false
	}
	return s.VenueChoice, true
}

// Equal reports whether two selections describe the same booking.
func (s *Selection) Equal(o *Selection) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	if s.EventDetails != o.EventDetails || s.VendorID != o.VendorID || s.VenueVendorID != o.VenueVendorID {
		return false
	}
	if (s.CustomVenue == nil) != (o.CustomVenue == nil) {
		return false
	}
	return s.CustomVenue == nil || *s.CustomVenue == *o.CustomVenue
}

// EventDate parses the selection date.
func (s Selection) EventDate() (time.Time, error) {
	return time.Parse(DateLayout, s.Date)
}
