package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/altarlane/marketplace/internal/domain/catalog"
)

// Step is a vendor-selection wizard step.
type Step string

const (
	StepEventDetails Step = "event_details"
	StepVenue        Step = "venue"
	StepVendor       Step = "vendor"
	StepReview       Step = "review"
)

var stepOrder = []Step{StepEventDetails, StepVenue, StepVendor, StepReview}

var (
	// ErrWrongStep is returned when an action does not match the current step.
	ErrWrongStep = errors.New("action not allowed at current step")
	// ErrAtFirstStep is returned by Back on the first step.
	ErrAtFirstStep = errors.New("already at first step")
)

// Wizard is the persisted state of one vendor-selection flow.
type Wizard struct {
	ID              string           `json:"id"`
	UserID          string           `json:"user_id"`
	CartItemID      string           `json:"cart_item_id"`
	PackageID       string           `json:"package_id"`
	PackageVendorID string           `json:"package_vendor_id,omitempty"`
	Category        catalog.Category `json:"category"`
	DefaultVenue    *VenueChoice     `json:"default_venue,omitempty"`
	Step            Step             `json:"step"`
	SkipVenue       bool             `json:"skip_venue"`
	EventDetails    *EventDetails    `json:"event_details,omitempty"`
	Venue           *VenueChoice     `json:"venue,omitempty"`
	VendorID        string           `json:"vendor_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// NewWizard starts a wizard at the event-details step.
func NewWizard(id, userID, cartItemID string, pkg catalog.Package, defaultVenue *VenueChoice, now time.Time) *Wizard {
	return &Wizard{
		ID:              id,
		UserID:          userID,
		CartItemID:      cartItemID,
		PackageID:       pkg.ID,
		PackageVendorID: pkg.VendorID,
		Category:        pkg.Category,
		DefaultVenue:    defaultVenue,
		Step:            StepEventDetails,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// IsVenuePackage reports whether the booked package is itself a venue.
func (w *Wizard) IsVenuePackage() bool {
	return w.Category == catalog.CategoryVenue
}

func (w *Wizard) skipped(s Step) bool {
	return s == StepVenue && w.SkipVenue
}

func (w *Wizard) next(s Step) Step {
	for i, st := range stepOrder {
		if st != s {
			continue
		}
		for _, cand := range stepOrder[i+1:] {
			if !w.skipped(cand) {
				return cand
			}
		}
	}
	return StepReview
}

func (w *Wizard) prev(s Step) (Step, bool) {
	for i, st := range stepOrder {
		if st != s {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			if !w.skipped(stepOrder[j]) {
				return stepOrder[j], true
			}
		}
	}
	return "", false
}

func (w *Wizard) expect(s Step) error {
	if w.Step != s {
		return fmt.Errorf("%w: at %s, expected %s", ErrWrongStep, w.Step, s)
	}
	return nil
}

// SubmitEventDetails records validated details and advances.
// skipVenue is decided by the caller: a venue package, or a still-valid default venue.
func (w *Wizard) SubmitEventDetails(d EventDetails, skipVenue bool, now time.Time) error {
	if err := w.expect(StepEventDetails); err != nil {
		return err
	}
	if err := d.Validate(now); err != nil {
		return err
	}
	w.EventDetails = &d
	w.SkipVenue = skipVenue
	switch {
	case w.IsVenuePackage():
		w.Venue = nil
	case skipVenue && w.DefaultVenue != nil:
		v := *w.DefaultVenue
		w.Venue = &v
	}
	w.Step = w.next(StepEventDetails)
	w.UpdatedAt = now
	return nil
}

// SubmitVenue records a caller-verified venue and advances.
func (w *Wizard) SubmitVenue(v VenueChoice, now time.Time) error {
	if err := w.expect(StepVenue); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	w.Venue = &v
	w.Step = w.next(StepVenue)
	w.UpdatedAt = now
	return nil
}

// SubmitVendor records a caller-verified vendor and advances to review.
func (w *Wizard) SubmitVendor(vendorID string, now time.Time) error {
	if err := w.expect(StepVendor); err != nil {
		return err
	}
	if vendorID == "" {
		return fieldErr("vendor_id", "is required")
	}
	if w.PackageVendorID != "" && vendorID != w.PackageVendorID {
		return fieldErr("vendor_id", "must be the package's vendor")
	}
	w.VendorID = vendorID
	w.Step = w.next(StepVendor)
	w.UpdatedAt = now
	return nil
}

// Back returns to the previous non-skipped step.
func (w *Wizard) Back(now time.Time) error {
	prev, ok := w.prev(w.Step)
	if !ok {
		return ErrAtFirstStep
	}
	w.Step = prev
	w.UpdatedAt = now
	return nil
}

// Selection builds the final selection. Only valid at review.
func (w *Wizard) Selection() (*Selection, error) {
	if err := w.expect(StepReview); err != nil {
		return nil, err
	}
	if w.EventDetails == nil || w.VendorID == "" {
		return nil, fmt.Errorf("%w: incomplete wizard", ErrWrongStep)
	}
	sel := &Selection{EventDetails: *w.EventDetails, VendorID: w.VendorID}
	switch {
	case w.IsVenuePackage():
		sel.VenueVendorID = w.VendorID
	case w.Venue != nil:
		sel.VenueChoice = *w.Venue
	}
	return sel, nil
}
