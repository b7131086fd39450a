package bookingapi

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/errors"
)

// StartWizard opens a vendor-selection wizard for a cart item. A venue already
// selected on another item becomes the default venue.
func (s *Service) StartWizard(ctx context.Context, userID, cartItemID string) (*booking.Wizard, error) {
	if strings.TrimSpace(cartItemID) == "" {
		return nil, errors.Validation("cart_item_id", "cart_item_id is required")
	}
	c, err := s.cart.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, ok := c.Item(cartItemID)
	if !ok {
		return nil, errors.NotFound("cart item", cartItemID)
	}
	pkg, err := s.catalog.Package(ctx, item.PackageID)
	if err != nil {
		return nil, err
	}

	var def *booking.VenueChoice
	if pkg.Category != catalog.CategoryVenue {
		if v, ok := c.VenueSelection(cartItemID); ok {
			def = v
		}
	}

	w := booking.NewWizard(uuid.NewString(), userID, cartItemID, *pkg, def, s.now().UTC())
	if err := s.saveWizard(ctx, w); err != nil {
		return nil, err
	}
	s.Metrics().RecordWizardTransition(string(w.Step))
	s.Logger().WithContext(ctx).WithField("wizard_id", w.ID).Info("selection wizard started")
	return w, nil
}

// GetWizard loads a wizard owned by userID.
func (s *Service) GetWizard(ctx context.Context, userID, id string) (*booking.Wizard, error) {
	w, ok, err := s.wizards.Load(ctx, id)
	if err != nil {
		return nil, errors.Unavailable("wizard storage unavailable", err)
	}
	if !ok || w.UserID != userID {
		return nil, errors.NotFound("selection", id)
	}
	return w, nil
}

func (s *Service) saveWizard(ctx context.Context, w *booking.Wizard) error {
	if err := s.wizards.Save(ctx, w); err != nil {
		return errors.Unavailable("wizard storage unavailable", err)
	}
	return nil
}

func (s *Service) advance(ctx context.Context, w *booking.Wizard) (*booking.Wizard, error) {
	if err := s.saveWizard(ctx, w); err != nil {
		return nil, err
	}
	s.Metrics().RecordWizardTransition(string(w.Step))
	return w, nil
}

// SubmitEventDetails records the event details. The venue step is skipped for
// venue packages, for a custom default venue, and for a default venue vendor
// that still fits the guests and is free on the date.
func (s *Service) SubmitEventDetails(ctx context.Context, userID, id string, d booking.EventDetails) (*booking.Wizard, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w.Step != booking.StepEventDetails {
		return nil, domainError(booking.ErrWrongStep)
	}
	now := s.now().UTC()
	if err := d.Validate(now); err != nil {
		return nil, domainError(err)
	}

	skip, err := s.skipVenue(ctx, w, d)
	if err != nil {
		return nil, err
	}
	if err := w.SubmitEventDetails(d, skip, now); err != nil {
		return nil, domainError(err)
	}
	return s.advance(ctx, w)
}

func (s *Service) skipVenue(ctx context.Context, w *booking.Wizard, d booking.EventDetails) (bool, error) {
	if w.IsVenuePackage() {
		return true, nil
	}
	def := w.DefaultVenue
	if def == nil {
		return false, nil
	}
	if def.CustomVenue != nil {
		return true, nil
	}
	v, err := s.catalog.Vendor(ctx, def.VenueVendorID)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if !v.IsVenue() {
		return false, nil
	}
	a, err := s.availability(ctx, *v, d.Date, d.GuestCount)
	if err != nil {
		return false, err
	}
	return a.Available, nil
}

// SubmitVenue records the venue. A marketplace venue must be an active venue
// vendor that fits the guests and is free on the event date.
func (s *Service) SubmitVenue(ctx context.Context, userID, id string, choice booking.VenueChoice) (*booking.Wizard, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w.Step != booking.StepVenue {
		return nil, domainError(booking.ErrWrongStep)
	}
	if err := choice.Validate(); err != nil {
		return nil, domainError(err)
	}
	if choice.VenueVendorID != "" {
		v, err := s.catalog.Vendor(ctx, choice.VenueVendorID)
		if err != nil {
			if errors.IsCode(err, errors.CodeNotFound) {
				return nil, errors.Validation("venue_vendor_id", "unknown venue")
			}
			return nil, err
		}
		if !v.IsVenue() {
			return nil, errors.Validation("venue_vendor_id", "vendor is not a venue")
		}
		if err := s.requireAvailable(ctx, "venue_vendor_id", *v, w.EventDetails); err != nil {
			return nil, err
		}
	}
	if err := w.SubmitVenue(choice, s.now().UTC()); err != nil {
		return nil, domainError(err)
	}
	return s.advance(ctx, w)
}

// SubmitVendor records the vendor that will fulfil the item.
func (s *Service) SubmitVendor(ctx context.Context, userID, id, vendorID string) (*booking.Wizard, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w.Step != booking.StepVendor {
		return nil, domainError(booking.ErrWrongStep)
	}
	if strings.TrimSpace(vendorID) == "" {
		return nil, errors.Validation("vendor_id", "vendor_id is required")
	}
	v, err := s.catalog.Vendor(ctx, vendorID)
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return nil, errors.Validation("vendor_id", "unknown vendor")
		}
		return nil, err
	}
	if v.Category != w.Category {
		return nil, errors.Validation("vendor_id", "vendor does not offer "+string(w.Category))
	}
	if w.PackageVendorID != "" && v.ID != w.PackageVendorID {
		return nil, errors.Validation("vendor_id", "package is only offered by its own vendor")
	}
	if err := s.requireAvailable(ctx, "vendor_id", *v, w.EventDetails); err != nil {
		return nil, err
	}
	if err := w.SubmitVendor(v.ID, s.now().UTC()); err != nil {
		return nil, domainError(err)
	}
	return s.advance(ctx, w)
}

func (s *Service) requireAvailable(ctx context.Context, field string, v catalog.Vendor, d *booking.EventDetails) error {
	if d == nil {
		return domainError(booking.ErrWrongStep)
	}
	a, err := s.availability(ctx, v, d.Date, d.GuestCount)
	if err != nil {
		return err
	}
	if !a.Available {
		return errors.Validation(field, "vendor is not available: "+a.Reason).WithDetails("reason", a.Reason)
	}
	return nil
}

// Back returns the wizard to its previous step.
func (s *Service) Back(ctx context.Context, userID, id string) (*booking.Wizard, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := w.Back(s.now().UTC()); err != nil {
		return nil, domainError(err)
	}
	return s.advance(ctx, w)
}

// Apply writes the finished selection onto the cart item and discards the wizard.
func (s *Service) Apply(ctx context.Context, userID, id string) (cart.Cart, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return cart.Cart{}, err
	}
	sel, err := w.Selection()
	if err != nil {
		return cart.Cart{}, domainError(err)
	}
	c, err := s.cart.SetSelection(ctx, userID, w.CartItemID, sel)
	if err != nil {
		return cart.Cart{}, err
	}
	if err := s.wizards.Delete(ctx, w.ID); err != nil {
		s.Logger().WithContext(ctx).WithError(err).WithField("wizard_id", w.ID).Warn("failed to delete applied wizard")
	}
	s.Metrics().RecordWizardTransition("applied")
	return c, nil
}

// CandidateVendors lists the vendors that can be chosen at the wizard's
// current step and are available for its event details.
func (s *Service) CandidateVendors(ctx context.Context, userID, id string) ([]catalog.Vendor, error) {
	w, err := s.GetWizard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w.EventDetails == nil {
		return nil, domainError(booking.ErrWrongStep)
	}

	var pool []catalog.Vendor
	switch w.Step {
	case booking.StepVenue:
		pool, err = s.catalog.VendorsByCategory(ctx, catalog.CategoryVenue, "")
	case booking.StepVendor:
		if w.PackageVendorID != "" {
			var v *catalog.Vendor
			v, err = s.catalog.Vendor(ctx, w.PackageVendorID)
			if v != nil {
				pool = []catalog.Vendor{*v}
			}
		} else {
			pool, err = s.catalog.VendorsByCategory(ctx, w.Category, s.venueCity(ctx, w))
		}
	default:
		return nil, domainError(booking.ErrWrongStep)
	}
	if err != nil {
		return nil, err
	}

	out := make([]catalog.Vendor, 0, len(pool))
	for _, v := range pool {
		a, err := s.availability(ctx, v, w.EventDetails.Date, w.EventDetails.GuestCount)
		if err != nil {
			return nil, err
		}
		if a.Available {
			out = append(out, v)
		}
	}
	return out, nil
}

// venueCity narrows vendor candidates to the chosen venue's city, if known.
func (s *Service) venueCity(ctx context.Context, w *booking.Wizard) string {
	if w.Venue == nil {
		return ""
	}
	if w.Venue.CustomVenue != nil {
		return w.Venue.CustomVenue.City
	}
	v, err := s.catalog.Vendor(ctx, w.Venue.VenueVendorID)
	if err != nil {
		return ""
	}
	return v.City
}
