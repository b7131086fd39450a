// Package bookingapi implements the vendor-selection wizard, availability,
// booking holds and the couple's timeline.
package bookingapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "booking"
	ServiceName = "Booking Service"
	Version     = "1.0.0"
)

// Store persists bookings and answers availability questions.
type Store interface {
	IsBlackout(ctx context.Context, vendorID, date string) (bool, error)
	CountActive(ctx context.Context, vendorID, date string, now time.Time) (int, error)
	InsertHold(ctx context.Context, b *booking.Booking, perDay int, now time.Time) (bool, error)
	SetOrderStatus(ctx context.Context, orderID string, from []booking.Status, to booking.Status, now time.Time) (int, error)
	CancelBookings(ctx context.Context, ids []string, now time.Time) error
	ListByUser(ctx context.Context, userID string) ([]booking.Booking, error)
	ListByOrder(ctx context.Context, orderID string) ([]booking.Booking, error)
	HasConfirmed(ctx context.Context, userID, vendorID string) (bool, error)
}

// TimelineStore persists timeline events.
type TimelineStore interface {
	ListTimeline(ctx context.Context, userID string) ([]booking.TimelineEvent, error)
	GetTimelineEvent(ctx context.Context, id string) (*booking.TimelineEvent, error)
	CreateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error
	UpdateTimelineEvent(ctx context.Context, e *booking.TimelineEvent) error
	DeleteTimelineEvent(ctx context.Context, id string) error
}

// WizardStore persists in-progress wizards.
type WizardStore interface {
	Load(ctx context.Context, id string) (*booking.Wizard, bool, error)
	Save(ctx context.Context, w *booking.Wizard) error
	Delete(ctx context.Context, id string) error
}

// Catalog resolves vendors and packages.
type Catalog interface {
	Vendor(ctx context.Context, id string) (*catalog.Vendor, error)
	Package(ctx context.Context, id string) (*catalog.Package, error)
	VendorsByCategory(ctx context.Context, category catalog.Category, city string) ([]catalog.Vendor, error)
}

// Cart is the slice of the cart service the wizard writes to.
type Cart interface {
	Get(ctx context.Context, userID string) (cart.Cart, error)
	SetSelection(ctx context.Context, userID, itemID string, sel *booking.Selection) (cart.Cart, error)
}

// Config configures the booking service.
type Config struct {
	Store    Store
	Timeline TimelineStore
	Wizards  WizardStore
	Catalog  Catalog
	Cart     Cart
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
	Router   *mux.Router
	Now      func() time.Time
}

// Service implements the booking service.
type Service struct {
	*commonservice.BaseService
	store    Store
	timeline TimelineStore
	wizards  WizardStore
	catalog  Catalog
	cart     Cart
	now      func() time.Time
}

// New creates the booking service and registers its routes.
func New(cfg Config) (*Service, error) {
	switch {
	case cfg.Store == nil:
		return nil, fmt.Errorf("booking: store is required")
	case cfg.Timeline == nil:
		return nil, fmt.Errorf("booking: timeline store is required")
	case cfg.Wizards == nil:
		return nil, fmt.Errorf("booking: wizard store is required")
	case cfg.Catalog == nil || cfg.Cart == nil:
		return nil, fmt.Errorf("booking: catalog and cart are required")
	}
	base := commonservice.NewBase(&commonservice.BaseConfig{
		ID:      ServiceID,
		Name:    ServiceName,
		Version: Version,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		Router:  cfg.Router,
	})
	s := &Service{
		BaseService: base,
		store:       cfg.Store,
		timeline:    cfg.Timeline,
		wizards:     cfg.Wizards,
		catalog:     cfg.Catalog,
		cart:        cfg.Cart,
		now:         cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerRoutes()
	return s, nil
}

// CheckAvailability reports whether a vendor can take an event on date.
// guests of 0 skips the capacity check.
func (s *Service) CheckAvailability(ctx context.Context, vendorID, date string, guests int) (*booking.Availability, error) {
	if _, err := time.Parse(booking.DateLayout, date); err != nil {
		return nil, errors.Validation("date", "must be YYYY-MM-DD")
	}
	if guests < 0 {
		return nil, errors.Validation("guests", "must not be negative")
	}
	v, err := s.catalog.Vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return s.availability(ctx, *v, date, guests)
}

func (s *Service) availability(ctx context.Context, v catalog.Vendor, date string, guests int) (*booking.Availability, error) {
	in := booking.AvailabilityInput{
		Active:       v.Active,
		Capacity:     v.Capacity,
		EventsPerDay: v.EventsPerDay(),
		Guests:       guests,
	}
	if v.Active {
		blocked, err := s.store.IsBlackout(ctx, v.ID, date)
		if err != nil {
			return nil, commonservice.StoreError(err, "blackout", v.ID)
		}
		in.Blackout = blocked
		if !blocked {
			n, err := s.store.CountActive(ctx, v.ID, date, s.now())
			if err != nil {
				return nil, commonservice.StoreError(err, "bookings", v.ID)
			}
			in.Occupied = n
		}
	}
	ok, reason := booking.Evaluate(in)
	s.Metrics().RecordAvailabilityCheck(ok, reason)
	return &booking.Availability{VendorID: v.ID, Date: date, Available: ok, Reason: reason}, nil
}

// PlaceHolds holds every requested vendor for an order. If any item cannot be
// held, the holds already placed are cancelled and a Conflict is returned.
func (s *Service) PlaceHolds(ctx context.Context, orderID, userID string, items []booking.HoldRequest, expiresAt time.Time) ([]booking.Booking, error) {
	now := s.now().UTC()
	exp := expiresAt.UTC()
	placed := make([]booking.Booking, 0, len(items))

	fail := func(err error) ([]booking.Booking, error) {
		if len(placed) > 0 {
			ids := make([]string, 0, len(placed))
			for _, b := range placed {
				ids = append(ids, b.ID)
			}
			if cerr := s.store.CancelBookings(ctx, ids, now); cerr != nil {
				s.Logger().WithContext(ctx).WithError(cerr).WithField("order_id", orderID).Error("failed to roll back holds")
			}
		}
		return nil, err
	}

	for _, item := range items {
		sel := item.Selection
		v, err := s.catalog.Vendor(ctx, item.VendorID)
		if err != nil {
			return fail(err)
		}
		in := booking.AvailabilityInput{Active: v.Active, Capacity: v.Capacity, EventsPerDay: v.EventsPerDay(), Guests: sel.GuestCount}
		if v.Active {
			blocked, err := s.store.IsBlackout(ctx, v.ID, sel.Date)
			if err != nil {
				return fail(commonservice.StoreError(err, "blackout", v.ID))
			}
			in.Blackout = blocked
		}
		if ok, reason := booking.Evaluate(in); !ok {
			return fail(unavailable(v.ID, sel.Date, reason))
		}

		b := booking.Booking{
			ID:            uuid.NewString(),
			OrderID:       orderID,
			UserID:        userID,
			VendorID:      v.ID,
			PackageID:     item.PackageID,
			EventDate:     sel.Date,
			StartTime:     sel.StartTime,
			EndTime:       sel.EndTime,
			GuestCount:    sel.GuestCount,
			Status:        booking.StatusHeld,
			HoldExpiresAt: &exp,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		ok, err := s.store.InsertHold(ctx, &b, v.EventsPerDay(), now)
		if err != nil {
			return fail(commonservice.StoreError(err, "booking", b.ID))
		}
		if !ok {
			return fail(unavailable(v.ID, sel.Date, booking.ReasonFullyBooked))
		}
		placed = append(placed, b)
	}

	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"order_id": orderID,
		"holds":    len(placed),
	}).Info("booking holds placed")
	return placed, nil
}

func unavailable(vendorID, date, reason string) error {
	return errors.Conflict("vendor is not available on "+date).
		WithDetails("vendor_id", vendorID).
		WithDetails("reason", reason)
}

// ConfirmOrder confirms an order's held bookings.
func (s *Service) ConfirmOrder(ctx context.Context, orderID string) (int, error) {
	n, err := s.store.SetOrderStatus(ctx, orderID, []booking.Status{booking.StatusHeld}, booking.StatusConfirmed, s.now())
	if err != nil {
		return 0, commonservice.StoreError(err, "bookings", orderID)
	}
	return n, nil
}

// ReleaseOrder moves an order's held bookings to expired or cancelled.
func (s *Service) ReleaseOrder(ctx context.Context, orderID string, status booking.Status) (int, error) {
	if status != booking.StatusExpired && status != booking.StatusCancelled {
		return 0, errors.InvalidInput(fmt.Sprintf("cannot release bookings to %q", status))
	}
	n, err := s.store.SetOrderStatus(ctx, orderID, []booking.Status{booking.StatusHeld}, status, s.now())
	if err != nil {
		return 0, commonservice.StoreError(err, "bookings", orderID)
	}
	return n, nil
}

// ListBookings lists a user's bookings.
func (s *Service) ListBookings(ctx context.Context, userID string) ([]booking.Booking, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "bookings", "")
	}
	return out, nil
}

// OrderBookings lists the bookings placed for an order.
func (s *Service) OrderBookings(ctx context.Context, orderID string) ([]booking.Booking, error) {
	out, err := s.store.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, commonservice.StoreError(err, "bookings", orderID)
	}
	return out, nil
}

// HasConfirmedBooking reports whether the user has a confirmed booking with the vendor.
func (s *Service) HasConfirmedBooking(ctx context.Context, userID, vendorID string) (bool, error) {
	if strings.TrimSpace(vendorID) == "" {
		return false, nil
	}
	ok, err := s.store.HasConfirmed(ctx, userID, vendorID)
	if err != nil {
		return false, commonservice.StoreError(err, "bookings", "")
	}
	return ok, nil
}

// domainError maps booking domain errors onto service errors.
func domainError(err error) error {
	var fe *booking.FieldError
	switch {
	case err == nil:
		return nil
	case stderrors.As(err, &fe):
		return errors.Validation(fe.Field, fe.Error())
	case stderrors.Is(err, booking.ErrWrongStep), stderrors.Is(err, booking.ErrAtFirstStep):
		return errors.Conflict(err.Error())
	}
	if se := errors.GetServiceError(err); se != nil {
		return se
	}
	return errors.Internal("booking operation failed", err)
}
