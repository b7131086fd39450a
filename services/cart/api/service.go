// Package cartapi implements the shopping cart service.
package cartapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/cache"
	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	cartsupabase "github.com/altarlane/marketplace/services/cart/supabase"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "cart"
	ServiceName = "Cart Service"
	Version     = "1.0.0"
)

// Store persists carts.
type Store interface {
	Load(ctx context.Context, userID string) (cart.Cart, error)
	Update(ctx context.Context, userID string, fn func(cart.Cart) (cart.Cart, error)) (cart.Cart, error)
}

// Catalog resolves packages, including inactive ones.
type Catalog interface {
	Package(ctx context.Context, id string) (*catalog.Package, error)
	GetPackages(ctx context.Context, ids []string) (map[string]catalog.Package, error)
}

// PromoStore looks up promo codes.
type PromoStore interface {
	GetPromo(ctx context.Context, code string) (*cartsupabase.PromoCode, error)
}

// Config configures the cart service.
type Config struct {
	Store   Store
	Catalog Catalog
	Promos  PromoStore
	Logger  *logging.Logger
	Metrics *metrics.Metrics
	Router  *mux.Router
	Now     func() time.Time
	NewID   func() string
}

// Service implements the cart service.
type Service struct {
	*commonservice.BaseService
	store   Store
	catalog Catalog
	promos  PromoStore
	now     func() time.Time
	newID   func() string
}

// New creates the cart service and registers its routes.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Catalog == nil || cfg.Promos == nil {
		return nil, fmt.Errorf("cart: store, catalog and promos are required")
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
		catalog:     cfg.Catalog,
		promos:      cfg.Promos,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.registerRoutes()
	return s, nil
}

// Get returns the user's cart.
func (s *Service) Get(ctx context.Context, userID string) (cart.Cart, error) {
	c, err := s.store.Load(ctx, userID)
	if err != nil {
		return cart.Cart{}, errors.Unavailable("cart storage unavailable", err)
	}
	return c, nil
}

// GetItem returns one line of the user's cart.
func (s *Service) GetItem(ctx context.Context, userID, itemID string) (cart.Item, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Item{}, err
	}
	it, ok := c.Item(itemID)
	if !ok {
		return cart.Item{}, errors.NotFound("cart item", itemID)
	}
	return it, nil
}

// AddItem adds qty of a package. A zero qty means the package minimum.
func (s *Service) AddItem(ctx context.Context, userID, packageID string, qty int) (cart.Cart, error) {
	if strings.TrimSpace(packageID) == "" {
		return cart.Cart{}, errors.Validation("package_id", "package_id is required")
	}
	pkg, err := s.catalog.Package(ctx, packageID)
	if err != nil {
		return cart.Cart{}, err
	}
	return s.apply(ctx, userID, cart.AddItem{Package: *pkg, Quantity: qty, ItemID: s.newID(), At: s.now().UTC()})
}

// UpdateQuantity sets a line's quantity.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (cart.Cart, error) {
	return s.apply(ctx, userID, cart.UpdateQuantity{ItemID: itemID, Quantity: qty})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (cart.Cart, error) {
	return s.apply(ctx, userID, cart.RemoveItem{ItemID: itemID})
}

// SetSelection attaches a vendor selection to a line.
func (s *Service) SetSelection(ctx context.Context, userID, itemID string, sel *booking.Selection) (cart.Cart, error) {
	return s.apply(ctx, userID, cart.SetSelection{ItemID: itemID, Selection: sel})
}

// ApplyPromo validates a promo code and attaches it.
func (s *Service) ApplyPromo(ctx context.Context, userID, code string) (cart.Cart, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return cart.Cart{}, errors.Validation("code", "promo code is required")
	}
	promo, err := s.promos.GetPromo(ctx, code)
	if err != nil {
		if stderrors.Is(err, database.ErrNotFound) {
			return cart.Cart{}, errors.Validation("code", "unknown promo code")
		}
		return cart.Cart{}, commonservice.StoreError(err, "promo code", code)
	}
	if !promo.Usable(s.now()) {
		return cart.Cart{}, errors.Validation("code", "promo code is not active")
	}

	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	if promo.Currency != "" && c.Currency != "" && !strings.EqualFold(promo.Currency, c.Currency) {
		return cart.Cart{}, errors.Validation("code", "promo code does not apply to this currency")
	}
	return s.apply(ctx, userID, cart.ApplyDiscount{Discount: promo.Discount()})
}

// ClearPromo removes the promo.
func (s *Service) ClearPromo(ctx context.Context, userID string) (cart.Cart, error) {
	return s.apply(ctx, userID, cart.ClearDiscount{})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) (cart.Cart, error) {
	return s.apply(ctx, userID, cart.Clear{})
}

// Reprice refreshes every line from the catalog and persists the result.
func (s *Service) Reprice(ctx context.Context, userID string) (cart.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return cart.Cart{}, err
	}
	if c.IsEmpty() {
		return c, nil
	}
	pkgs, err := s.catalog.GetPackages(ctx, c.PackageIDs())
	if err != nil {
		return cart.Cart{}, err
	}
	return s.apply(ctx, userID, cart.Reprice{Packages: pkgs})
}

func (s *Service) apply(ctx context.Context, userID string, a cart.Action) (cart.Cart, error) {
	next, err := s.store.Update(ctx, userID, func(c cart.Cart) (cart.Cart, error) {
		c.UserID = userID
		out, err := cart.Reduce(c, a)
		if err != nil {
			return c, err
		}
		out.UpdatedAt = s.now().UTC()
		return out, nil
	})
	s.Metrics().RecordCartAction(a.Name(), err)
	if err != nil {
		return cart.Cart{}, translate(err)
	}
	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"action":  a.Name(),
		"version": next.Version,
		"items":   len(next.Items),
	}).Debug("cart updated")
	return next, nil
}

func translate(err error) error {
	var unavailable *cart.UnavailablePackagesError
	switch {
	case stderrors.As(err, &unavailable):
		return errors.Conflict(unavailable.Error()).WithDetails("package_ids", unavailable.PackageIDs)
	case stderrors.Is(err, cart.ErrItemNotFound):
		return errors.NotFound("cart item", "")
	case stderrors.Is(err, cart.ErrInvalidQuantity):
		return errors.Validation("quantity", err.Error())
	case stderrors.Is(err, cart.ErrCurrencyMismatch):
		return errors.Conflict("cart items must share one currency")
	case stderrors.Is(err, cart.ErrPackageInactive):
		return errors.Conflict(err.Error())
	case stderrors.Is(err, cart.ErrInvalidDiscount), stderrors.Is(err, cart.ErrMinimumNotMet):
		return errors.Validation("code", err.Error())
	case stderrors.Is(err, cache.ErrContention):
		return errors.Conflict("cart was modified concurrently, retry the request")
	}
	if se := errors.GetServiceError(err); se != nil {
		return se
	}
	return errors.Unavailable("cart storage unavailable", err)
}
