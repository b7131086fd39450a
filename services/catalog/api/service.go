// Package catalogapi implements vendor and package browsing.
package catalogapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "catalog"
	ServiceName = "Catalog Service"
	Version     = "1.0.0"
)

// Store captures the persistence surface needed by the catalog service.
type Store interface {
	ListVendors(ctx context.Context, f catalog.VendorFilter) ([]catalog.Vendor, error)
	GetVendor(ctx context.Context, id string) (*catalog.Vendor, error)
	ListVendorsByOwner(ctx context.Context, userID string) ([]catalog.Vendor, error)
	ListPackages(ctx context.Context, f catalog.PackageFilter) ([]catalog.Package, error)
	GetPackage(ctx context.Context, id string) (*catalog.Package, error)
	GetPackagesByIDs(ctx context.Context, ids []string) ([]catalog.Package, error)
	UpsertVendors(ctx context.Context, vendors []catalog.Vendor) error
	UpsertPackages(ctx context.Context, packages []catalog.Package) error
	PublicURL(path string) string
}

// Service implements the catalog service.
type Service struct {
	*commonservice.BaseService
	store Store
}

// Config configures the catalog service.
type Config struct {
	Store  Store
	Logger *logging.Logger
	Router *mux.Router
}

// New creates the catalog service and registers its routes.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("catalog: store is required")
	}
	base := commonservice.NewBase(&commonservice.BaseConfig{
		ID:      ServiceID,
		Name:    ServiceName,
		Version: Version,
		Logger:  cfg.Logger,
		Router:  cfg.Router,
	})
	s := &Service{BaseService: base, store: cfg.Store}
	s.registerRoutes()
	return s, nil
}

// ListVendors lists active vendors.
func (s *Service) ListVendors(ctx context.Context, f catalog.VendorFilter) ([]catalog.Vendor, error) {
	if f.Category != "" {
		if _, err := catalog.ParseCategory(string(f.Category)); err != nil {
			return nil, errors.Validation("category", err.Error())
		}
	}
	f.Limit = catalog.ClampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	vendors, err := s.store.ListVendors(ctx, f)
	if err != nil {
		return nil, commonservice.StoreError(err, "vendors", "")
	}
	return s.decorateVendors(filterActiveVendors(vendors)), nil
}

// GetVendor returns an active vendor with its active packages.
func (s *Service) GetVendor(ctx context.Context, id string) (*catalog.VendorDetail, error) {
	v, err := s.store.GetVendor(ctx, id)
	if err != nil {
		return nil, commonservice.StoreError(err, "vendor", id)
	}
	if !v.Active {
		return nil, errors.NotFound("vendor", id)
	}
	pkgs, err := s.store.ListPackages(ctx, catalog.PackageFilter{VendorID: id, Limit: catalog.MaxLimit})
	if err != nil {
		return nil, commonservice.StoreError(err, "packages", "")
	}
	return &catalog.VendorDetail{
		Vendor:   s.decorateVendor(*v),
		Packages: s.decoratePackages(filterActivePackages(pkgs)),
	}, nil
}

// Vendor returns a vendor whether or not it is active.
func (s *Service) Vendor(ctx context.Context, id string) (*catalog.Vendor, error) {
	v, err := s.store.GetVendor(ctx, id)
	if err != nil {
		return nil, commonservice.StoreError(err, "vendor", id)
	}
	out := s.decorateVendor(*v)
	return &out, nil
}

// ListPackages lists active packages.
func (s *Service) ListPackages(ctx context.Context, f catalog.PackageFilter) ([]catalog.Package, error) {
	if f.Category != "" {
		if _, err := catalog.ParseCategory(string(f.Category)); err != nil {
			return nil, errors.Validation("category", err.Error())
		}
	}
	switch f.Sort {
	case "", catalog.SortPriceAsc, catalog.SortPriceDesc, catalog.SortNewest, catalog.SortFeatured:
	default:
		return nil, errors.Validation("sort", "must be one of price_asc, price_desc, newest, featured")
	}
	if f.MinPriceCents > 0 && f.MaxPriceCents > 0 && f.MinPriceCents > f.MaxPriceCents {
		return nil, errors.Validation("min_price", "must not exceed max_price")
	}
	f.Limit = catalog.ClampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	pkgs, err := s.store.ListPackages(ctx, f)
	if err != nil {
		return nil, commonservice.StoreError(err, "packages", "")
	}
	return s.decoratePackages(filterActivePackages(pkgs)), nil
}

// GetPackage returns an active package.
func (s *Service) GetPackage(ctx context.Context, id string) (*catalog.Package, error) {
	p, err := s.Package(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, errors.NotFound("package", id)
	}
	return p, nil
}

// Package returns a package whether or not it is active.
func (s *Service) Package(ctx context.Context, id string) (*catalog.Package, error) {
	p, err := s.store.GetPackage(ctx, id)
	if err != nil {
		return nil, commonservice.StoreError(err, "package", id)
	}
	out := s.decoratePackage(*p)
	return &out, nil
}

// GetPackages returns packages keyed by ID, including inactive ones.
// Unknown IDs are absent from the map.
func (s *Service) GetPackages(ctx context.Context, ids []string) (map[string]catalog.Package, error) {
	pkgs, err := s.store.GetPackagesByIDs(ctx, ids)
	if err != nil {
		return nil, commonservice.StoreError(err, "packages", "")
	}
	out := make(map[string]catalog.Package, len(pkgs))
	for _, p := range pkgs {
		out[p.ID] = p
	}
	return out, nil
}

// VendorsByCategory lists active vendors in a category, optionally in one city.
func (s *Service) VendorsByCategory(ctx context.Context, category catalog.Category, city string) ([]catalog.Vendor, error) {
	return s.ListVendors(ctx, catalog.VendorFilter{Category: category, City: city, Limit: catalog.MaxLimit})
}

// VendorOwnedBy reports whether userID manages vendorID.
func (s *Service) VendorOwnedBy(ctx context.Context, vendorID, userID string) (bool, error) {
	if vendorID == "" || userID == "" {
		return false, nil
	}
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		if errors.IsCode(commonservice.StoreError(err, "vendor", vendorID), errors.CodeNotFound) {
			return false, nil
		}
		return false, commonservice.StoreError(err, "vendor", vendorID)
	}
	return v.OwnerUserID == userID, nil
}

// OwnedVendorIDs lists the IDs of vendors userID manages.
func (s *Service) OwnedVendorIDs(ctx context.Context, userID string) ([]string, error) {
	vendors, err := s.store.ListVendorsByOwner(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "vendors", "")
	}
	ids := make([]string, 0, len(vendors))
	for _, v := range vendors {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (s *Service) decorateVendor(v catalog.Vendor) catalog.Vendor {
	if v.ImagePath != "" {
		v.ImageURL = s.store.PublicURL(v.ImagePath)
	}
	return v
}

func (s *Service) decorateVendors(vs []catalog.Vendor) []catalog.Vendor {
	for i := range vs {
		vs[i] = s.decorateVendor(vs[i])
	}
	return vs
}

func (s *Service) decoratePackage(p catalog.Package) catalog.Package {
	if p.ImagePath != "" {
		p.ImageURL = s.store.PublicURL(p.ImagePath)
	}
	p.Currency = strings.ToLower(p.Currency)
	return p
}

func (s *Service) decoratePackages(ps []catalog.Package) []catalog.Package {
	for i := range ps {
		ps[i] = s.decoratePackage(ps[i])
	}
	return ps
}

func filterActiveVendors(vs []catalog.Vendor) []catalog.Vendor {
	out := vs[:0]
	for _, v := range vs {
		if v.Active {
			out = append(out, v)
		}
	}
	return out
}

func filterActivePackages(ps []catalog.Package) []catalog.Package {
	out := ps[:0]
	for _, p := range ps {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}
