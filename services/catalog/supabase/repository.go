package supabase

import (
	"context"
	"fmt"
	"strings"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/catalog"
)

const (
	tableVendors  = "vendors"
	tablePackages = "packages"
)

// RepositoryInterface defines catalog data access.
type RepositoryInterface interface {
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

var _ RepositoryInterface = (*Repository)(nil)

// Repository provides catalog data access over PostgREST.
type Repository struct {
	base   database.RepositoryInterface
	bucket string
}

// NewRepository creates a catalog repository. bucket is the public media bucket.
func NewRepository(base database.RepositoryInterface, bucket string) *Repository {
	return &Repository{base: base, bucket: bucket}
}

// ListVendors lists active vendors matching f. Limits must already be clamped.
func (r *Repository) ListVendors(ctx context.Context, f catalog.VendorFilter) ([]catalog.Vendor, error) {
	q := database.NewQuery().EqBool("active", true)
	if f.Category != "" {
		q.Eq("category", string(f.Category))
	}
	if city := strings.TrimSpace(f.City); city != "" {
		q.ILike("city", likeLiteral(city))
	}
	if term := searchTerm(f.Query); term != "" {
		q.Or(fmt.Sprintf("name.ilike.*%s*,description.ilike.*%s*", term, term))
	}
	q.OrderDesc("rating").OrderAsc("name").Limit(f.Limit).Offset(f.Offset)

	rows, err := database.GenericListWithQuery[Vendor](r.base, ctx, tableVendors, q.Build())
	if err != nil {
		return nil, err
	}
	return vendorsToDomain(rows), nil
}

// GetVendor fetches a vendor by ID regardless of its active flag.
func (r *Repository) GetVendor(ctx context.Context, id string) (*catalog.Vendor, error) {
	row, err := database.GenericGetByField[Vendor](r.base, ctx, tableVendors, "id", id)
	if err != nil {
		return nil, err
	}
	v := row.ToDomain()
	return &v, nil
}

// ListVendorsByOwner lists the vendors a user manages.
func (r *Repository) ListVendorsByOwner(ctx context.Context, userID string) ([]catalog.Vendor, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: owner user id required", database.ErrInvalidInput)
	}
	rows, err := database.GenericListByField[Vendor](r.base, ctx, tableVendors, "owner_user_id", userID)
	if err != nil {
		return nil, err
	}
	return vendorsToDomain(rows), nil
}

// ListPackages lists active packages matching f. City filters through the vendor.
func (r *Repository) ListPackages(ctx context.Context, f catalog.PackageFilter) ([]catalog.Package, error) {
	q := database.NewQuery().EqBool("active", true)
	if city := strings.TrimSpace(f.City); city != "" {
		q.Select("*,vendors!inner(city)").ILike("vendors.city", likeLiteral(city))
	}
	if f.Category != "" {
		q.Eq("category", string(f.Category))
	}
	if f.VendorID != "" {
		q.Eq("vendor_id", f.VendorID)
	}
	if f.MinPriceCents > 0 {
		q.GteInt("price_cents", f.MinPriceCents)
	}
	if f.MaxPriceCents > 0 {
		q.LteInt("price_cents", f.MaxPriceCents)
	}
	if f.Featured {
		q.EqBool("featured", true)
	}
	if term := searchTerm(f.Query); term != "" {
		q.Or(fmt.Sprintf("name.ilike.*%s*,description.ilike.*%s*", term, term))
	}
	switch f.Sort {
	case catalog.SortPriceAsc:
		q.OrderAsc("price_cents")
	case catalog.SortPriceDesc:
		q.OrderDesc("price_cents")
	case catalog.SortNewest:
		q.OrderDesc("created_at")
	default:
		q.OrderDesc("featured").OrderAsc("price_cents")
	}
	q.OrderAsc("id").Limit(f.Limit).Offset(f.Offset)

	rows, err := database.GenericListWithQuery[Package](r.base, ctx, tablePackages, q.Build())
	if err != nil {
		return nil, err
	}
	return packagesToDomain(rows), nil
}

// GetPackage fetches a package by ID regardless of its active flag.
func (r *Repository) GetPackage(ctx context.Context, id string) (*catalog.Package, error) {
	row, err := database.GenericGetByField[Package](r.base, ctx, tablePackages, "id", id)
	if err != nil {
		return nil, err
	}
	p := row.ToDomain()
	return &p, nil
}

// GetPackagesByIDs fetches packages by ID, including inactive ones.
func (r *Repository) GetPackagesByIDs(ctx context.Context, ids []string) ([]catalog.Package, error) {
	if len(ids) == 0 {
		return []catalog.Package{}, nil
	}
	q := database.NewQuery().In("id", ids).Build()
	rows, err := database.GenericListWithQuery[Package](r.base, ctx, tablePackages, q)
	if err != nil {
		return nil, err
	}
	return packagesToDomain(rows), nil
}

// UpsertVendors inserts or merges vendors on id.
func (r *Repository) UpsertVendors(ctx context.Context, vendors []catalog.Vendor) error {
	if len(vendors) == 0 {
		return nil
	}
	rows := make([]Vendor, 0, len(vendors))
	for _, v := range vendors {
		rows = append(rows, VendorFromDomain(v))
	}
	return database.GenericUpsert[Vendor](r.base, ctx, tableVendors, rows, "id", nil)
}

// UpsertPackages inserts or merges packages on id.
func (r *Repository) UpsertPackages(ctx context.Context, packages []catalog.Package) error {
	if len(packages) == 0 {
		return nil
	}
	rows := make([]Package, 0, len(packages))
	for _, p := range packages {
		rows = append(rows, PackageFromDomain(p))
	}
	return database.GenericUpsert[Package](r.base, ctx, tablePackages, rows, "id", nil)
}

// PublicURL renders a media path in the catalog bucket.
func (r *Repository) PublicURL(path string) string {
	return r.base.PublicURL(r.bucket, path)
}

// searchTerm strips characters that carry meaning in PostgREST filter syntax.
func searchTerm(q string) string {
	q = strings.TrimSpace(q)
	return strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '.', ':', '"', '\\':
			return -1
		}
		return r
	}, q)
}

// likeLiteral makes s match only itself in an ilike filter. PostgREST turns
// '*' into '%', so it is dropped rather than escaped.
func likeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*':
			continue
		case '\\', '%', '_':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func vendorsToDomain(rows []Vendor) []catalog.Vendor {
	out := make([]catalog.Vendor, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out
}

func packagesToDomain(rows []Package) []catalog.Package {
	out := make([]catalog.Package, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToDomain())
	}
	return out
}
