package supabase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/pkg/testutil"
)

func TestListPackages_BuildsFilters(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	fake.Reply(http.MethodGet, tablePackages, http.StatusOK, `[{"id":"p1","vendor_id":"v1","name":"Full day","category":"photography","price_cents":250000,"currency":"usd","unit":"flat","active":true,"vendors":{"city":"Austin"}}]`)
	repo := NewRepository(fake.Repo, "vendor-media")

	got, err := repo.ListPackages(context.Background(), catalog.PackageFilter{
		Category:      catalog.CategoryPhotography,
		City:          "Austin",
		Query:         "full (day)",
		MaxPriceCents: 300000,
		Sort:          catalog.SortPriceAsc,
		Limit:         10,
	})
	if err != nil {
		t.Fatalf("ListPackages: %v", err)
	}
	if len(got) != 1 || got[0].VendorID != "v1" || got[0].PriceCents != 250000 {
		t.Fatalf("packages = %+v", got)
	}

	q := fake.Last(http.MethodGet, tablePackages).Query
	checks := map[string]string{
		"active":       "eq.true",
		"category":     "eq.photography",
		"vendors.city": "ilike.Austin",
		"price_cents":  "lte.300000",
		"select":       "*,vendors!inner(city)",
		"order":        "price_cents.asc,id.asc",
		"limit":        "10",
		"or":           "(name.ilike.*full day*,description.ilike.*full day*)",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestGetVendor_NotFound(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo, "vendor-media")

	_, err := repo.GetVendor(context.Background(), "missing")
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetPackagesByIDs(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo, "vendor-media")

	got, err := repo.GetPackagesByIDs(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty ids: %v %v", got, err)
	}
	if n := len(fake.Requests(http.MethodGet, tablePackages)); n != 0 {
		t.Fatalf("expected no request for empty ids, got %d", n)
	}

	if _, err := repo.GetPackagesByIDs(context.Background(), []string{"p1", "p2"}); err != nil {
		t.Fatalf("GetPackagesByIDs: %v", err)
	}
	if got := fake.Last(http.MethodGet, tablePackages).Query.Get("id"); got != `in.("p1","p2")` {
		t.Errorf("id filter = %q", got)
	}
}

func TestUpsertVendorsAndPackages(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo, "vendor-media")
	ctx := context.Background()

	err := repo.UpsertVendors(ctx, []catalog.Vendor{{ID: "v1", Name: "Lens & Light", Category: catalog.CategoryPhotography, Active: true}})
	if err != nil {
		t.Fatalf("UpsertVendors: %v", err)
	}
	req := fake.Last(http.MethodPost, tableVendors)
	if req.Query.Get("on_conflict") != "id" || !strings.Contains(req.Prefer, "resolution=merge-duplicates") {
		t.Errorf("upsert request = %+v", req)
	}
	var vendors []map[string]any
	req.Decode(t, &vendors)
	if vendors[0]["max_events_per_day"] != float64(1) {
		t.Errorf("max_events_per_day = %v", vendors[0]["max_events_per_day"])
	}
	if _, ok := vendors[0]["owner_user_id"]; ok {
		t.Error("empty owner should be omitted")
	}
	if _, ok := vendors[0]["created_at"]; ok {
		t.Error("timestamps should be left to the database")
	}

	err = repo.UpsertPackages(ctx, []catalog.Package{{ID: "p-any", Name: "Bouquets", Category: catalog.CategoryFlorist, Currency: "usd", Unit: catalog.UnitFlat}})
	if err != nil {
		t.Fatalf("UpsertPackages: %v", err)
	}
	var packages []map[string]any
	fake.Last(http.MethodPost, tablePackages).Decode(t, &packages)
	if packages[0]["vendor_id"] != nil {
		t.Errorf("marketplace package vendor_id = %v, want null", packages[0]["vendor_id"])
	}
	if packages[0]["min_quantity"] != float64(1) {
		t.Errorf("min_quantity = %v", packages[0]["min_quantity"])
	}
}

func TestPublicURL(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo, "vendor-media")
	want := fake.Server.URL + "/storage/v1/object/public/vendor-media/v1/cover%20photo.jpg"
	if got := repo.PublicURL("v1/cover photo.jpg"); got != want {
		t.Errorf("PublicURL = %q, want %q", got, want)
	}
}

func TestSearchTerm(t *testing.T) {
	if got := searchTerm(` rose,(garden)*."x" `); got != "rosegardenx" {
		t.Errorf("searchTerm = %q", got)
	}
}

func TestListVendors_CityMatchesLiterally(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	fake.Reply(http.MethodGet, tableVendors, http.StatusOK, `[]`)
	repo := NewRepository(fake.Repo, "vendor-media")

	if _, err := repo.ListVendors(context.Background(), catalog.VendorFilter{City: " %_Aus*tin ", Limit: 5}); err != nil {
		t.Fatalf("ListVendors: %v", err)
	}
	if got, want := fake.Last(http.MethodGet, tableVendors).Query.Get("city"), `ilike.\%\_Austin`; got != want {
		t.Errorf("city = %q, want %q", got, want)
	}
}

func TestLikeLiteral(t *testing.T) {
	cases := map[string]string{
		"Austin":     "Austin",
		"100%":       `100\%`,
		"new_york":   `new\_york`,
		`back\slash`: `back\\slash`,
		"*":          "",
	}
	for in, want := range cases {
		if got := likeLiteral(in); got != want {
			t.Errorf("likeLiteral(%q) = %q, want %q", in, got, want)
		}
	}
}
