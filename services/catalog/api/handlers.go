package catalogapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/httputil"
)

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/vendors", s.handleListVendors).Methods(http.MethodGet)
	r.HandleFunc("/v1/vendors/{id}", s.handleGetVendor).Methods(http.MethodGet)
	r.HandleFunc("/v1/packages", s.handleListPackages).Methods(http.MethodGet)
	r.HandleFunc("/v1/packages/{id}", s.handleGetPackage).Methods(http.MethodGet)
}

// handleListVendors serves GET /v1/vendors?category=&city=&q=&limit=&offset=.
func (s *Service) handleListVendors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendors, err := s.ListVendors(r.Context(), catalog.VendorFilter{
		Category: catalog.Category(strings.ToLower(strings.TrimSpace(q.Get("category")))),
		City:     q.Get("city"),
		Query:    q.Get("q"),
		Limit:    httputil.QueryInt(r, "limit", catalog.DefaultLimit),
		Offset:   httputil.QueryInt(r, "offset", 0),
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"vendors": vendors})
}

func (s *Service) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	detail, err := s.GetVendor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

// handleListPackages serves GET /v1/packages with category, vendor_id, city, q,
// min_price, max_price (cents), featured, sort, limit and offset.
func (s *Service) handleListPackages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pkgs, err := s.ListPackages(r.Context(), catalog.PackageFilter{
		Category:      catalog.Category(strings.ToLower(strings.TrimSpace(q.Get("category")))),
		VendorID:      q.Get("vendor_id"),
		City:          q.Get("city"),
		Query:         q.Get("q"),
		MinPriceCents: httputil.QueryInt64(r, "min_price", 0),
		MaxPriceCents: httputil.QueryInt64(r, "max_price", 0),
		Featured:      q.Get("featured") == "true",
		Sort:          q.Get("sort"),
		Limit:         httputil.QueryInt(r, "limit", catalog.DefaultLimit),
		Offset:        httputil.QueryInt(r, "offset", 0),
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"packages": pkgs})
}

func (s *Service) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	p, err := s.GetPackage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}
