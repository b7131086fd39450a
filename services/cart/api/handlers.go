package cartapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/domain/cart"
	"github.com/altarlane/marketplace/internal/httputil"
)

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/cart", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/cart", s.handleClear).Methods(http.MethodDelete)
	r.HandleFunc("/v1/cart/items", s.handleAddItem).Methods(http.MethodPost)
	r.HandleFunc("/v1/cart/items/{itemID}", s.handleUpdateItem).Methods(http.MethodPatch)
	r.HandleFunc("/v1/cart/items/{itemID}", s.handleRemoveItem).Methods(http.MethodDelete)
	r.HandleFunc("/v1/cart/promo", s.handleApplyPromo).Methods(http.MethodPost)
	r.HandleFunc("/v1/cart/promo", s.handleClearPromo).Methods(http.MethodDelete)
}

// AddItemInput is the body of POST /v1/cart/items.
type AddItemInput struct {
	PackageID string `json:"package_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateItemInput is the body of PATCH /v1/cart/items/{itemID}.
type UpdateItemInput struct {
	Quantity int `json:"quantity"`
}

// PromoInput is the body of POST /v1/cart/promo.
type PromoInput struct {
	Code string `json:"code"`
}

func (s *Service) respond(w http.ResponseWriter, r *http.Request, c cart.Cart, err error) {
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	c, err := s.Get(r.Context(), userID)
	s.respond(w, r, c, err)
}

func (s *Service) handleClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	c, err := s.Clear(r.Context(), userID)
	s.respond(w, r, c, err)
}

func (s *Service) handleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input AddItemInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	c, err := s.AddItem(r.Context(), userID, input.PackageID, input.Quantity)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (s *Service) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input UpdateItemInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	c, err := s.UpdateQuantity(r.Context(), userID, mux.Vars(r)["itemID"], input.Quantity)
	s.respond(w, r, c, err)
}

func (s *Service) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	c, err := s.RemoveItem(r.Context(), userID, mux.Vars(r)["itemID"])
	s.respond(w, r, c, err)
}

func (s *Service) handleApplyPromo(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input PromoInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	c, err := s.ApplyPromo(r.Context(), userID, input.Code)
	s.respond(w, r, c, err)
}

func (s *Service) handleClearPromo(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	c, err := s.ClearPromo(r.Context(), userID)
	s.respond(w, r, c, err)
}
