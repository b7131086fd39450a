package checkoutapi

import (
	stderrors "errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/httputil"
	"github.com/altarlane/marketplace/internal/logging"
)

const maxWebhookBytes = 1 << 20

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/checkout", s.handleCheckout).Methods(http.MethodPost)
	r.HandleFunc("/v1/orders", s.handleListOrders).Methods(http.MethodGet)
	r.HandleFunc("/v1/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)
	r.HandleFunc("/v1/webhooks/stripe", s.handleWebhook).Methods(http.MethodPost)
}

// CheckoutInput is the body of POST /v1/checkout.
type CheckoutInput struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input CheckoutInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	o, err := s.CreateCheckout(r.Context(), CheckoutRequest{
		UserID:     userID,
		Email:      logging.GetEmail(r.Context()),
		SuccessURL: input.SuccessURL,
		CancelURL:  input.CancelURL,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"order":        o,
		"checkout_url": o.CheckoutURL,
	})
}

func (s *Service) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	orders, err := s.ListOrders(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (s *Service) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	o, err := s.GetOrder(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := httputil.ReadAllStrict(r.Body, maxWebhookBytes)
	if err != nil {
		if stderrors.Is(err, httputil.ErrBodyTooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		httputil.BadRequest(w, "unreadable body")
		return
	}
	if err := s.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
