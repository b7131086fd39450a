package bookingapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/httputil"
)

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/selections", s.handleStartWizard).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}", s.handleGetWizard).Methods(http.MethodGet)
	r.HandleFunc("/v1/selections/{id}/event-details", s.handleEventDetails).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}/venue", s.handleVenue).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}/vendor", s.handleVendor).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}/back", s.handleBack).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}/apply", s.handleApply).Methods(http.MethodPost)
	r.HandleFunc("/v1/selections/{id}/candidates", s.handleCandidates).Methods(http.MethodGet)
	r.HandleFunc("/v1/vendors/{id}/availability", s.handleAvailability).Methods(http.MethodGet)
	r.HandleFunc("/v1/bookings", s.handleListBookings).Methods(http.MethodGet)
	r.HandleFunc("/v1/timeline", s.handleListTimeline).Methods(http.MethodGet)
	r.HandleFunc("/v1/timeline", s.handleCreateTimeline).Methods(http.MethodPost)
	r.HandleFunc("/v1/timeline/{id}", s.handleUpdateTimeline).Methods(http.MethodPut)
	r.HandleFunc("/v1/timeline/{id}", s.handleDeleteTimeline).Methods(http.MethodDelete)
}

// StartInput is the body of POST /v1/selections.
type StartInput struct {
	CartItemID string `json:"cart_item_id"`
}

// VendorInput is the body of POST /v1/selections/{id}/vendor.
type VendorInput struct {
	VendorID string `json:"vendor_id"`
}

func (s *Service) handleStartWizard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input StartInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	wiz, err := s.StartWizard(r.Context(), userID, input.CartItemID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wiz)
}

func (s *Service) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	wiz, err := s.GetWizard(r.Context(), userID, mux.Vars(r)["id"])
	writeWizard(w, r, wiz, err)
}

func (s *Service) handleEventDetails(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input booking.EventDetails
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	wiz, err := s.SubmitEventDetails(r.Context(), userID, mux.Vars(r)["id"], input)
	writeWizard(w, r, wiz, err)
}

func (s *Service) handleVenue(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input booking.VenueChoice
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	wiz, err := s.SubmitVenue(r.Context(), userID, mux.Vars(r)["id"], input)
	writeWizard(w, r, wiz, err)
}

func (s *Service) handleVendor(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input VendorInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	wiz, err := s.SubmitVendor(r.Context(), userID, mux.Vars(r)["id"], input.VendorID)
	writeWizard(w, r, wiz, err)
}

func (s *Service) handleBack(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	wiz, err := s.Back(r.Context(), userID, mux.Vars(r)["id"])
	writeWizard(w, r, wiz, err)
}

func writeWizard(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard, err error) {
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wiz)
}

func (s *Service) handleApply(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	c, err := s.Apply(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (s *Service) handleCandidates(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	vendors, err := s.CandidateVendors(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"vendors": vendors})
}

func (s *Service) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := s.CheckAvailability(r.Context(), mux.Vars(r)["id"], q.Get("date"), httputil.QueryInt(r, "guests", 0))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (s *Service) handleListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	bookings, err := s.ListBookings(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookings})
}

func (s *Service) handleListTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	events, err := s.ListTimeline(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Service) handleCreateTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input TimelineInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	e, err := s.CreateTimelineEvent(r.Context(), userID, input)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

func (s *Service) handleUpdateTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input TimelineInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	e, err := s.UpdateTimelineEvent(r.Context(), userID, mux.Vars(r)["id"], input)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (s *Service) handleDeleteTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	if err := s.DeleteTimelineEvent(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}
