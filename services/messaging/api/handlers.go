package messagingapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/httputil"
)

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/conversations", s.handleListConversations).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations", s.handleStartConversation).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	r.HandleFunc("/v1/conversations/{id}/messages", s.handleSend).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/read", s.handleMarkRead).Methods(http.MethodPost)
	r.HandleFunc("/v1/conversations/{id}/stream", s.handleStream).Methods(http.MethodGet)
}

// StartInput is the body of POST /v1/conversations.
type StartInput struct {
	VendorID string `json:"vendor_id"`
}

// SendInput is the body of POST /v1/conversations/{id}/messages.
type SendInput struct {
	Body string `json:"body"`
}

func (s *Service) handleListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	convs, err := s.ListConversations(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"conversations": convs})
}

func (s *Service) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input StartInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	c, err := s.StartConversation(r.Context(), userID, input.VendorID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (s *Service) handleListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httputil.WriteServiceError(w, r, errors.InvalidFormat("before", "RFC 3339 timestamp"))
			return
		}
		before = &t
	}
	msgs, err := s.ListMessages(r.Context(), userID, mux.Vars(r)["id"], before, httputil.QueryInt(r, "limit", 0))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Service) handleSend(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var input SendInput
	if !httputil.DecodeJSON(w, r, &input) {
		return
	}
	m, err := s.Send(r.Context(), userID, mux.Vars(r)["id"], input.Body)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, m)
}

func (s *Service) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	n, err := s.MarkRead(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"marked": n})
}
