package onboardingapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/httputil"
)

func (s *Service) registerRoutes() {
	r := s.Router()
	r.HandleFunc("/v1/onboarding", s.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/onboarding/steps/{step}", s.handleAnswer).Methods(http.MethodPost)
	r.HandleFunc("/v1/onboarding/back", s.handleBack).Methods(http.MethodPost)
	r.HandleFunc("/v1/onboarding/complete", s.handleComplete).Methods(http.MethodPost)
	r.HandleFunc("/v1/profile", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/recommendations", s.handleRecommendations).Methods(http.MethodGet)
}

// AnswerInput is the body of POST /v1/onboarding/steps/{step}.
type AnswerInput struct {
	Answers map[string]interface{} `json:"answers"`
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	st, err := s.Get(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (s *Service) handleAnswer(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in AnswerInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	st, err := s.Answer(r.Context(), userID, mux.Vars(r)["step"], in.Answers)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (s *Service) handleBack(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	st, err := s.Back(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (s *Service) handleComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	profile, err := s.Complete(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	profile, err := s.Profile(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (s *Service) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	recs, err := s.Recommendations(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}
