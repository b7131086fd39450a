// Package onboardingapi implements the couple onboarding questionnaire,
// profile and recommendation endpoints.
package onboardingapi

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/domain/onboarding"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
	"github.com/altarlane/marketplace/internal/metrics"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

const (
	ServiceID   = "onboarding"
	ServiceName = "Onboarding Service"
	Version     = "1.0.0"
)

// RecommendationsPerCategory caps packages suggested per service.
const RecommendationsPerCategory = 3

//go:embed questionnaire.yaml
var defaultQuestionnaire []byte

// LoadQuestionnaire reads a questionnaire from path, or the built-in one
// when path is empty.
func LoadQuestionnaire(path string) (*onboarding.Questionnaire, error) {
	data := defaultQuestionnaire
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read questionnaire: %w", err)
		}
		data = b
	}
	return onboarding.Parse(data)
}

// Store persists progress and profiles.
type Store interface {
	GetProgress(ctx context.Context, userID string) (*onboarding.Progress, error)
	SaveProgress(ctx context.Context, p *onboarding.Progress, version string) error
	GetProfile(ctx context.Context, userID string) (*onboarding.CoupleProfile, error)
	SaveProfile(ctx context.Context, p *onboarding.CoupleProfile) error
}

// Catalog lists packages for recommendations.
type Catalog interface {
	ListPackages(ctx context.Context, f catalog.PackageFilter) ([]catalog.Package, error)
}

// Config configures the onboarding service.
type Config struct {
	Store         Store
	Catalog       Catalog
	Questionnaire *onboarding.Questionnaire
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	Router        *mux.Router
	Now           func() time.Time
}

// Service implements onboarding.
type Service struct {
	*commonservice.BaseService
	store   Store
	catalog Catalog
	q       *onboarding.Questionnaire
	now     func() time.Time
}

// New creates the onboarding service and registers its routes.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("onboarding: store and catalog are required")
	}
	q := cfg.Questionnaire
	if q == nil {
		var err error
		if q, err = LoadQuestionnaire(""); err != nil {
			return nil, fmt.Errorf("onboarding: %w", err)
		}
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
		q:           q,
		now:         cfg.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerRoutes()
	return s, nil
}

// State is the questionnaire together with the caller's position in it.
type State struct {
	Questionnaire *onboarding.Questionnaire `json:"questionnaire"`
	Progress      *onboarding.Progress      `json:"progress"`
	Step          *onboarding.Step          `json:"step,omitempty"`
	Missing       []string                  `json:"missing,omitempty"`
}

func (s *Service) state(p *onboarding.Progress) *State {
	st := &State{Questionnaire: s.q, Progress: p}
	if step, ok := s.q.Step(p.CurrentStep); ok {
		st.Step = &step
	}
	if p.CurrentStep == onboarding.StepReview && !p.Completed {
		st.Missing = s.q.Missing(p.Answers)
	}
	return st
}

// progress loads saved progress, starting fresh when there is none.
func (s *Service) progress(ctx context.Context, userID string) (*onboarding.Progress, error) {
	p, err := s.store.GetProgress(ctx, userID)
	if err != nil {
		if database.IsNotFound(err) {
			return s.q.Start(userID, s.now()), nil
		}
		return nil, commonservice.StoreError(err, "onboarding progress", userID)
	}
	if _, ok := s.q.Step(p.CurrentStep); !ok && p.CurrentStep != onboarding.StepReview {
		// Saved step no longer exists in the questionnaire.
		p.CurrentStep = s.q.First(p.Answers)
	}
	return p, nil
}

// Get returns the questionnaire and the caller's progress.
func (s *Service) Get(ctx context.Context, userID string) (*State, error) {
	p, err := s.progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.state(p), nil
}

// Answer records answers for the current step and advances.
func (s *Service) Answer(ctx context.Context, userID, stepID string, answers map[string]interface{}) (*State, error) {
	p, err := s.progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.q.Answer(p, stepID, answers, s.now()); err != nil {
		return nil, domainError(err)
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.Metrics().RecordOnboardingStep("answer", stepID)
	return s.state(p), nil
}

// Back moves the caller to the previous step.
func (s *Service) Back(ctx context.Context, userID string) (*State, error) {
	p, err := s.progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.q.Back(p, s.now()); err != nil {
		return nil, domainError(err)
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.Metrics().RecordOnboardingStep("back", p.CurrentStep)
	return s.state(p), nil
}

// Complete finishes the questionnaire and stores the derived profile.
// Completing twice re-derives the profile from the saved answers.
func (s *Service) Complete(ctx context.Context, userID string) (*onboarding.CoupleProfile, error) {
	p, err := s.progress(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.q.Complete(p, s.now())
	if err != nil {
		return nil, domainError(err)
	}
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return nil, commonservice.StoreError(err, "couple profile", userID)
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.Metrics().RecordOnboardingStep("complete", onboarding.StepReview)
	s.Logger().WithContext(ctx).
		WithField("services", len(profile.Services)).
		Info("onboarding completed")
	return profile, nil
}

// Profile returns the caller's couple profile.
func (s *Service) Profile(ctx context.Context, userID string) (*onboarding.CoupleProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, commonservice.StoreError(err, "couple profile", userID)
	}
	return p, nil
}

// Recommendation is a category with suggested packages.
type Recommendation struct {
	Category      catalog.Category  `json:"category"`
	MaxPriceCents int64             `json:"max_price_cents,omitempty"`
	Packages      []catalog.Package `json:"packages"`
}

// Recommendations suggests up to three featured packages per needed service
// in the couple's city, priced within an even share of the budget.
func (s *Service) Recommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	profile, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	share := profile.BudgetShareCents()
	out := make([]Recommendation, 0, len(profile.Services))
	for _, c := range profile.Services {
		pkgs, err := s.catalog.ListPackages(ctx, catalog.PackageFilter{
			Category:      c,
			City:          profile.City,
			MaxPriceCents: share,
			Sort:          catalog.SortFeatured,
			Limit:         RecommendationsPerCategory,
		})
		if err != nil {
			return nil, err
		}
		if len(pkgs) > RecommendationsPerCategory {
			pkgs = pkgs[:RecommendationsPerCategory]
		}
		if pkgs == nil {
			pkgs = []catalog.Package{}
		}
		out = append(out, Recommendation{Category: c, MaxPriceCents: share, Packages: pkgs})
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, p *onboarding.Progress) error {
	if err := s.store.SaveProgress(ctx, p, s.q.Version); err != nil {
		return commonservice.StoreError(err, "onboarding progress", p.UserID)
	}
	return nil
}

func domainError(err error) error {
	var field *onboarding.FieldError
	var missing *onboarding.MissingAnswersError
	switch {
	case stderrors.As(err, &field):
		return errors.Validation(field.Field, field.Msg)
	case stderrors.As(err, &missing):
		return errors.Validation("answers", err.Error()).WithDetails("questions", missing.Questions)
	case stderrors.Is(err, onboarding.ErrWrongStep),
		stderrors.Is(err, onboarding.ErrAtFirstStep),
		stderrors.Is(err, onboarding.ErrCompleted):
		return errors.Conflict(err.Error())
	}
	return errors.Internal("onboarding failed", err)
}
