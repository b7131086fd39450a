package supabase

import (
	"context"
	"fmt"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/onboarding"
)

const (
	tableProgress = "onboarding_progress"
	tableProfiles = "couple_profiles"
)

// RepositoryInterface defines onboarding data access.
type RepositoryInterface interface {
	GetProgress(ctx context.Context, userID string) (*onboarding.Progress, error)
	SaveProgress(ctx context.Context, p *onboarding.Progress, version string) error
	GetProfile(ctx context.Context, userID string) (*onboarding.CoupleProfile, error)
	SaveProfile(ctx context.Context, p *onboarding.CoupleProfile) error
}

var _ RepositoryInterface = (*Repository)(nil)

// Repository provides onboarding data access over PostgREST.
type Repository struct {
	base database.RepositoryInterface
}

func NewRepository(base database.RepositoryInterface) *Repository {
	return &Repository{base: base}
}

func (r *Repository) GetProgress(ctx context.Context, userID string) (*onboarding.Progress, error) {
	row, err := database.GenericGetByField[Progress](r.base, ctx, tableProgress, "user_id", userID)
	if err != nil {
		return nil, err
	}
	p := row.ToDomain()
	return &p, nil
}

// SaveProgress upserts a user's progress keyed by user_id.
func (r *Repository) SaveProgress(ctx context.Context, p *onboarding.Progress, version string) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("%w: progress requires a user", database.ErrInvalidInput)
	}
	row := Progress{
		UserID:      p.UserID,
		Version:     version,
		CurrentStep: p.CurrentStep,
		Answers:     p.Answers,
		Completed:   p.Completed,
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if row.Answers == nil {
		row.Answers = map[string]interface{}{}
	}
	return database.GenericUpsert[Progress](r.base, ctx, tableProgress, row, "user_id", nil)
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*onboarding.CoupleProfile, error) {
	row, err := database.GenericGetByField[Profile](r.base, ctx, tableProfiles, "user_id", userID)
	if err != nil {
		return nil, err
	}
	p := row.ToDomain()
	return &p, nil
}

// SaveProfile upserts the derived profile keyed by user_id.
func (r *Repository) SaveProfile(ctx context.Context, p *onboarding.CoupleProfile) error {
	if p == nil || p.UserID == "" {
		return fmt.Errorf("%w: profile requires a user", database.ErrInvalidInput)
	}
	row := ProfileFromDomain(*p)
	row.UpdatedAt = row.UpdatedAt.UTC()
	return database.GenericUpsert[Profile](r.base, ctx, tableProfiles, row, "user_id", nil)
}
