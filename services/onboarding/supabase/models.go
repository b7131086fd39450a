// Package supabase persists onboarding progress and couple profiles.
package supabase

import (
	"time"

	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/domain/onboarding"
)

// Progress is a row of the onboarding_progress table.
type Progress struct {
	UserID      string                 `json:"user_id"`
	Version     string                 `json:"questionnaire_version"`
	CurrentStep string                 `json:"current_step"`
	Answers     map[string]interface{} `json:"answers"`
	Completed   bool                   `json:"completed"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func (p Progress) ToDomain() onboarding.Progress {
	answers := p.Answers
	if answers == nil {
		answers = map[string]interface{}{}
	}
	return onboarding.Progress{
		UserID:      p.UserID,
		CurrentStep: p.CurrentStep,
		Answers:     answers,
		Completed:   p.Completed,
		UpdatedAt:   p.UpdatedAt,
	}
}

// Profile is a row of the couple_profiles table.
type Profile struct {
	UserID       string    `json:"user_id"`
	PartnerNames []string  `json:"partner_names"`
	WeddingDate  *string   `json:"wedding_date"`
	City         string    `json:"city"`
	GuestCount   int       `json:"guest_count"`
	BudgetCents  int64     `json:"budget_cents"`
	Services     []string  `json:"services"`
	Style        string    `json:"style"`
	HasVenue     bool      `json:"has_venue"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func ProfileFromDomain(p onboarding.CoupleProfile) Profile {
	row := Profile{
		UserID:       p.UserID,
		PartnerNames: p.PartnerNames,
		City:         p.City,
		GuestCount:   p.GuestCount,
		BudgetCents:  p.BudgetCents,
		Services:     make([]string, 0, len(p.Services)),
		Style:        p.Style,
		HasVenue:     p.HasVenue,
		UpdatedAt:    p.UpdatedAt,
	}
	if p.WeddingDate != "" {
		d := p.WeddingDate
		row.WeddingDate = &d
	}
	for _, c := range p.Services {
		row.Services = append(row.Services, string(c))
	}
	return row
}

func (p Profile) ToDomain() onboarding.CoupleProfile {
	out := onboarding.CoupleProfile{
		UserID:       p.UserID,
		PartnerNames: p.PartnerNames,
		City:         p.City,
		GuestCount:   p.GuestCount,
		BudgetCents:  p.BudgetCents,
		Services:     make([]catalog.Category, 0, len(p.Services)),
		Style:        p.Style,
		HasVenue:     p.HasVenue,
		UpdatedAt:    p.UpdatedAt,
	}
	if out.PartnerNames == nil {
		out.PartnerNames = []string{}
	}
	if p.WeddingDate != nil {
		out.WeddingDate = *p.WeddingDate
	}
	for _, s := range p.Services {
		if c, err := catalog.ParseCategory(s); err == nil {
			out.Services = append(out.Services, c)
		}
	}
	return out
}
