package onboarding

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/altarlane/marketplace/internal/domain/catalog"
)

// Question IDs the profile is derived from.
const (
	QuestionPartnerOne = "partner_one"
	QuestionPartnerTwo = "partner_two"
	QuestionDate       = "wedding_date"
	QuestionCity       = "city"
	QuestionGuests     = "guest_count"
	QuestionBudget     = "budget"
	QuestionServices   = "services"
	QuestionStyle      = "style"
	QuestionHasVenue   = "has_venue"
)

// CoupleProfile summarizes a completed questionnaire.
type CoupleProfile struct {
	UserID       string             `json:"user_id"`
	PartnerNames []string           `json:"partner_names"`
	WeddingDate  string             `json:"wedding_date,omitempty"`
	City         string             `json:"city,omitempty"`
	GuestCount   int                `json:"guest_count"`
	BudgetCents  int64              `json:"budget_cents"`
	Services     []catalog.Category `json:"services"`
	Style        string             `json:"style,omitempty"`
	HasVenue     bool               `json:"has_venue"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// DeriveProfile builds a profile from answers. The budget answer is in whole
// currency units. A couple with a venue does not need venue recommendations.
func DeriveProfile(userID string, answers map[string]interface{}, now time.Time) *CoupleProfile {
	p := &CoupleProfile{
		UserID:       userID,
		PartnerNames: []string{},
		Services:     []catalog.Category{},
		UpdatedAt:    now,
	}
	for _, id := range []string{QuestionPartnerOne, QuestionPartnerTwo} {
		if name := str(answers[id]); name != "" {
			p.PartnerNames = append(p.PartnerNames, name)
		}
	}
	p.WeddingDate = str(answers[QuestionDate])
	p.City = str(answers[QuestionCity])
	p.Style = str(answers[QuestionStyle])
	if n, ok := number(answers[QuestionGuests]); ok && n > 0 {
		p.GuestCount = int(n)
	}
	if n, ok := number(answers[QuestionBudget]); ok && n > 0 {
		p.BudgetCents = int64(math.Round(n * 100))
	}
	p.HasVenue, _ = answers[QuestionHasVenue].(bool)

	seen := map[catalog.Category]bool{}
	for _, s := range strs(answers[QuestionServices]) {
		c, err := catalog.ParseCategory(s)
		if err != nil || seen[c] || (p.HasVenue && c == catalog.CategoryVenue) {
			continue
		}
		seen[c] = true
		p.Services = append(p.Services, c)
	}
	return p
}

// BudgetShareCents splits the budget evenly across needed services. Zero
// means no price cap.
func (p *CoupleProfile) BudgetShareCents() int64 {
	if p.BudgetCents <= 0 || len(p.Services) == 0 {
		return 0
	}
	return p.BudgetCents / int64(len(p.Services))
}

func str(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func strs(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
