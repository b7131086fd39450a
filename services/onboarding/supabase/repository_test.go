package supabase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/domain/onboarding"
	"github.com/altarlane/marketplace/pkg/testutil"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestSaveProgress_UpsertsOnUser(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo)

	p := &onboarding.Progress{
		UserID:      "u1",
		CurrentStep: "event",
		Answers:     map[string]interface{}{"partner_one": "Ana", "guest_count": 80.0},
		UpdatedAt:   now,
	}
	if err := repo.SaveProgress(context.Background(), p, "2026-05"); err != nil {
		t.Fatalf("SaveProgress: %v", err)
	}

	req := fake.Last(http.MethodPost, tableProgress)
	if req.Query.Get("on_conflict") != "user_id" {
		t.Errorf("on_conflict = %q", req.Query.Get("on_conflict"))
	}
	if req.Prefer == "" {
		t.Error("expected a Prefer header for merge-duplicates")
	}
	var row Progress
	req.Decode(t, &row)
	if row.Version != "2026-05" || row.CurrentStep != "event" || row.Answers["partner_one"] != "Ana" {
		t.Errorf("row = %+v", row)
	}

	if err := repo.SaveProgress(context.Background(), &onboarding.Progress{}, "v"); !errors.Is(err, database.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetProgress(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	fake.Handle(http.MethodGet, tableProgress, func(req testutil.Recorded) (int, interface{}) {
		if req.Query.Get("user_id") != "eq.u1" {
			return http.StatusOK, `[]`
		}
		return http.StatusOK, `[{"user_id":"u1","current_step":"review","answers":{"has_venue":true},"completed":true}]`
	})
	repo := NewRepository(fake.Repo)

	p, err := repo.GetProgress(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if !p.Completed || p.CurrentStep != "review" || p.Answers["has_venue"] != true {
		t.Errorf("progress = %+v", p)
	}
	if _, err := repo.GetProgress(context.Background(), "u2"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	repo := NewRepository(fake.Repo)

	in := &onboarding.CoupleProfile{
		UserID:       "u1",
		PartnerNames: []string{"Ana", "Ben"},
		City:         "Austin",
		BudgetCents:  1200000,
		Services:     []catalog.Category{catalog.CategoryFlorist},
		UpdatedAt:    now,
	}
	if err := repo.SaveProfile(context.Background(), in); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	req := fake.Last(http.MethodPost, tableProfiles)
	var row Profile
	req.Decode(t, &row)
	if row.WeddingDate != nil {
		t.Errorf("empty date should be stored as null, got %q", *row.WeddingDate)
	}
	if len(row.Services) != 1 || row.Services[0] != "florist" {
		t.Errorf("services = %v", row.Services)
	}

	fake.Reply(http.MethodGet, tableProfiles, http.StatusOK,
		`[{"user_id":"u1","partner_names":["Ana"],"wedding_date":"2026-09-12","services":["cake","bogus"],"budget_cents":500}]`)
	got, err := repo.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.WeddingDate != "2026-09-12" || len(got.Services) != 1 || got.Services[0] != catalog.CategoryCake {
		t.Errorf("profile = %+v", got)
	}
}
