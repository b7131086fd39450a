package onboardingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/internal/domain/catalog"
	"github.com/altarlane/marketplace/internal/domain/onboarding"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/logging"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu       sync.Mutex
	progress map[string]onboarding.Progress
	versions map[string]string
	profiles map[string]onboarding.CoupleProfile
	fail     error
}

func newMemStore() *memStore {
	return &memStore{
		progress: map[string]onboarding.Progress{},
		versions: map[string]string{},
		profiles: map[string]onboarding.CoupleProfile{},
	}
}

func (m *memStore) GetProgress(_ context.Context, userID string) (*onboarding.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	p, ok := m.progress[userID]
	if !ok {
		return nil, database.NotFoundError("onboarding_progress", "user_id", userID)
	}
	answers := make(map[string]interface{}, len(p.Answers))
	for k, v := range p.Answers {
		answers[k] = v
	}
	p.Answers = answers
	return &p, nil
}

func (m *memStore) SaveProgress(_ context.Context, p *onboarding.Progress, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.progress[p.UserID] = *p
	m.versions[p.UserID] = version
	return nil
}

func (m *memStore) GetProfile(_ context.Context, userID string) (*onboarding.CoupleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, database.NotFoundError("couple_profiles", "user_id", userID)
	}
	return &p, nil
}

func (m *memStore) SaveProfile(_ context.Context, p *onboarding.CoupleProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = *p
	return nil
}

type fakeCatalog struct {
	mu      sync.Mutex
	filters []catalog.PackageFilter
}

func (f *fakeCatalog) ListPackages(_ context.Context, filter catalog.PackageFilter) ([]catalog.Package, error) {
	f.mu.Lock()
	f.filters = append(f.filters, filter)
	f.mu.Unlock()
	n := 2
	if filter.Category == catalog.CategoryFlorist {
		n = 5
	}
	out := make([]catalog.Package, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, catalog.Package{
			ID:         fmt.Sprintf("%s-%d", filter.Category, i),
			Category:   filter.Category,
			PriceCents: 1000,
			Active:     true,
		})
	}
	return out, nil
}

type fixture struct {
	svc     *Service
	store   *memStore
	catalog *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	cat := &fakeCatalog{}
	svc, err := New(Config{
		Store:   store,
		Catalog: cat,
		Logger:  logging.NewDiscard("onboarding"),
		Now:     func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, catalog: cat}
}

func answer(t *testing.T, svc *Service, step string, answers map[string]interface{}) *State {
	t.Helper()
	st, err := svc.Answer(context.Background(), "u1", step, answers)
	require.NoError(t, err, "step %s", step)
	return st
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{Store: newMemStore()})
	assert.Error(t, err)
}

func TestDefaultQuestionnaire(t *testing.T) {
	q, err := LoadQuestionnaire("")
	require.NoError(t, err)
	assert.NotEmpty(t, q.Version)
	assert.Equal(t, "couple", q.First(map[string]interface{}{}))

	services, ok := q.Step("services")
	require.True(t, ok)
	for _, opt := range services.Questions[0].Options {
		_, err := catalog.ParseCategory(opt)
		assert.NoError(t, err, "option %s", opt)
	}
}

func TestLoadQuestionnaire_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "q.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: custom
steps:
  - id: only
    questions:
      - {id: city, prompt: "City", type: text, required: true}
`), 0o600))

	q, err := LoadQuestionnaire(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", q.Version)

	_, err = LoadQuestionnaire(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("steps: []"), 0o600))
	_, err = LoadQuestionnaire(bad)
	assert.Error(t, err)
}

func TestGet_FreshProgressIsNotSaved(t *testing.T) {
	f := newFixture(t)
	st, err := f.svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "couple", st.Progress.CurrentStep)
	require.NotNil(t, st.Step)
	assert.Equal(t, "couple", st.Step.ID)
	assert.Empty(t, f.store.progress)
}

func TestFullFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Answer(ctx, "u1", "event", map[string]interface{}{"city": "Austin"})
	assert.True(t, errors.IsCode(err, errors.CodeConflict), "err = %v", err)

	st := answer(t, f.svc, "couple", map[string]interface{}{"partner_one": "Ana", "partner_two": "Ben"})
	assert.Equal(t, "event", st.Progress.CurrentStep)
	assert.Equal(t, "2026-05", f.store.versions["u1"])

	answer(t, f.svc, "event", map[string]interface{}{"city": "Austin", "guest_count": 120.0, "wedding_date": "2026-10-10"})
	st = answer(t, f.svc, "venue", map[string]interface{}{"has_venue": true})
	assert.Equal(t, "services", st.Progress.CurrentStep, "venue_style is skipped")

	st, err = f.svc.Back(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "venue", st.Progress.CurrentStep)
	answer(t, f.svc, "venue", map[string]interface{}{"has_venue": true})

	answer(t, f.svc, "services", map[string]interface{}{"services": []interface{}{"venue", "florist", "cake"}})

	_, err = f.svc.Complete(ctx, "u1")
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.HTTPStatus)
	assert.Equal(t, []string{"budget"}, se.Details["questions"])

	st = answer(t, f.svc, "budget", map[string]interface{}{"budget": 9000.0, "style": "modern"})
	assert.Equal(t, onboarding.StepReview, st.Progress.CurrentStep)
	assert.Nil(t, st.Step)
	assert.Empty(t, st.Missing)

	profile, err := f.svc.Complete(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Ben"}, profile.PartnerNames)
	assert.Equal(t, []catalog.Category{catalog.CategoryFlorist, catalog.CategoryCake}, profile.Services)
	assert.Equal(t, int64(900000), profile.BudgetCents)
	assert.Equal(t, 120, profile.GuestCount)
	assert.True(t, f.store.progress["u1"].Completed)

	saved, err := f.svc.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Austin", saved.City)

	_, err = f.svc.Answer(ctx, "u1", "budget", map[string]interface{}{"budget": 1.0})
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestAnswer_ValidationError(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Answer(context.Background(), "u1", "couple", map[string]interface{}{"partner_one": "  "})
	se := errors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, errors.CodeValidation, se.Code)
	assert.Equal(t, "partner_one", se.Details["field"])
	assert.Empty(t, f.store.progress)

	_, err = f.svc.Back(context.Background(), "u1")
	assert.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestRecommendations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Recommendations(ctx, "u1")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	f.store.profiles["u1"] = onboarding.CoupleProfile{
		UserID:      "u1",
		City:        "Austin",
		BudgetCents: 900000,
		Services:    []catalog.Category{catalog.CategoryFlorist, catalog.CategoryCake},
	}
	recs, err := f.svc.Recommendations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Len(t, recs[0].Packages, RecommendationsPerCategory)
	assert.Len(t, recs[1].Packages, 2)
	assert.Equal(t, int64(450000), recs[0].MaxPriceCents)

	require.Len(t, f.catalog.filters, 2)
	for _, filter := range f.catalog.filters {
		assert.Equal(t, "Austin", filter.City)
		assert.Equal(t, int64(450000), filter.MaxPriceCents)
		assert.Equal(t, RecommendationsPerCategory, filter.Limit)
	}
}

func TestStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	f.store.fail = fmt.Errorf("%w: connection refused", database.ErrDatabaseError)
	_, err := f.svc.Get(context.Background(), "u1")
	assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
}

func serve(t *testing.T, svc *Service, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req = req.WithContext(logging.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	svc.Router().ServeHTTP(rr, req)
	return rr
}

func TestHandlers(t *testing.T) {
	f := newFixture(t)

	rr := serve(t, f.svc, http.MethodGet, "/v1/onboarding", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(t, f.svc, http.MethodGet, "/v1/onboarding", "", "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	var st struct {
		Progress onboarding.Progress `json:"progress"`
		Step     onboarding.Step     `json:"step"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&st))
	assert.Equal(t, "couple", st.Step.ID)

	rr = serve(t, f.svc, http.MethodPost, "/v1/onboarding/steps/couple",
		`{"answers":{"partner_one":"Ana","partner_two":"Ben"}}`, "u1")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&st))
	assert.Equal(t, "event", st.Progress.CurrentStep)

	rr = serve(t, f.svc, http.MethodPost, "/v1/onboarding/steps/event", `{"answers":{"guest_count":"many"}}`, "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(t, f.svc, http.MethodPost, "/v1/onboarding/back", "", "u1")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, f.svc, http.MethodPost, "/v1/onboarding/complete", "", "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = serve(t, f.svc, http.MethodGet, "/v1/profile", "", "u1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = serve(t, f.svc, http.MethodGet, "/v1/recommendations", "", "u1")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
