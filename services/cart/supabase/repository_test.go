package supabase

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/altarlane/marketplace/internal/database"
	"github.com/altarlane/marketplace/pkg/testutil"
)

func TestGetPromo(t *testing.T) {
	fake := testutil.NewPostgREST(t)
	fake.Handle(http.MethodGet, tablePromoCodes, func(req testutil.Recorded) (int, interface{}) {
		if req.Query.Get("code") != "eq.SPRING10" {
			return http.StatusOK, `[]`
		}
		return http.StatusOK, `[{"code":"SPRING10","percent_off":10,"active":true,"stripe_coupon_id":"co_123"}]`
	})
	repo := NewRepository(fake.Repo)

	promo, err := repo.GetPromo(context.Background(), " spring10 ")
	if err != nil {
		t.Fatalf("GetPromo: %v", err)
	}
	d := promo.Discount()
	if d.Code != "SPRING10" || d.PercentOff != 10 || d.StripeCouponID != "co_123" {
		t.Errorf("discount = %+v", d)
	}

	if _, err := repo.GetPromo(context.Background(), "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPromoCode_Usable(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name  string
		promo PromoCode
		want  bool
	}{
		{"active", PromoCode{Active: true}, true},
		{"inactive", PromoCode{Active: false}, false},
		{"expired", PromoCode{Active: true, ExpiresAt: &past}, false},
		{"not started", PromoCode{Active: true, StartsAt: &future}, false},
		{"in window", PromoCode{Active: true, StartsAt: &past, ExpiresAt: &future}, true},
	}
	for _, tt := range tests {
		if got := tt.promo.Usable(now); got != tt.want {
			t.Errorf("%s: Usable = %v, want %v", tt.name, got, tt.want)
		}
	}
}
