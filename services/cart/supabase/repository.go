package supabase

import (
	"context"
	"strings"

	"github.com/altarlane/marketplace/internal/database"
)

const tablePromoCodes = "promo_codes"

// Repository looks up promo codes.
type Repository struct {
	base database.RepositoryInterface
}

func NewRepository(base database.RepositoryInterface) *Repository {
	return &Repository{base: base}
}

// GetPromo fetches a promo by code. Codes are stored upper-case.
func (r *Repository) GetPromo(ctx context.Context, code string) (*PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	return database.GenericGetByField[PromoCode](r.base, ctx, tablePromoCodes, "code", code)
}
