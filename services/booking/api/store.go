package bookingapi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altarlane/marketplace/internal/cache"
	"github.com/altarlane/marketplace/internal/domain/booking"
)

// RedisWizardStore keeps wizard state at wizard:{id}.
type RedisWizardStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisWizardStore(rdb *redis.Client, ttl time.Duration) *RedisWizardStore {
	return &RedisWizardStore{rdb: rdb, ttl: ttl}
}

func wizardKey(id string) string {
	return "wizard:" + id
}

func (s *RedisWizardStore) Load(ctx context.Context, id string) (*booking.Wizard, bool, error) {
	var w booking.Wizard
	ok, err := cache.GetJSON(ctx, s.rdb, wizardKey(id), &w)
	if err != nil || !ok {
		return nil, false, err
	}
	return &w, true, nil
}

// Save writes the wizard and refreshes its TTL.
func (s *RedisWizardStore) Save(ctx context.Context, w *booking.Wizard) error {
	return cache.SetJSON(ctx, s.rdb, wizardKey(w.ID), w, s.ttl)
}

func (s *RedisWizardStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, wizardKey(id)).Err()
}
