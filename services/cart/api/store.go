package cartapi

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/altarlane/marketplace/internal/cache"
	"github.com/altarlane/marketplace/internal/domain/cart"
)

// RedisStore keeps carts as JSON at cart:{userID}.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a store whose keys expire ttl after the last write.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// Load returns the user's cart, or an empty one.
func (s *RedisStore) Load(ctx context.Context, userID string) (cart.Cart, error) {
	var c cart.Cart
	exists, err := cache.GetJSON(ctx, s.rdb, cartKey(userID), &c)
	if err != nil {
		return cart.Cart{}, err
	}
	if !exists {
		return cart.New(userID), nil
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c, nil
}

// Update runs fn under optimistic locking and stores its result.
func (s *RedisStore) Update(ctx context.Context, userID string, fn func(cart.Cart) (cart.Cart, error)) (cart.Cart, error) {
	next, err := cache.UpdateJSON(ctx, s.rdb, cartKey(userID), s.ttl, cache.DefaultMaxRetries,
		func(current cart.Cart, exists bool) (*cart.Cart, error) {
			if !exists {
				current = cart.New(userID)
			}
			out, err := fn(current)
			if err != nil {
				return nil, err
			}
			return &out, nil
		})
	if err != nil {
		return cart.Cart{}, err
	}
	return *next, nil
}
