// Package cache holds the Redis helpers used for ephemeral marketplace state.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrContention is returned when an optimistic update keeps losing races.
var ErrContention = errors.New("too many concurrent updates")

// DefaultMaxRetries bounds optimistic update attempts.
const DefaultMaxRetries = 5

// NewRedis connects to the Redis server at url (redis://[:password@]host:port/db).
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// GetJSON loads key into v. It reports false when the key does not exist.
func GetJSON(ctx context.Context, rdb redis.Cmdable, key string, v interface{}) (bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores v at key with ttl (0 keeps no expiry).
func SetJSON(ctx context.Context, rdb redis.Cmdable, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// UpdateJSON applies fn to the value at key under WATCH, retrying on conflicts.
// fn receives the current value (zero when absent) and returns the value to store.
// Returning a nil pointer deletes the key.
func UpdateJSON[T any](ctx context.Context, rdb *redis.Client, key string, ttl time.Duration, maxRetries int, fn func(current T, exists bool) (*T, error)) (*T, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var result *T
	txf := func(tx *redis.Tx) error {
		var current T
		exists, err := GetJSON(ctx, tx, key, &current)
		if err != nil {
			return err
		}

		next, err := fn(current, exists)
		if err != nil {
			return err
		}

		var raw []byte
		if next != nil {
			if raw, err = json.Marshal(next); err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, raw, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < maxRetries; i++ {
		err := rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrContention
}

// ClaimOnce sets key if absent and reports whether this caller won it.
func ClaimOnce(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) (bool, error) {
	ok, err := rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes a claim so the work can be retried.
func Release(ctx context.Context, rdb redis.Cmdable, key string) error {
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
