package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrKeyNotFound is returned when a key, list head, or list member the caller
// asked for does not exist. Callers that treat absence as a normal outcome
// branch on this instead of inspecting driver errors.
var ErrKeyNotFound = errors.New("key not found")

// RedisService is a thin adapter over the Redis client exposing only the
// keyed-store operations the matching core needs. Domain services hold a
// pointer to it rather than talking to the client directly.
type RedisService struct {
	Client *redis.Client
}

// InitializeRedisClient initializes the Redis client from the environment.
func InitializeRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

// SetKey writes a plain key with an optional TTL (0 means no expiry).
func (rs *RedisService) SetKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := rs.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key '%s': %w", key, err)
	}
	return nil
}

// GetKey reads a plain key, returning ErrKeyNotFound if it does not exist.
func (rs *RedisService) GetKey(ctx context.Context, key string) (string, error) {
	value, err := rs.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key '%s': %w", key, err)
	}
	return value, nil
}

// DeleteKeys removes the given keys. Missing keys are not an error.
func (rs *RedisService) DeleteKeys(ctx context.Context, keys ...string) error {
	if err := rs.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys %v: %w", keys, err)
	}
	return nil
}

// SetHashFields writes fields of a hash key, creating it if needed.
func (rs *RedisService) SetHashFields(ctx context.Context, key string, fields map[string]interface{}) error {
	if err := rs.Client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to set hash fields on '%s': %w", key, err)
	}
	return nil
}

// GetAllHashFields reads every field of a hash key. A missing key comes back
// as an empty map, mirroring Redis semantics.
func (rs *RedisService) GetAllHashFields(ctx context.Context, key string) (map[string]string, error) {
	fields, err := rs.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash '%s': %w", key, err)
	}
	return fields, nil
}

// SetExpiry sets or refreshes the TTL on an existing key.
func (rs *RedisService) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	if err := rs.Client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set expiry on '%s': %w", key, err)
	}
	return nil
}

// GetExpiry returns the remaining TTL of a key. Redis reports -1 for a key
// with no expiry and -2 for a missing key; both come through as negative
// durations, which callers treat as "no guaranteed time left".
func (rs *RedisService) GetExpiry(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := rs.Client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read TTL of '%s': %w", key, err)
	}
	return ttl, nil
}

// ListKeys returns every key matching the given pattern.
func (rs *RedisService) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := rs.Client.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys for pattern '%s': %w", pattern, err)
	}
	return keys, nil
}

// PushRight appends values to the tail of a list.
func (rs *RedisService) PushRight(ctx context.Context, key string, values ...interface{}) error {
	if err := rs.Client.RPush(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("failed to push to list '%s': %w", key, err)
	}
	return nil
}

// PopLeft removes and returns the head of a list, or ErrKeyNotFound if the
// list is empty. Non-blocking; pollers sleep and retry on ErrKeyNotFound.
func (rs *RedisService) PopLeft(ctx context.Context, key string) (string, error) {
	value, err := rs.Client.LPop(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to pop from list '%s': %w", key, err)
	}
	return value, nil
}

// PeekLeft returns the head of a list without removing it, or ErrKeyNotFound
// if the list is empty.
func (rs *RedisService) PeekLeft(ctx context.Context, key string) (string, error) {
	value, err := rs.Client.LIndex(ctx, key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to peek list '%s': %w", key, err)
	}
	return value, nil
}

// RemoveFromList deletes every occurrence of value from a list. Removing an
// absent value is a no-op, which is what makes pool/ledger removal idempotent.
func (rs *RedisService) RemoveFromList(ctx context.Context, key, value string) error {
	if err := rs.Client.LRem(ctx, key, 0, value).Err(); err != nil {
		return fmt.Errorf("failed to remove '%s' from list '%s': %w", value, key, err)
	}
	return nil
}

// PositionInList returns the zero-based index of value in a list, or
// ErrKeyNotFound if it is not present.
func (rs *RedisService) PositionInList(ctx context.Context, key, value string) (int64, error) {
	pos, err := rs.Client.LPos(ctx, key, value, redis.LPosArgs{}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find '%s' in list '%s': %w", value, key, err)
	}
	return pos, nil
}

// Publish sends a message on a Pub/Sub channel.
func (rs *RedisService) Publish(ctx context.Context, channel, payload string) error {
	if err := rs.Client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on channel '%s': %w", channel, err)
	}
	return nil
}
