package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var errNoConnection = errors.New("redis client not connected")

// redisHashes adapts the guard's client to the Hashes interface,
// mapping redis.Nil to ErrNotFound.
type redisHashes struct {
	g *Guard
}

func (h redisHashes) HGet(ctx context.Context, key, field string) (string, error) {
	client := h.g.client.Load()
	if client == nil {
		return "", errNoConnection
	}
	v, err := client.HGet(ctx, key, field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get from redis: %w", err)
	}
	return v, nil
}

func (h redisHashes) HSet(ctx context.Context, key, field, value string) error {
	client := h.g.client.Load()
	if client == nil {
		return errNoConnection
	}
	if err := client.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (h redisHashes) HDel(ctx context.Context, key, field string) error {
	client := h.g.client.Load()
	if client == nil {
		return errNoConnection
	}
	if err := client.HDel(ctx, key, field).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}
