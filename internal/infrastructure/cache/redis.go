package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/digital-storefront/internal/domain/cart"
)

const defaultCartTTL = 30 * 24 * time.Hour

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultCartTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

type cartEntry struct {
	Items     []cart.LineItem `json:"items"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (r *RedisCache) Get(ctx context.Context, customerID string) ([]cart.LineItem, error) {
	data, err := r.client.Get(ctx, cacheKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry cartEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return entry.Items, nil
}

// Set stores the lines with a sliding TTL. An empty cart deletes the key.
func (r *RedisCache) Set(ctx context.Context, customerID string, items []cart.LineItem) error {
	if len(items) == 0 {
		return r.Delete(ctx, customerID)
	}

	data, err := json.Marshal(cartEntry{Items: items, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(12)) * time.Hour
	if err := r.client.Set(ctx, cacheKey(customerID), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, customerID string) error {
	if err := r.client.Del(ctx, cacheKey(customerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(customerID string) string {
	return fmt.Sprintf("cart:%s", customerID)
}
